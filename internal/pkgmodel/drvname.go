package pkgmodel

// SplitDrvName splits a derivation name into its pname/version parts using
// Nix's standard convention: the version begins at the first `-` that is
// immediately followed by a digit. Everything before that split is the
// name; everything after (exclusive of the separating `-`) is the version.
// When no such split point exists, the whole string is the name and the
// version is empty.
func SplitDrvName(name string) (pname, version string) {
	for i := 0; i < len(name); i++ {
		if name[i] != '-' {
			continue
		}
		if i+1 < len(name) && isDigit(name[i+1]) {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
