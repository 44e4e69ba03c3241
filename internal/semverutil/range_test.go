package semverutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSatAcceptAll(t *testing.T) {
	versions := []string{"1.0.0", "2.0.0-pre"}
	for _, r := range []string{"", "*", "any", "^*", "~*", "x", "X"} {
		assert.ElementsMatch(t, versions, Sat(r, versions), "range %q", r)
	}
}

func TestSatCaret(t *testing.T) {
	versions := []string{"2.12.0", "2.12.1", "3.0.0"}
	got := Sat("^2", versions)
	assert.ElementsMatch(t, []string{"2.12.0", "2.12.1"}, got)
}

func TestSatHyphenRange(t *testing.T) {
	versions := []string{"1.0.0", "1.5.0", "2.5.0", "3.0.0"}
	got := Sat("1.2.3 - 2.9.9", versions)
	assert.ElementsMatch(t, []string{"1.5.0", "2.5.0"}, got)
}

func TestSatPreReleaseAllowed(t *testing.T) {
	versions := []string{"1.2.3-rc1"}
	got := Sat("^1.2.0", versions)
	assert.ElementsMatch(t, []string{"1.2.3-rc1"}, got)
}

func TestPrefersPreReleases(t *testing.T) {
	assert.True(t, PrefersPreReleases("~1.2-beta"))
	assert.False(t, PrefersPreReleases("~1.2"))
	assert.False(t, PrefersPreReleases("^1.2.0"))
}
