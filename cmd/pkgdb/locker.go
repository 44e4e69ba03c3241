package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// offlineLocker is the CLI's stand-in for the real "lock a flake
// reference" oracle (§4.8 bullet 4's external dependency on the Nix
// evaluator), since network fetching is explicitly out of scope (§1's
// non-goals). It derives a deterministic fingerprint from the input's
// flake-ref attrs alone, so the same `from` always locks to the same
// fingerprint without ever reaching the network.
type offlineLocker struct{}

func (offlineLocker) LockFlakeRef(from map[string]interface{}) (fingerprint, url string, err error) {
	canon, err := canonicalize(from)
	if err != nil {
		return "", "", fmt.Errorf("offlineLocker: canonicalizing flake-ref attrs: %w", err)
	}
	sum := sha256.Sum256(canon)
	fingerprint = hex.EncodeToString(sum[:])[:40]
	url = flakeRefURL(from)
	return fingerprint, url, nil
}

// canonicalize produces a stable byte encoding of from regardless of Go
// map iteration order, by re-marshaling through a key-sorted structure.
func canonicalize(from map[string]interface{}) ([]byte, error) {
	keys := make([]string, 0, len(from))
	for k := range from {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([][2]interface{}, len(keys))
	for i, k := range keys {
		ordered[i] = [2]interface{}{k, from[k]}
	}
	return json.Marshal(ordered)
}

// flakeRefURL reconstructs a best-effort `owner/repo`-shaped URL from
// common flake-ref attrs, falling back to a generic indirect reference.
func flakeRefURL(from map[string]interface{}) string {
	typ, _ := from["type"].(string)
	owner, hasOwner := from["owner"].(string)
	repo, hasRepo := from["repo"].(string)
	if typ != "" && hasOwner && hasRepo {
		return fmt.Sprintf("%s:%s/%s", typ, owner, repo)
	}
	if id, ok := from["id"].(string); ok {
		return "flake:" + id
	}
	return "flake:unknown"
}
