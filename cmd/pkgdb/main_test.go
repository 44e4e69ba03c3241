package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureJSON = `{
  "packages": {
    "x86_64-linux": {
      "hello": {
        "type": "derivation",
        "name": "hello-2.12.1",
        "pname": "hello",
        "outputs": ["out"]
      }
    }
  }
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScrapeThenSearchAndGet(t *testing.T) {
	dir := t.TempDir()
	fixturePath := filepath.Join(dir, "nixpkgs.json")
	require.NoError(t, os.WriteFile(fixturePath, []byte(fixtureJSON), 0o644))
	dbPath := filepath.Join(dir, "nixpkgs.sqlite")

	_, err := run(t, "scrape", "--input", fixturePath, "--db", dbPath, "--prefix", "packages.x86_64-linux")
	require.NoError(t, err)

	out, err := run(t, "search", "--db", dbPath, "--systems", "x86_64-linux", "--match", "hello")
	require.NoError(t, err)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "hello", rows[0]["pname"])

	id := int64(rows[0]["id"].(float64))
	out, err = run(t, "get", "--db", dbPath, "--id", itoa(id))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "hello", got["pname"])
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
