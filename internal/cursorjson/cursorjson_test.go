package cursorjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flox/pkgdb-sub000/internal/cursor"
)

const fixture = `{
  "packages": {
    "x86_64-linux": {
      "hello": {
        "type": "derivation",
        "name": "hello-2.12.1",
        "pname": "hello",
        "outputs": ["out"],
        "broken": false
      }
    }
  }
}`

func TestLoadWalksDerivation(t *testing.T) {
	root, err := Load([]byte(fixture))
	require.NoError(t, err)

	packages, err := root.MaybeChild("packages")
	require.NoError(t, err)
	require.NotNil(t, packages)

	system, err := packages.MaybeChild("x86_64-linux")
	require.NoError(t, err)
	require.NotNil(t, system)

	hello, err := system.MaybeChild("hello")
	require.NoError(t, err)
	require.NotNil(t, hello)

	isDrv, err := hello.IsDerivation()
	require.NoError(t, err)
	assert.True(t, isDrv)

	name, err := hello.GetString("name")
	require.NoError(t, err)
	assert.Equal(t, "hello-2.12.1", name)

	outputs, err := hello.GetListOfStrings("outputs")
	require.NoError(t, err)
	assert.Equal(t, []string{"out"}, outputs)

	broken, err := hello.GetBool("broken")
	require.NoError(t, err)
	assert.False(t, broken)
}

func TestMaybeChildMissingReturnsNil(t *testing.T) {
	root, err := Load([]byte(`{"packages": {}}`))
	require.NoError(t, err)

	child, err := root.MaybeChild("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, child)
}

func TestGetStringOnMissingFieldErrors(t *testing.T) {
	root, err := Load([]byte(`{"name": "x"}`))
	require.NoError(t, err)

	_, err = root.GetString("nonexistent")
	assert.Error(t, err)
}

func TestChildrenVisitsInSortedOrder(t *testing.T) {
	root, err := Load([]byte(`{"b": {}, "a": {}, "c": {}}`))
	require.NoError(t, err)

	var seen []string
	err = root.Children(func(name string, child cursor.Cursor) error {
		seen = append(seen, name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}
