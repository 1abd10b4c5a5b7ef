package storagetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jindal1979/PortableStorage/core"
)

func testEndToEnd(t *testing.T, root *core.Root) {
	docs, err := root.CreateStorage("docs")
	require.NoError(t, err)
	assert.Equal(t, "/docs", docs.Path())

	ws, err := root.CreateStream("docs/a.txt", false)
	require.NoError(t, err)
	_, err = ws.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, ws.Close())

	entries, err := root.Entries("docs/*")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.True(t, entries[0].IsStream)

	data, err := root.ReadFile("docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	require.NoError(t, root.DeleteStream("docs/a.txt"))

	entries, err = root.Entries("docs/*")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func testStorageTree(t *testing.T, root *core.Root) {
	deep, err := root.OpenOrCreateStorage("a/b/c")
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c", deep.Path())

	// Resolving a node's own path yields the cached node.
	same, err := root.OpenStorage("a/b/c")
	require.NoError(t, err)
	assert.Same(t, deep, same)

	_, err = root.CreateStorage("a/b")
	assert.ErrorIs(t, err, core.ErrExist)

	ok, err := root.StorageExists("a/b")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = root.OpenStorage("a/missing")
	assert.ErrorIs(t, err, core.ErrStorageNotFound)
}

func testStreamModes(t *testing.T, root *core.Root) {
	require.NoError(t, root.WriteFile("f.txt", []byte("abc")))

	t.Run("Append", func(t *testing.T) {
		ws, err := root.OpenStream("f.txt", core.ModeAppend, core.AccessWrite)
		require.NoError(t, err)
		_, err = ws.Write([]byte("def"))
		require.NoError(t, err)
		require.NoError(t, ws.Close())

		data, err := root.ReadFile("f.txt")
		require.NoError(t, err)
		assert.Equal(t, "abcdef", string(data))
	})

	t.Run("Truncate", func(t *testing.T) {
		ws, err := root.OpenStream("f.txt", core.ModeTruncate, core.AccessReadWrite)
		require.NoError(t, err)
		_, err = ws.Write([]byte("short"))
		require.NoError(t, err)
		require.NoError(t, ws.Close())

		data, err := root.ReadFile("f.txt")
		require.NoError(t, err)
		assert.Equal(t, "short", string(data))
	})

	t.Run("CreateNewOnOccupiedName", func(t *testing.T) {
		_, err := root.OpenStream("f.txt", core.ModeCreateNew, core.AccessWrite)
		assert.ErrorIs(t, err, core.ErrExist)
	})

	t.Run("OpenAbsent", func(t *testing.T) {
		_, err := root.OpenStream("missing.txt", core.ModeOpen, core.AccessRead)
		assert.ErrorIs(t, err, core.ErrStreamNotFound)
	})

	t.Run("InvalidModeAccess", func(t *testing.T) {
		_, err := root.OpenStream("f.txt", core.ModeAppend, core.AccessRead)
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
	})
}

func testCRUD(t *testing.T, root *core.Root) {
	require.NoError(t, root.WriteFile("docs/a.txt", []byte("one")))

	t.Run("Overwrite", func(t *testing.T) {
		_, err := root.CreateStream("docs/a.txt", false)
		assert.ErrorIs(t, err, core.ErrExist)

		ws, err := root.CreateStream("docs/a.txt", true)
		require.NoError(t, err)
		_, err = ws.Write([]byte("two"))
		require.NoError(t, err)
		require.NoError(t, ws.Close())

		data, err := root.ReadFile("docs/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "two", string(data))
	})

	t.Run("Rename", func(t *testing.T) {
		require.NoError(t, root.Rename("docs/a.txt", "b.txt"))

		e, err := root.StreamEntry("docs/b.txt")
		require.NoError(t, err)
		assert.Equal(t, "/docs/b.txt", e.Path)

		ok, err := root.Exists("docs/a.txt")
		require.NoError(t, err)
		assert.False(t, ok)

		data, err := root.ReadFile("docs/b.txt")
		require.NoError(t, err)
		assert.Equal(t, "two", string(data))
	})

	t.Run("DeleteStorage", func(t *testing.T) {
		require.NoError(t, root.WriteFile("victim/x/y.txt", []byte("y")))
		require.NoError(t, root.DeleteStorage("victim"))

		ok, err := root.StorageExists("victim")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DeleteAbsent", func(t *testing.T) {
		err := root.DeleteStream("docs/never.txt")
		assert.True(t, core.IsNotFound(err))
	})
}

func testCopySubtree(t *testing.T, root *core.Root) {
	require.NoError(t, root.WriteFile("src/top.txt", []byte("top")))
	require.NoError(t, root.WriteFile("src/sub/leaf.txt", []byte("leaf")))

	require.NoError(t, root.Copy("src", root.Storage, "dst"))

	for path, want := range map[string]string{
		"dst/top.txt":      "top",
		"dst/sub/leaf.txt": "leaf",
	} {
		data, err := root.ReadFile(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, string(data), path)
	}

	// Stream copy with a container destination appends the source name.
	require.NoError(t, root.Copy("src/top.txt", root.Storage, "dst/sub/"))
	data, err := root.ReadFile("dst/sub/top.txt")
	require.NoError(t, err)
	assert.Equal(t, "top", string(data))
}
