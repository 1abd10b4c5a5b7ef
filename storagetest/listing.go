package storagetest

import (
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jindal1979/PortableStorage/core"
)

// FixtureTree is the content a read-only provider must contain before the
// suite runs against it. Keys are slash-separated paths relative to the
// provider root; values are the exact file contents.
var FixtureTree = map[string]string{
	"readme.txt":      "hello",
	"docs/guide.txt":  "guide",
	"docs/notes.md":   "notes",
	"data/deep/x.bin": "0123456789",
}

// PopulateFixture writes FixtureTree into a writable root. Read-only
// provider tests typically use it to build the backing artifact (an
// archive, a seeded bucket) before opening it read-only.
func PopulateFixture(t *testing.T, root *core.Root) {
	t.Helper()
	for path, content := range FixtureTree {
		require.NoError(t, root.WriteFile(path, []byte(content)), path)
	}
}

func entryNames(entries []*core.Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	sort.Strings(names)
	return names
}

func testWildcardListing(t *testing.T, root *core.Root) {
	for _, path := range []string{"a.txt", "b.txt", "c.log", "sub/d.txt"} {
		require.NoError(t, root.WriteFile(path, []byte(path)))
	}

	t.Run("Star", func(t *testing.T) {
		entries, err := root.Entries("*.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.txt"}, entryNames(entries))
	})

	t.Run("Question", func(t *testing.T) {
		entries, err := root.Entries("?.log")
		require.NoError(t, err)
		assert.Equal(t, []string{"c.log"}, entryNames(entries))
	})

	t.Run("PathPrefix", func(t *testing.T) {
		entries, err := root.Entries("sub/*.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"d.txt"}, entryNames(entries))
	})

	t.Run("All", func(t *testing.T) {
		entries, err := root.Entries("")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.txt", "c.log", "sub"}, entryNames(entries))
	})

	t.Run("NoMatch", func(t *testing.T) {
		entries, err := root.Entries("*.gone")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func testReadOnlyListing(t *testing.T, root *core.Root) {
	entries, err := root.Entries("")
	require.NoError(t, err)
	assert.Equal(t, []string{"data", "docs", "readme.txt"}, entryNames(entries))

	entries, err = root.Entries("docs/*.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.md"}, entryNames(entries))

	docs, err := root.OpenStorage("docs")
	require.NoError(t, err)
	assert.Equal(t, "/docs", docs.Path())

	e, err := root.StreamEntry("data/deep/x.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(FixtureTree["data/deep/x.bin"])), e.Size)

	_, err = root.OpenStorage("absent")
	assert.ErrorIs(t, err, core.ErrStorageNotFound)
}

func testReadOnlyStreams(t *testing.T, root *core.Root) {
	for path, want := range FixtureTree {
		data, err := root.ReadFile(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, string(data), path)
	}

	t.Run("Seek", func(t *testing.T) {
		rs, err := root.OpenStream("data/deep/x.bin", core.ModeOpen, core.AccessRead)
		require.NoError(t, err)
		defer rs.Close()

		_, err = rs.Seek(5, io.SeekStart)
		require.NoError(t, err)
		rest, err := io.ReadAll(rs)
		require.NoError(t, err)
		assert.Equal(t, "56789", string(rest))
	})

	t.Run("MutationRejected", func(t *testing.T) {
		_, err := root.CreateStream("new.txt", false)
		assert.Error(t, err)

		err = root.DeleteStream("readme.txt")
		assert.Error(t, err)
	})
}
