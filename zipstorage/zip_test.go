package zipstorage_test

import (
	"bytes"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jindal1979/PortableStorage/core"
	"github.com/jindal1979/PortableStorage/local"
	"github.com/jindal1979/PortableStorage/storagetest"
	"github.com/jindal1979/PortableStorage/zipstorage"
)

// buildZip produces an archive holding the given path-to-content tree.
func buildZip(t *testing.T, tree map[string]string) []byte {
	t.Helper()
	paths := make([]string, 0, len(tree))
	for p := range tree {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range paths {
		w, err := zw.Create(p)
		require.NoError(t, err)
		_, err = w.Write([]byte(tree[p]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestZipProvider(t *testing.T) {
	storagetest.TestSuiteWithConfig(t, func(t *testing.T) core.Provider {
		data := buildZip(t, storagetest.FixtureTree)
		p, err := zipstorage.New(bytes.NewReader(data), int64(len(data)), "fixture")
		require.NoError(t, err)
		return p
	}, storagetest.Config{ReadOnly: true})
}

func TestNewRejectsGarbage(t *testing.T) {
	_, err := zipstorage.New(bytes.NewReader([]byte("not an archive")), 14, "bad")
	assert.Error(t, err)
}

func TestVirtualMount(t *testing.T) {
	root, err := core.New(local.NewMemory(),
		core.WithVirtualProvider(".zip", zipstorage.NewFactory()))
	require.NoError(t, err)
	defer root.Close()

	data := buildZip(t, map[string]string{
		"readme.txt":    "hello",
		"docs/note.txt": "inner",
	})
	require.NoError(t, root.WriteFile("bundle.zip", data))

	e, err := root.Entry("bundle.zip")
	require.NoError(t, err)
	assert.True(t, e.IsStorage, "archive entry should be traversable")
	assert.True(t, e.IsStream, "archive entry keeps its stream nature")

	got, err := root.ReadFile("bundle.zip/docs/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "inner", string(got))

	mounted, err := root.OpenStorage("bundle.zip")
	require.NoError(t, err)
	assert.True(t, mounted.IsVirtual())

	inner, err := mounted.OpenStorage("docs")
	require.NoError(t, err)
	assert.True(t, inner.IsVirtual(), "virtual-ness is inherited by descendants")
	assert.Equal(t, "/bundle.zip/docs", inner.Path())
}

func TestVirtualMountUnregister(t *testing.T) {
	root, err := core.New(local.NewMemory())
	require.NoError(t, err)
	defer root.Close()

	data := buildZip(t, map[string]string{"a.txt": "a"})
	require.NoError(t, root.WriteFile("bundle.zip", data))

	_, err = root.OpenStorage("bundle.zip")
	assert.ErrorIs(t, err, core.ErrStorageNotFound)

	root.RegisterVirtualProvider(".zip", zipstorage.NewFactory())
	_, err = root.OpenStorage("bundle.zip")
	require.NoError(t, err)

	root.UnregisterVirtualProvider(".zip")
	_, err = root.OpenStorage("bundle.zip")
	assert.ErrorIs(t, err, core.ErrStorageNotFound)
}

func TestArchiveReadOnlyThroughMount(t *testing.T) {
	root, err := core.New(local.NewMemory(),
		core.WithVirtualProvider(".zip", zipstorage.NewFactory()))
	require.NoError(t, err)
	defer root.Close()

	data := buildZip(t, map[string]string{"a.txt": "a"})
	require.NoError(t, root.WriteFile("bundle.zip", data))

	err = root.WriteFile("bundle.zip/new.txt", []byte("x"))
	assert.ErrorIs(t, err, core.ErrUnsupported)
}
