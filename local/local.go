package local

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/jindal1979/PortableStorage/core"
)

// Provider implements core.Provider over a billy.Filesystem. Each provider
// is rooted at one directory; containers are opened as chrooted child
// providers and locators are plain child names.
type Provider struct {
	bfs  billy.Filesystem
	name string
	loc  string
}

// NewLocal creates a provider rooted at the given directory on disk. The
// directory is created if it does not exist.
func NewLocal(root string) (*Provider, error) {
	if root == "" {
		return nil, core.ErrInvalidArgument
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Provider{
		bfs:  osfs.New(root),
		name: filepath.Base(root),
		loc:  root,
	}, nil
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Provider {
	return &Provider{bfs: memfs.New(), name: "memory"}
}

// Name returns the provider's display name.
func (p *Provider) Name() string { return p.name }

// Locator returns the provider's root address.
func (p *Provider) Locator() string { return p.loc }

// Entries returns the full listing of the provider's directory.
func (p *Provider) Entries() ([]core.ProviderEntry, error) {
	infos, err := p.bfs.ReadDir("/")
	if err != nil {
		return nil, err
	}
	entries := make([]core.ProviderEntry, 0, len(infos))
	for _, info := range infos {
		mtime := info.ModTime()
		entries = append(entries, core.ProviderEntry{
			Name:          info.Name(),
			Locator:       info.Name(),
			IsContainer:   info.IsDir(),
			Size:          info.Size(),
			LastWriteTime: &mtime,
		})
	}
	return entries, nil
}

// openFlags translates a mode/access pair into os.OpenFile flags. Append
// is emulated with an explicit seek because not every billy backend
// honors O_APPEND.
func openFlags(mode core.OpenMode, access core.Access) int {
	var flags int
	switch access {
	case core.AccessRead:
		flags = os.O_RDONLY
	case core.AccessWrite:
		flags = os.O_WRONLY
	case core.AccessReadWrite:
		flags = os.O_RDWR
	}
	switch mode {
	case core.ModeOpenOrCreate, core.ModeAppend:
		flags |= os.O_CREATE
	case core.ModeCreate:
		flags |= os.O_CREATE | os.O_TRUNC
	case core.ModeCreateNew:
		flags |= os.O_CREATE | os.O_EXCL
	case core.ModeTruncate:
		flags |= os.O_TRUNC
	}
	return flags
}

// OpenStream opens the named file. billy.File satisfies core.Stream
// directly.
func (p *Provider) OpenStream(locator string, mode core.OpenMode, access core.Access) (core.Stream, error) {
	f, err := p.bfs.OpenFile(locator, openFlags(mode, access), 0o644)
	if err != nil {
		return nil, err
	}
	if mode == core.ModeAppend {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

// OpenContainer opens the named subdirectory as a chrooted child provider.
func (p *Provider) OpenContainer(locator string) (core.Provider, error) {
	info, err := p.bfs.Stat(locator)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fs.ErrNotExist
	}
	sub, err := p.bfs.Chroot(locator)
	if err != nil {
		return nil, err
	}
	return &Provider{bfs: sub, name: locator, loc: path.Join(p.loc, locator)}, nil
}

// CreateContainer creates the named subdirectory and returns a chrooted
// child provider together with its listing entry.
func (p *Provider) CreateContainer(name string) (core.Provider, core.ProviderEntry, error) {
	if err := p.bfs.MkdirAll(name, 0o755); err != nil {
		return nil, core.ProviderEntry{}, err
	}
	sub, err := p.bfs.Chroot(name)
	if err != nil {
		return nil, core.ProviderEntry{}, err
	}
	child := &Provider{bfs: sub, name: name, loc: path.Join(p.loc, name)}
	return child, core.ProviderEntry{Name: name, Locator: name, IsContainer: true}, nil
}

// CreateStream creates the named file, truncating any existing content.
func (p *Provider) CreateStream(name string) (core.Stream, core.ProviderEntry, error) {
	f, err := p.bfs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, core.ProviderEntry{}, err
	}
	return f, core.ProviderEntry{Name: name, Locator: name}, nil
}

// RemoveContainer removes the named subdirectory and everything in it.
// billy has no RemoveAll, so removal recurses through the listing.
func (p *Provider) RemoveContainer(locator string) error {
	info, err := p.bfs.Stat(locator)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fs.ErrNotExist
	}
	return p.removeAll(locator)
}

func (p *Provider) removeAll(target string) error {
	info, err := p.bfs.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return p.bfs.Remove(target)
	}
	infos, err := p.bfs.ReadDir(target)
	if err != nil {
		return err
	}
	for _, child := range infos {
		if err := p.removeAll(path.Join(target, child.Name())); err != nil {
			return err
		}
	}
	return p.bfs.Remove(target)
}

// RemoveStream removes the named file.
func (p *Provider) RemoveStream(locator string) error {
	info, err := p.bfs.Stat(locator)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fs.ErrNotExist
	}
	return p.bfs.Remove(locator)
}

// Rename renames the named item within this provider's directory.
func (p *Provider) Rename(locator, newName string) (string, error) {
	if _, err := p.bfs.Stat(locator); err != nil {
		return "", err
	}
	if err := p.bfs.Rename(locator, newName); err != nil {
		return "", err
	}
	return newName, nil
}

// SetAttributes is not supported by the file-system backend.
func (p *Provider) SetAttributes(string, core.Attributes) error {
	return core.ErrUnsupported
}

// FreeSpace is not reported by the file-system backend.
func (p *Provider) FreeSpace() (int64, error) {
	return 0, core.ErrUnsupported
}

// Close releases nothing; billy filesystems hold no handles of their own.
func (p *Provider) Close() error { return nil }

// Compile-time interface check.
var _ core.Provider = (*Provider)(nil)
