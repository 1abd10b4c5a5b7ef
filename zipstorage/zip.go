package zipstorage

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/jindal1979/PortableStorage/core"
)

// Factory mounts ".zip" streams as read-only storages. Register it on a
// root with core.WithVirtualProvider or Root.RegisterVirtualProvider.
type Factory struct{}

// NewFactory returns a factory for mounting zip archives.
func NewFactory() *Factory { return &Factory{} }

// CreateProvider wraps the archive stream in a synchronizing view (zip
// reading needs random access) and parses its central directory. Ownership
// of the stream passes to the returned provider.
func (*Factory) CreateProvider(stream core.Stream, locator, name string) (core.Provider, error) {
	view := core.NewSyncStream(stream, true)
	size, err := view.Size()
	if err != nil {
		_ = view.Close()
		return nil, err
	}
	p, err := New(view, size, name)
	if err != nil {
		_ = view.Close()
		return nil, err
	}
	p.loc = locator
	p.closer = view
	return p, nil
}

// archive is the parsed zip shared by the root provider and every
// sub-container provider opened from it.
type archive struct {
	files []*zip.File
}

// Provider implements core.Provider over one directory level of a zip
// archive. Sub-containers share the parsed archive and narrow the name
// prefix.
type Provider struct {
	arch   *archive
	prefix string // "" at the archive root, otherwise "dir/sub/"
	name   string
	loc    string
	closer io.Closer // set on the root provider only
}

// New creates a read-only provider over a zip archive read from ra.
func New(ra io.ReaderAt, size int64, name string) (*Provider, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("read zip archive %q: %w", name, err)
	}
	return &Provider{arch: &archive{files: zr.File}, name: name, loc: name}, nil
}

// Name returns the provider's display name.
func (p *Provider) Name() string { return p.name }

// Locator returns the provider's root address.
func (p *Provider) Locator() string { return p.loc }

// Entries lists the direct children of this archive directory. Directories
// without an explicit archive record still appear, derived from the paths
// of the files beneath them.
func (p *Provider) Entries() ([]core.ProviderEntry, error) {
	seen := make(map[string]bool)
	var entries []core.ProviderEntry
	for _, f := range p.arch.files {
		rest, ok := p.relative(f.Name)
		if !ok || rest == "" {
			continue
		}
		if idx := strings.Index(rest, "/"); idx >= 0 {
			dir := rest[:idx]
			if !seen[dir] {
				seen[dir] = true
				entries = append(entries, core.ProviderEntry{Name: dir, Locator: dir, IsContainer: true})
			}
			continue
		}
		if f.FileInfo().IsDir() {
			if !seen[rest] {
				seen[rest] = true
				entries = append(entries, core.ProviderEntry{Name: rest, Locator: rest, IsContainer: true})
			}
			continue
		}
		mtime := f.Modified
		entries = append(entries, core.ProviderEntry{
			Name:          rest,
			Locator:       rest,
			Size:          int64(f.UncompressedSize64),
			LastWriteTime: &mtime,
		})
	}
	return entries, nil
}

// relative strips the provider's prefix and any trailing separator from an
// archive member name, reporting whether the member belongs to this level's
// subtree.
func (p *Provider) relative(member string) (string, bool) {
	if !strings.HasPrefix(member, p.prefix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(member, p.prefix), "/"), true
}

func (p *Provider) find(locator string) *zip.File {
	target := p.prefix + locator
	for _, f := range p.arch.files {
		if f.Name == target && !f.FileInfo().IsDir() {
			return f
		}
	}
	return nil
}

func (p *Provider) hasContainer(locator string) bool {
	dir := p.prefix + locator + "/"
	for _, f := range p.arch.files {
		if f.Name == dir || strings.HasPrefix(f.Name, dir) {
			return true
		}
	}
	return false
}

// OpenStream opens an archive member for reading. The member is
// decompressed into memory up front so the returned stream is seekable.
func (p *Provider) OpenStream(locator string, mode core.OpenMode, access core.Access) (core.Stream, error) {
	if access.CanWrite() || (mode != core.ModeOpen && mode != core.ModeOpenOrCreate) {
		return nil, core.ErrUnsupported
	}
	f := p.find(locator)
	if f == nil {
		return nil, fs.ErrNotExist
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return &readStream{r: bytes.NewReader(data)}, nil
}

// OpenContainer opens an archive directory as a child provider sharing the
// parsed archive.
func (p *Provider) OpenContainer(locator string) (core.Provider, error) {
	if !p.hasContainer(locator) {
		return nil, fs.ErrNotExist
	}
	return &Provider{
		arch:   p.arch,
		prefix: p.prefix + locator + "/",
		name:   locator,
		loc:    p.loc + "/" + locator,
	}, nil
}

// CreateContainer is not supported; archives are read-only.
func (p *Provider) CreateContainer(string) (core.Provider, core.ProviderEntry, error) {
	return nil, core.ProviderEntry{}, core.ErrUnsupported
}

// CreateStream is not supported; archives are read-only.
func (p *Provider) CreateStream(string) (core.Stream, core.ProviderEntry, error) {
	return nil, core.ProviderEntry{}, core.ErrUnsupported
}

// RemoveContainer is not supported; archives are read-only.
func (p *Provider) RemoveContainer(string) error { return core.ErrUnsupported }

// RemoveStream is not supported; archives are read-only.
func (p *Provider) RemoveStream(string) error { return core.ErrUnsupported }

// Rename is not supported; archives are read-only.
func (p *Provider) Rename(string, string) (string, error) { return "", core.ErrUnsupported }

// SetAttributes is not supported; archives are read-only.
func (p *Provider) SetAttributes(string, core.Attributes) error { return core.ErrUnsupported }

// FreeSpace is meaningless for a read-only archive.
func (p *Provider) FreeSpace() (int64, error) { return 0, core.ErrUnsupported }

// Close releases the archive stream on the root provider. Sub-container
// providers share the root's handle and close nothing.
func (p *Provider) Close() error {
	if p.closer == nil {
		return nil
	}
	c := p.closer
	p.closer = nil
	return c.Close()
}

// readStream is a seekable in-memory view of one decompressed archive
// member.
type readStream struct {
	r      *bytes.Reader
	closed bool
}

func (s *readStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, core.ErrClosed
	}
	return s.r.Read(p)
}

func (s *readStream) Write([]byte) (int, error) {
	if s.closed {
		return 0, core.ErrClosed
	}
	return 0, core.ErrUnsupported
}

func (s *readStream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, core.ErrClosed
	}
	return s.r.Seek(offset, whence)
}

func (s *readStream) Close() error {
	s.closed = true
	return nil
}

// Compile-time interface checks.
var (
	_ core.Provider               = (*Provider)(nil)
	_ core.VirtualProviderFactory = (*Factory)(nil)
	_ core.Stream                 = (*readStream)(nil)
)
