package core

import (
	"errors"
	"io"
	"io/fs"
	"sort"
	"sync"
	"time"
)

// fakeStats carries counters and failure switches shared by every provider
// in a fake tree.
type fakeStats struct {
	mu                  sync.Mutex
	listCalls           int
	providerCloses      int
	failRemoveStream    bool
	failRemoveContainer bool
	attrsUnsupported    bool
}

func (st *fakeStats) lists() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.listCalls
}

func (st *fakeStats) closes() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.providerCloses
}

type fakeFile struct {
	mu    sync.Mutex
	data  []byte
	attrs Attributes
	mtime time.Time
}

type fakeDir struct {
	mu    sync.Mutex
	files map[string]*fakeFile
	dirs  map[string]*fakeDir
}

func newFakeDir() *fakeDir {
	return &fakeDir{files: make(map[string]*fakeFile), dirs: make(map[string]*fakeDir)}
}

// fakeProvider is a deterministic in-memory Provider used by the core
// tests. Locators are plain child names; containers are separate provider
// values sharing the same stats.
type fakeProvider struct {
	name  string
	loc   string
	dir   *fakeDir
	stats *fakeStats
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, dir: newFakeDir(), stats: &fakeStats{}}
}

func (p *fakeProvider) Name() string    { return p.name }
func (p *fakeProvider) Locator() string { return p.loc }

func (p *fakeProvider) Entries() ([]ProviderEntry, error) {
	p.stats.mu.Lock()
	p.stats.listCalls++
	p.stats.mu.Unlock()

	p.dir.mu.Lock()
	defer p.dir.mu.Unlock()
	var out []ProviderEntry
	for name := range p.dir.dirs {
		out = append(out, ProviderEntry{Name: name, Locator: name, IsContainer: true})
	}
	for name, f := range p.dir.files {
		f.mu.Lock()
		mtime := f.mtime
		size := int64(len(f.data))
		attrs := f.attrs
		f.mu.Unlock()
		out = append(out, ProviderEntry{
			Name: name, Locator: name, Size: size,
			LastWriteTime: &mtime, Attributes: attrs,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p *fakeProvider) OpenStream(locator string, mode OpenMode, access Access) (Stream, error) {
	p.dir.mu.Lock()
	f, ok := p.dir.files[locator]
	p.dir.mu.Unlock()
	if !ok {
		return nil, fs.ErrNotExist
	}
	st := &fakeStream{file: f}
	switch mode {
	case ModeTruncate:
		f.mu.Lock()
		f.data = nil
		f.mu.Unlock()
	case ModeAppend:
		f.mu.Lock()
		st.pos = int64(len(f.data))
		f.mu.Unlock()
	}
	return st, nil
}

func (p *fakeProvider) OpenContainer(locator string) (Provider, error) {
	p.dir.mu.Lock()
	sub, ok := p.dir.dirs[locator]
	p.dir.mu.Unlock()
	if !ok {
		return nil, fs.ErrNotExist
	}
	return &fakeProvider{name: locator, loc: p.loc + "/" + locator, dir: sub, stats: p.stats}, nil
}

func (p *fakeProvider) CreateContainer(name string) (Provider, ProviderEntry, error) {
	p.dir.mu.Lock()
	sub, ok := p.dir.dirs[name]
	if !ok {
		sub = newFakeDir()
		p.dir.dirs[name] = sub
	}
	p.dir.mu.Unlock()
	child := &fakeProvider{name: name, loc: p.loc + "/" + name, dir: sub, stats: p.stats}
	return child, ProviderEntry{Name: name, Locator: name, IsContainer: true}, nil
}

func (p *fakeProvider) CreateStream(name string) (Stream, ProviderEntry, error) {
	f := &fakeFile{mtime: time.Now()}
	p.dir.mu.Lock()
	p.dir.files[name] = f
	p.dir.mu.Unlock()
	return &fakeStream{file: f}, ProviderEntry{Name: name, Locator: name}, nil
}

func (p *fakeProvider) RemoveContainer(locator string) error {
	if p.stats.failRemoveContainer {
		return errors.New("simulated removal failure")
	}
	p.dir.mu.Lock()
	defer p.dir.mu.Unlock()
	if _, ok := p.dir.dirs[locator]; !ok {
		return fs.ErrNotExist
	}
	delete(p.dir.dirs, locator)
	return nil
}

func (p *fakeProvider) RemoveStream(locator string) error {
	if p.stats.failRemoveStream {
		return errors.New("simulated removal failure")
	}
	p.dir.mu.Lock()
	defer p.dir.mu.Unlock()
	if _, ok := p.dir.files[locator]; !ok {
		return fs.ErrNotExist
	}
	delete(p.dir.files, locator)
	return nil
}

func (p *fakeProvider) Rename(locator, newName string) (string, error) {
	p.dir.mu.Lock()
	defer p.dir.mu.Unlock()
	if f, ok := p.dir.files[locator]; ok {
		delete(p.dir.files, locator)
		p.dir.files[newName] = f
		return newName, nil
	}
	if d, ok := p.dir.dirs[locator]; ok {
		delete(p.dir.dirs, locator)
		p.dir.dirs[newName] = d
		return newName, nil
	}
	return "", fs.ErrNotExist
}

func (p *fakeProvider) SetAttributes(locator string, attrs Attributes) error {
	if p.stats.attrsUnsupported {
		return ErrUnsupported
	}
	p.dir.mu.Lock()
	defer p.dir.mu.Unlock()
	if f, ok := p.dir.files[locator]; ok {
		f.mu.Lock()
		f.attrs = attrs
		f.mu.Unlock()
		return nil
	}
	return fs.ErrNotExist
}

func (p *fakeProvider) FreeSpace() (int64, error) { return 42 << 20, nil }

func (p *fakeProvider) Close() error {
	p.stats.mu.Lock()
	p.stats.providerCloses++
	p.stats.mu.Unlock()
	return nil
}

// fakeStream is a seekable read-write stream over a fakeFile.
type fakeStream struct {
	file   *fakeFile
	pos    int64
	closed bool
}

func (s *fakeStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, fs.ErrClosed
	}
	s.file.mu.Lock()
	defer s.file.mu.Unlock()
	if s.pos >= int64(len(s.file.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.file.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *fakeStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fs.ErrClosed
	}
	s.file.mu.Lock()
	defer s.file.mu.Unlock()
	end := s.pos + int64(len(p))
	if end > int64(len(s.file.data)) {
		grown := make([]byte, end)
		copy(grown, s.file.data)
		s.file.data = grown
	}
	copy(s.file.data[s.pos:end], p)
	s.pos = end
	s.file.mtime = time.Now()
	return len(p), nil
}

func (s *fakeStream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, fs.ErrClosed
	}
	s.file.mu.Lock()
	size := int64(len(s.file.data))
	s.file.mu.Unlock()
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.pos + offset
	case io.SeekEnd:
		pos = size + offset
	default:
		return 0, fs.ErrInvalid
	}
	if pos < 0 {
		return 0, fs.ErrInvalid
	}
	s.pos = pos
	return pos, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// fakeFactory mounts any stream as a fresh in-memory provider, recording
// the streams it received.
type fakeFactory struct {
	mu      sync.Mutex
	streams []Stream
}

func (f *fakeFactory) CreateProvider(stream Stream, locator, name string) (Provider, error) {
	f.mu.Lock()
	f.streams = append(f.streams, stream)
	f.mu.Unlock()
	return newFakeProvider(name), nil
}

var _ Provider = (*fakeProvider)(nil)
var _ VirtualProviderFactory = (*fakeFactory)(nil)
