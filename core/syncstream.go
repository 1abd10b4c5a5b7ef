package core

import (
	"io"
	"sync"
)

// handleLock serializes cursor-dependent operations across every SyncStream
// view created over the same physical stream.
type handleLock struct {
	mu       sync.Mutex
	refs     int
	ownsBase bool
}

// lockRegistry maps a physical stream's interface identity to its shared
// lock, so views over the same handle contend on the same mutex while
// unrelated streams never do.
var lockRegistry = struct {
	sync.Mutex
	locks map[Stream]*handleLock
}{locks: make(map[Stream]*handleLock)}

func acquireLock(base Stream, ownsBase bool) *handleLock {
	lockRegistry.Lock()
	defer lockRegistry.Unlock()
	hl, ok := lockRegistry.locks[base]
	if !ok {
		hl = &handleLock{}
		lockRegistry.locks[base] = hl
	}
	hl.refs++
	if ownsBase {
		hl.ownsBase = true
	}
	return hl
}

// releaseLock drops one reference and reports whether the base stream
// should be closed (last view gone and some view owned the base).
func releaseLock(base Stream) bool {
	lockRegistry.Lock()
	defer lockRegistry.Unlock()
	hl, ok := lockRegistry.locks[base]
	if !ok {
		return false
	}
	hl.refs--
	if hl.refs > 0 {
		return false
	}
	delete(lockRegistry.locks, base)
	return hl.ownsBase
}

// SyncStream decorates a shared physical stream with an independent logical
// cursor. Two views created over the same physical handle serialize their
// read, write and seek operations on a shared lock, and each restores its
// own cursor before acting, so both observe a correct independent position.
//
// All access to the physical handle must go through views for the isolation
// to hold.
type SyncStream struct {
	base Stream
	lock *handleLock

	mu     sync.Mutex // guards pos and closed for this view
	pos    int64
	closed bool
}

// NewSyncStream creates a view over base with its cursor at zero. When
// closeBase is true, the physical stream is closed once the last view over
// it is closed.
func NewSyncStream(base Stream, closeBase bool) *SyncStream {
	return &SyncStream{
		base: base,
		lock: acquireLock(base, closeBase),
	}
}

// Read reads from the view's logical position, advancing it by the number
// of bytes read.
func (s *SyncStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.lock.mu.Lock()
	defer s.lock.mu.Unlock()
	if _, err := s.base.Seek(s.pos, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := s.base.Read(p)
	s.pos += int64(n)
	return n, err
}

// Write writes at the view's logical position, advancing it by the number
// of bytes written.
func (s *SyncStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.lock.mu.Lock()
	defer s.lock.mu.Unlock()
	if _, err := s.base.Seek(s.pos, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := s.base.Write(p)
	s.pos += int64(n)
	return n, err
}

// Seek sets the view's logical position without eagerly moving the
// physical cursor. Seeking relative to the end queries the physical
// stream's length.
func (s *SyncStream) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.pos + offset
	case io.SeekEnd:
		size, err := s.size()
		if err != nil {
			return 0, err
		}
		pos = size + offset
	default:
		return 0, ErrInvalidArgument
	}
	if pos < 0 {
		return 0, ErrInvalidArgument
	}
	s.pos = pos
	return pos, nil
}

// ReadAt reads len(p) bytes starting at byte offset off without touching
// the view's logical position.
func (s *SyncStream) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.lock.mu.Lock()
	defer s.lock.mu.Unlock()
	if _, err := s.base.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.base, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// Size returns the length of the physical stream.
func (s *SyncStream) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.size()
}

// size queries the physical length. The physical cursor is not restored
// because every operation seeks to its own position first.
func (s *SyncStream) size() (int64, error) {
	s.lock.mu.Lock()
	defer s.lock.mu.Unlock()
	return s.base.Seek(0, io.SeekEnd)
}

// Position returns the view's logical cursor.
func (s *SyncStream) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Flush commits buffered writes when the physical stream supports it.
func (s *SyncStream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	type syncer interface{ Sync() error }
	if sy, ok := s.base.(syncer); ok {
		s.lock.mu.Lock()
		defer s.lock.mu.Unlock()
		return sy.Sync()
	}
	return nil
}

// Close releases the view. The physical stream is closed when the last
// owning view over it is closed. Close is idempotent.
func (s *SyncStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if releaseLock(s.base) {
		return s.base.Close()
	}
	return nil
}

// Compile-time interface checks.
var (
	_ Stream      = (*SyncStream)(nil)
	_ io.ReaderAt = (*SyncStream)(nil)
)
