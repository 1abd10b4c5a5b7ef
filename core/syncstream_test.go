package core

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandle(data []byte) *fakeStream {
	f := &fakeFile{data: data}
	return &fakeStream{file: f}
}

// TestSyncStreamIsolation verifies that two views over one physical handle
// keep independent cursors and observe only their own writes at their own
// positions.
func TestSyncStreamIsolation(t *testing.T) {
	base := newTestHandle(make([]byte, 16))
	a := NewSyncStream(base, false)
	b := NewSyncStream(base, false)
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()

	_, err := a.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = b.Seek(8, io.SeekStart)
	require.NoError(t, err)

	_, err = a.Write([]byte("aaaa"))
	require.NoError(t, err)
	_, err = b.Write([]byte("bbbb"))
	require.NoError(t, err)

	assert.Equal(t, int64(4), a.Position())
	assert.Equal(t, int64(12), b.Position())

	_, err = a.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(a, buf)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", string(buf))

	_, err = b.Seek(8, io.SeekStart)
	require.NoError(t, err)
	_, err = io.ReadFull(b, buf)
	require.NoError(t, err)
	assert.Equal(t, "bbbb", string(buf))
}

func TestSyncStreamConcurrentViews(t *testing.T) {
	const chunk = 64
	const views = 8
	base := newTestHandle(make([]byte, chunk*views))

	var wg sync.WaitGroup
	for i := 0; i < views; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := NewSyncStream(base, false)
			defer func() { _ = v.Close() }()
			payload := make([]byte, chunk)
			for j := range payload {
				payload[j] = byte(i)
			}
			if _, err := v.Seek(int64(i*chunk), io.SeekStart); err != nil {
				t.Error(err)
				return
			}
			if _, err := v.Write(payload); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	check := NewSyncStream(base, false)
	defer func() { _ = check.Close() }()
	for i := 0; i < views; i++ {
		buf := make([]byte, chunk)
		_, err := check.ReadAt(buf, int64(i*chunk))
		require.NoError(t, err)
		for _, b := range buf {
			require.Equal(t, byte(i), b, "view %d region corrupted", i)
		}
	}
}

func TestSyncStreamSeek(t *testing.T) {
	base := newTestHandle([]byte("0123456789"))
	s := NewSyncStream(base, false)
	defer func() { _ = s.Close() }()

	pos, err := s.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)

	buf := make([]byte, 3)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.Equal(t, "789", string(buf))

	pos, err = s.Seek(-1, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(9), pos)

	_, err = s.Seek(-1, io.SeekStart)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSyncStreamReadAtKeepsCursor(t *testing.T) {
	base := newTestHandle([]byte("0123456789"))
	s := NewSyncStream(base, false)
	defer func() { _ = s.Close() }()

	buf := make([]byte, 2)
	_, err := io.ReadFull(s, buf)
	require.NoError(t, err)
	require.Equal(t, "01", string(buf))

	at := make([]byte, 3)
	_, err = s.ReadAt(at, 5)
	require.NoError(t, err)
	assert.Equal(t, "567", string(at))

	assert.Equal(t, int64(2), s.Position(), "ReadAt must not move the logical cursor")
}

func TestSyncStreamSize(t *testing.T) {
	base := newTestHandle([]byte("abcdef"))
	s := NewSyncStream(base, false)
	defer func() { _ = s.Close() }()

	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)
}

func TestSyncStreamCloseOwnership(t *testing.T) {
	base := newTestHandle([]byte("x"))
	a := NewSyncStream(base, true)
	b := NewSyncStream(base, false)

	require.NoError(t, a.Close())
	assert.False(t, base.closed, "base stays open while another view exists")

	require.NoError(t, b.Close())
	assert.True(t, base.closed, "last view closes an owned base")

	require.NoError(t, b.Close(), "close is idempotent")

	_, err := a.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
}
