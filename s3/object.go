package s3

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/jindal1979/PortableStorage/core"
	"github.com/jindal1979/PortableStorage/s3/internal/errs"
)

// readObject streams an object without buffering it in memory. Seek reopens
// the object with a range request; ReadAt issues a dedicated range request
// that leaves the main stream position untouched.
type readObject struct {
	p      *Provider
	key    string
	obj    *minio.Object
	size   int64
	offset int64
	closed bool
}

func newReadObject(ctx context.Context, p *Provider, key string) (*readObject, error) {
	info, err := p.client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, errs.Translate(err)
	}
	obj, err := p.client.GetObject(ctx, p.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errs.Translate(err)
	}
	return &readObject{p: p, key: key, obj: obj, size: info.Size}, nil
}

func (f *readObject) Read(p []byte) (int, error) {
	if f.closed {
		return 0, core.ErrClosed
	}
	n, err := f.obj.Read(p)
	f.offset += int64(n)
	if n > 0 && errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (f *readObject) Write([]byte) (int, error) {
	return 0, core.ErrUnsupported
}

// Seek reopens the object with a range request starting at the new offset.
func (f *readObject) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, core.ErrClosed
	}

	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = f.offset + offset
	case io.SeekEnd:
		newOffset = f.size + offset
	default:
		return 0, core.ErrInvalidArgument
	}
	if newOffset < 0 {
		return 0, core.ErrInvalidArgument
	}
	if newOffset == f.offset {
		return newOffset, nil
	}

	_ = f.obj.Close()

	opts := minio.GetObjectOptions{}
	if newOffset > 0 {
		if err := opts.SetRange(newOffset, 0); err != nil {
			return 0, err
		}
	}
	obj, err := f.p.client.GetObject(context.Background(), f.p.bucket, f.key, opts)
	if err != nil {
		return 0, errs.Translate(err)
	}

	f.obj = obj
	f.offset = newOffset
	return newOffset, nil
}

func (f *readObject) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, core.ErrClosed
	}
	if off < 0 {
		return 0, core.ErrInvalidArgument
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, off+int64(len(p))-1); err != nil {
		return 0, err
	}
	obj, err := f.p.client.GetObject(context.Background(), f.p.bucket, f.key, opts)
	if err != nil {
		return 0, errs.Translate(err)
	}
	defer func() {
		_ = obj.Close()
	}()

	return io.ReadFull(obj, p)
}

func (f *readObject) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.obj.Close()
}

// writeObject accumulates writes in memory until the upload threshold is
// exceeded, then switches to a background streaming upload through a pipe.
// The object is committed when the stream is closed.
type writeObject struct {
	p   *Provider
	key string

	buffer *bytes.Buffer
	pipeW  *io.PipeWriter
	putRes chan error
	closed bool
}

func newWriteObject(p *Provider, key string) *writeObject {
	return &writeObject{p: p, key: key, buffer: new(bytes.Buffer)}
}

func (f *writeObject) Read([]byte) (int, error) {
	return 0, core.ErrUnsupported
}

func (f *writeObject) Seek(int64, int) (int64, error) {
	return 0, core.ErrUnsupported
}

func (f *writeObject) Write(p []byte) (int, error) {
	if f.closed {
		return 0, core.ErrClosed
	}

	if f.pipeW != nil {
		return f.pipeW.Write(p)
	}
	if int64(f.buffer.Len()+len(p)) <= f.p.uploadThreshold {
		return f.buffer.Write(p)
	}

	// Without a configured client (unit tests) keep buffering.
	if f.p.client == nil || f.p.bucket == "" {
		return f.buffer.Write(p)
	}

	return f.transitionToStreaming(p)
}

// transitionToStreaming starts a background upload fed through a pipe and
// flushes the accumulated buffer into it.
func (f *writeObject) transitionToStreaming(p []byte) (int, error) {
	pr, pw := io.Pipe()
	f.pipeW = pw
	f.putRes = make(chan error, 1)

	go func() {
		_, err := f.p.client.PutObject(
			context.Background(),
			f.p.bucket,
			f.key,
			pr,
			-1,
			minio.PutObjectOptions{ContentType: "application/octet-stream"},
		)
		_ = pr.Close()
		f.putRes <- errs.Translate(err)
		close(f.putRes)
	}()

	if f.buffer.Len() > 0 {
		if _, err := f.pipeW.Write(f.buffer.Bytes()); err != nil {
			return 0, err
		}
	}
	f.buffer = nil

	return f.pipeW.Write(p)
}

// Flush uploads the buffered contents without closing the stream. In
// streaming mode data is already in flight and Flush is a no-op.
func (f *writeObject) Flush() error {
	if f.closed {
		return core.ErrClosed
	}
	if f.pipeW != nil || f.buffer == nil {
		return nil
	}
	return f.upload(context.Background())
}

// Close commits the object. Buffered content is uploaded in one PutObject;
// a streaming upload is finalized by closing the pipe and waiting for the
// background result.
func (f *writeObject) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	if f.pipeW != nil {
		_ = f.pipeW.Close()
		return <-f.putRes
	}
	if f.buffer != nil && f.p.client != nil {
		return f.upload(context.Background())
	}
	return nil
}

func (f *writeObject) upload(ctx context.Context) error {
	reader := bytes.NewReader(f.buffer.Bytes())
	_, err := f.p.client.PutObject(
		ctx,
		f.p.bucket,
		f.key,
		reader,
		int64(f.buffer.Len()),
		minio.PutObjectOptions{ContentType: "application/octet-stream"},
	)
	return errs.Translate(err)
}

// buffered returns the bytes accumulated so far, for tests that exercise
// the buffering logic without a live client.
func (f *writeObject) buffered() []byte {
	if f.buffer == nil {
		return nil
	}
	return f.buffer.Bytes()
}

// Compile-time interface checks.
var (
	_ core.Stream = (*readObject)(nil)
	_ io.ReaderAt = (*readObject)(nil)
	_ core.Stream = (*writeObject)(nil)
)
