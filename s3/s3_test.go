package s3

import (
	"bytes"
	"io/fs"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jindal1979/PortableStorage/core"
	"github.com/jindal1979/PortableStorage/s3/internal/errs"
	"github.com/jindal1979/PortableStorage/s3/internal/s3util"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid config with credentials",
			config: Config{
				Endpoint:  "localhost:9000",
				Bucket:    "test-bucket",
				AccessKey: "minioadmin",
				SecretKey: "minioadmin",
			},
		},
		{
			name:   "valid config with client",
			config: Config{Client: &minio.Client{}, Bucket: "test-bucket"},
		},
		{
			name: "missing bucket",
			config: Config{
				Endpoint:  "localhost:9000",
				AccessKey: "minioadmin",
				SecretKey: "minioadmin",
			},
			wantErr: "bucket is required",
		},
		{
			name: "missing endpoint without client",
			config: Config{
				Bucket:    "test-bucket",
				AccessKey: "minioadmin",
				SecretKey: "minioadmin",
			},
			wantErr: "endpoint is required when client is not provided",
		},
		{
			name: "missing access key without client",
			config: Config{
				Endpoint:  "localhost:9000",
				Bucket:    "test-bucket",
				SecretKey: "minioadmin",
			},
			wantErr: "access key is required when client is not provided",
		},
		{
			name: "missing secret key without client",
			config: Config{
				Endpoint:  "localhost:9000",
				Bucket:    "test-bucket",
				AccessKey: "minioadmin",
			},
			wantErr: "secret key is required when client is not provided",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNewInvalidConfig(t *testing.T) {
	p, err := New(Config{Endpoint: "localhost:9000"})
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewNamesAndLocator(t *testing.T) {
	p, err := New(Config{Client: &minio.Client{}, Bucket: "data"})
	require.NoError(t, err)
	assert.Equal(t, "data", p.Name())
	assert.Equal(t, "data", p.Locator())

	p, err = New(Config{Client: &minio.Client{}, Bucket: "data", Prefix: "/trees/main/"})
	require.NoError(t, err)
	assert.Equal(t, "main", p.Name())
	assert.Equal(t, "data/trees/main", p.Locator())

	child := p.child("docs")
	assert.Equal(t, "docs", child.Name())
	assert.Equal(t, "data/trees/main/docs", child.Locator())
}

func TestKeyNormalization(t *testing.T) {
	assert.Equal(t, "", s3util.NormalizePrefix(""))
	assert.Equal(t, "", s3util.NormalizePrefix("."))
	assert.Equal(t, "a/b", s3util.NormalizePrefix("/a/b/"))
	assert.Equal(t, "a/b", s3util.NormalizePrefix(`a\b`))
	assert.Equal(t, "b", s3util.NormalizePrefix("a/../b"))

	assert.Equal(t, "x", s3util.ChildKey("", "x"))
	assert.Equal(t, "a/x", s3util.ChildKey("a", "x"))

	assert.Equal(t, "", s3util.DirKey(""))
	assert.Equal(t, "a/b/", s3util.DirKey("a/b"))
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, errs.Translate(nil))
	assert.ErrorIs(t, errs.Translate(minio.ErrorResponse{Code: "NoSuchKey"}), fs.ErrNotExist)
	assert.ErrorIs(t, errs.Translate(minio.ErrorResponse{Code: "NoSuchBucket"}), fs.ErrNotExist)
	assert.ErrorIs(t, errs.Translate(minio.ErrorResponse{Code: "AccessDenied"}), fs.ErrPermission)

	other := errs.Translate(minio.ErrorResponse{Code: "SlowDown", Message: "throttled"})
	require.Error(t, other)
	assert.NotErrorIs(t, other, fs.ErrNotExist)
}

func TestOpenStreamUnsupportedModes(t *testing.T) {
	p := &Provider{bucket: "b", uploadThreshold: defaultUploadThreshold}

	_, err := p.OpenStream("x", core.ModeOpen, core.AccessReadWrite)
	assert.ErrorIs(t, err, core.ErrUnsupported)

	_, err = p.OpenStream("x", core.ModeAppend, core.AccessWrite)
	assert.ErrorIs(t, err, core.ErrUnsupported)
}

func TestWriteObjectBuffering(t *testing.T) {
	p := &Provider{uploadThreshold: 16}
	w := newWriteObject(p, "key")

	n, err := w.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = w.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(w.buffered()))

	// Past the threshold with no client configured the writer keeps
	// buffering instead of streaming.
	big := bytes.Repeat([]byte("x"), 32)
	_, err = w.Write(big)
	require.NoError(t, err)
	assert.Equal(t, 11+32, len(w.buffered()))

	_, err = w.Read(make([]byte, 4))
	assert.ErrorIs(t, err, core.ErrUnsupported)
	_, err = w.Seek(0, 0)
	assert.ErrorIs(t, err, core.ErrUnsupported)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")
	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, core.ErrClosed)
}
