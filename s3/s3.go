package s3

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
	"golang.org/x/sync/errgroup"

	"github.com/jindal1979/PortableStorage/core"
	"github.com/jindal1979/PortableStorage/s3/internal/errs"
	"github.com/jindal1979/PortableStorage/s3/internal/s3util"
)

const defaultUploadThreshold = 5 * 1024 * 1024

// Provider implements core.Provider over one key prefix of an S3 bucket.
// Containers are virtual: a sub-container is the same bucket with a longer
// prefix, held as a zero-byte marker object so empty containers survive
// listing.
type Provider struct {
	client            *minio.Client
	bucket            string
	prefix            string
	name              string
	uploadThreshold   int64
	renameConcurrency int
}

// New creates a provider over the bucket and prefix described by cfg.
func New(cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := cfg.Client
	if client == nil {
		var err error
		client, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 client: %w", err)
		}
	}

	threshold := cfg.UploadThreshold
	if threshold <= 0 {
		threshold = defaultUploadThreshold
	}
	concurrency := cfg.RenameConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	prefix := s3util.NormalizePrefix(cfg.Prefix)
	name := cfg.Bucket
	if prefix != "" {
		name = prefix[strings.LastIndex(prefix, "/")+1:]
	}

	return &Provider{
		client:            client,
		bucket:            cfg.Bucket,
		prefix:            prefix,
		name:              name,
		uploadThreshold:   threshold,
		renameConcurrency: concurrency,
	}, nil
}

// Name returns the provider's display name, the final prefix segment or the
// bucket name at the bucket root.
func (p *Provider) Name() string { return p.name }

// Locator returns the provider's bucket-qualified address.
func (p *Provider) Locator() string {
	if p.prefix == "" {
		return p.bucket
	}
	return p.bucket + "/" + p.prefix
}

func (p *Provider) key(name string) string {
	return s3util.ChildKey(p.prefix, name)
}

// child returns a provider over the same bucket with the prefix extended by
// one segment.
func (p *Provider) child(name string) *Provider {
	c := *p
	c.prefix = p.key(name)
	c.name = name
	return &c
}

// Entries lists the direct children of the provider's prefix using a
// delimited (non-recursive) listing. Marker objects are folded into their
// containers.
func (p *Provider) Entries() ([]core.ProviderEntry, error) {
	ctx := context.Background()
	listPrefix := s3util.DirKey(p.prefix)

	var entries []core.ProviderEntry
	for object := range p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: false,
	}) {
		if object.Err != nil {
			return nil, errs.Translate(object.Err)
		}
		if object.Key == listPrefix {
			continue
		}

		relName := strings.TrimPrefix(object.Key, listPrefix)
		isDir := strings.HasSuffix(object.Key, "/")
		if isDir {
			relName = strings.TrimSuffix(relName, "/")
		}
		if relName == "" {
			continue
		}

		if isDir {
			entries = append(entries, core.ProviderEntry{
				Name:        relName,
				Locator:     relName,
				IsContainer: true,
			})
			continue
		}
		mtime := object.LastModified
		entries = append(entries, core.ProviderEntry{
			Name:          relName,
			Locator:       relName,
			Size:          object.Size,
			LastWriteTime: &mtime,
		})
	}

	return entries, nil
}

// OpenStream opens the object addressed by locator. Reads stream the object
// through range requests; writes buffer up to the upload threshold and then
// switch to a streaming upload committed on Close.
//
// Read-write access and append mode cannot be mapped onto object storage
// and report ErrUnsupported.
func (p *Provider) OpenStream(locator string, mode core.OpenMode, access core.Access) (core.Stream, error) {
	if access == core.AccessReadWrite {
		return nil, fmt.Errorf("%w: read-write access not supported on object storage", core.ErrUnsupported)
	}
	if mode == core.ModeAppend {
		return nil, fmt.Errorf("%w: append not supported on object storage", core.ErrUnsupported)
	}
	if access.CanWrite() {
		return newWriteObject(p, p.key(locator)), nil
	}
	return newReadObject(context.Background(), p, p.key(locator))
}

// OpenContainer opens the virtual directory addressed by locator as a
// provider over the extended prefix. Existence was established by the
// listing that produced the locator; S3 itself has no directory to check.
func (p *Provider) OpenContainer(locator string) (core.Provider, error) {
	return p.child(locator), nil
}

// CreateContainer writes a zero-byte marker object so the new container
// shows up in listings before it holds anything.
func (p *Provider) CreateContainer(name string) (core.Provider, core.ProviderEntry, error) {
	ctx := context.Background()
	marker := s3util.DirKey(p.key(name))
	_, err := p.client.PutObject(ctx, p.bucket, marker, strings.NewReader(""), 0, minio.PutObjectOptions{})
	if err != nil {
		return nil, core.ProviderEntry{}, errs.Translate(err)
	}
	return p.child(name), core.ProviderEntry{Name: name, Locator: name, IsContainer: true}, nil
}

// CreateStream returns a write stream for a new object. The object becomes
// visible when the stream is closed.
func (p *Provider) CreateStream(name string) (core.Stream, core.ProviderEntry, error) {
	return newWriteObject(p, p.key(name)), core.ProviderEntry{Name: name, Locator: name}, nil
}

// RemoveContainer batch-deletes every object under the container's prefix,
// including its marker.
func (p *Provider) RemoveContainer(locator string) error {
	ctx := context.Background()
	prefix := s3util.DirKey(p.key(locator))

	objectsCh := make(chan minio.ObjectInfo, 100)
	var listErr error
	go func() {
		defer close(objectsCh)
		for object := range p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if object.Err != nil {
				listErr = object.Err
				return
			}
			objectsCh <- object
		}
	}()

	var removeErr error
	for err := range p.client.RemoveObjects(ctx, p.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if err.Err != nil && removeErr == nil {
			removeErr = err.Err
		}
	}

	if listErr != nil {
		return errs.Translate(listErr)
	}
	return errs.Translate(removeErr)
}

// RemoveStream removes the object addressed by locator. The object is
// stat-ed first because RemoveObject succeeds silently on absent keys.
func (p *Provider) RemoveStream(locator string) error {
	ctx := context.Background()
	key := p.key(locator)
	if _, err := p.client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{}); err != nil {
		return errs.Translate(err)
	}
	return errs.Translate(p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{}))
}

// Rename moves the item to a sibling key via copy and delete. For
// containers every object under the prefix is copied with bounded
// concurrency before the originals are batch-deleted.
//
// The operation is not atomic: a failure mid-way can leave objects at both
// keys.
func (p *Provider) Rename(locator, newName string) (string, error) {
	ctx := context.Background()
	oldKey := p.key(locator)
	newKey := p.key(newName)

	if _, err := p.client.StatObject(ctx, p.bucket, oldKey, minio.StatObjectOptions{}); err == nil {
		if err := p.renameObject(ctx, oldKey, newKey); err != nil {
			return "", err
		}
		return newName, nil
	}

	copied, err := p.parallelCopy(ctx, s3util.DirKey(oldKey), s3util.DirKey(newKey))
	if err != nil {
		return "", errs.Translate(err)
	}
	if len(copied) == 0 {
		return "", fs.ErrNotExist
	}

	toDelete := make(chan minio.ObjectInfo, len(copied))
	go func() {
		defer close(toDelete)
		for _, key := range copied {
			toDelete <- minio.ObjectInfo{Key: key}
		}
	}()
	for err := range p.client.RemoveObjects(ctx, p.bucket, toDelete, minio.RemoveObjectsOptions{}) {
		if err.Err != nil {
			return "", errs.Translate(err.Err)
		}
	}

	return newName, nil
}

func (p *Provider) renameObject(ctx context.Context, oldKey, newKey string) error {
	src := minio.CopySrcOptions{Bucket: p.bucket, Object: oldKey}
	dst := minio.CopyDestOptions{Bucket: p.bucket, Object: newKey}
	if _, err := p.client.CopyObject(ctx, dst, src); err != nil {
		return errs.Translate(err)
	}
	return errs.Translate(p.client.RemoveObject(ctx, p.bucket, oldKey, minio.RemoveObjectOptions{}))
}

// parallelCopy copies every object under oldPrefix to newPrefix using a
// bounded worker pool and returns the source keys copied, for cleanup.
func (p *Provider) parallelCopy(ctx context.Context, oldPrefix, newPrefix string) ([]string, error) {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.renameConcurrency)

	var copiedMu sync.Mutex
	var copied []string

	for object := range p.client.ListObjects(egCtx, p.bucket, minio.ListObjectsOptions{
		Prefix:    oldPrefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return copied, object.Err
		}
		objectKey := object.Key
		eg.Go(func() error {
			newKey := newPrefix + strings.TrimPrefix(objectKey, oldPrefix)
			src := minio.CopySrcOptions{Bucket: p.bucket, Object: objectKey}
			dst := minio.CopyDestOptions{Bucket: p.bucket, Object: newKey}
			if _, err := p.client.CopyObject(egCtx, dst, src); err != nil {
				return fmt.Errorf("copy %s to %s: %w", objectKey, newKey, err)
			}
			copiedMu.Lock()
			copied = append(copied, objectKey)
			copiedMu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return copied, err
	}
	return copied, nil
}

// SetAttributes stores attrs as object tags.
func (p *Provider) SetAttributes(locator string, attrs core.Attributes) error {
	ctx := context.Background()
	key := p.key(locator)
	if _, err := p.client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{}); err != nil {
		return errs.Translate(err)
	}
	objectTags, err := tags.NewTags(map[string]string(attrs), true)
	if err != nil {
		return errors.Join(core.ErrInvalidArgument, err)
	}
	return errs.Translate(p.client.PutObjectTagging(ctx, p.bucket, key, objectTags, minio.PutObjectTaggingOptions{}))
}

// FreeSpace is unbounded on object storage and reports ErrUnsupported.
func (p *Provider) FreeSpace() (int64, error) {
	return 0, core.ErrUnsupported
}

// Close releases nothing; the client holds no per-provider resources and is
// shared with every sub-container provider.
func (p *Provider) Close() error { return nil }

// Compile-time interface check.
var _ core.Provider = (*Provider)(nil)
