package core

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Root is the specialization of Storage that anchors a tree. It holds the
// configuration shared by every node: the entry-cache timeout, the case
// rule for name comparison and pattern matching, and the table of virtual
// provider factories keyed by file extension.
type Root struct {
	*Storage

	cfg     *config
	logger  *zap.Logger
	metrics *metrics

	// now is the clock used for cache-validity checks; overridable in
	// tests.
	now func() time.Time

	mountMu sync.RWMutex // guards cfg.mounts after construction
}

// New creates the root of a storage tree over the given provider. The
// provider is owned by the root and disposed on Close unless WithLeaveOpen
// was given.
func New(provider Provider, opts ...Option) (*Root, error) {
	if provider == nil {
		return nil, pathError("new", "", ErrInvalidArgument)
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	r := &Root{
		cfg:     cfg,
		logger:  cfg.logger,
		metrics: newMetrics(cfg.registerer),
		now:     time.Now,
	}
	r.Storage = &Storage{
		root:      r,
		name:      provider.Name(),
		path:      Separator,
		provider:  provider,
		leaveOpen: cfg.leaveOpen,
		children:  make(map[string]*Storage),
	}
	return r, nil
}

// RegisterVirtualProvider registers factory for the given file extension
// (e.g. ".zip"). Mutating the factory table invalidates the entire tree's
// caches, evicting already-mounted virtual storages, so storage-ness is
// re-evaluated against the new registrations.
func (r *Root) RegisterVirtualProvider(ext string, factory VirtualProviderFactory) {
	r.mountMu.Lock()
	r.cfg.mounts[normalizeExt(ext)] = factory
	r.mountMu.Unlock()
	r.logger.Debug("virtual provider registered", zap.String("extension", normalizeExt(ext)))
	r.invalidateMounts()
}

// UnregisterVirtualProvider removes the factory for the given extension and
// invalidates the entire tree's caches, evicting already-mounted virtual
// storages.
func (r *Root) UnregisterVirtualProvider(ext string) {
	r.mountMu.Lock()
	delete(r.cfg.mounts, normalizeExt(ext))
	r.mountMu.Unlock()
	r.invalidateMounts()
}

// VirtualProviderExtensions returns the registered extensions.
func (r *Root) VirtualProviderExtensions() []string {
	r.mountMu.RLock()
	defer r.mountMu.RUnlock()
	exts := make([]string, 0, len(r.cfg.mounts))
	for ext := range r.cfg.mounts {
		exts = append(exts, ext)
	}
	return exts
}

// CacheTimeout returns the configured entry-cache staleness window.
func (r *Root) CacheTimeout() time.Duration { return r.cfg.cacheTimeout }

// CaseSensitive reports whether name comparison and pattern matching honor
// case.
func (r *Root) CaseSensitive() bool { return r.cfg.caseSensitive }

func (r *Root) mountFactory(ext string) VirtualProviderFactory {
	if ext == "" {
		return nil
	}
	r.mountMu.RLock()
	defer r.mountMu.RUnlock()
	return r.cfg.mounts[ext]
}

func (r *Root) copyConcurrency() int { return r.cfg.copyConcurrency }

// caseKey normalizes name per the root's case rule for use as a cache key.
func (r *Root) caseKey(name string) string {
	if r.cfg.caseSensitive {
		return name
	}
	return strings.ToLower(name)
}
