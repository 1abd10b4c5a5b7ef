package core

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultCacheTimeout is the entry-cache staleness window selected when a
// negative duration is passed to WithCacheTimeout.
const DefaultCacheTimeout = 5 * time.Second

// defaultCopyConcurrency bounds concurrent stream transfers during subtree
// copies.
const defaultCopyConcurrency = 10

// Option configures root construction.
type Option func(*config)

type config struct {
	cacheTimeout    time.Duration
	caseSensitive   bool
	leaveOpen       bool
	mounts          map[string]VirtualProviderFactory
	logger          *zap.Logger
	registerer      prometheus.Registerer
	copyConcurrency int
}

func defaultConfig() *config {
	return &config{
		cacheTimeout:    DefaultCacheTimeout,
		caseSensitive:   true,
		mounts:          make(map[string]VirtualProviderFactory),
		logger:          zap.NewNop(),
		copyConcurrency: defaultCopyConcurrency,
	}
}

// WithCacheTimeout sets how long a full entry-cache refresh is trusted.
// Zero disables caching entirely; a negative duration selects
// DefaultCacheTimeout.
func WithCacheTimeout(d time.Duration) Option {
	return func(c *config) {
		if d < 0 {
			d = DefaultCacheTimeout
		}
		c.cacheTimeout = d
	}
}

// WithCaseInsensitive makes name comparison and pattern matching ignore
// case. The default is case-sensitive.
func WithCaseInsensitive() Option {
	return func(c *config) { c.caseSensitive = false }
}

// WithLeaveOpen marks the root's provider as borrowed: closing the root
// will not dispose it. Use when the caller retains ownership of the
// underlying handle.
func WithLeaveOpen() Option {
	return func(c *config) { c.leaveOpen = true }
}

// WithVirtualProvider registers a virtual provider factory for the given
// file extension (e.g. ".zip") at construction time. Further factories can
// be registered later via Root.RegisterVirtualProvider.
func WithVirtualProvider(ext string, factory VirtualProviderFactory) Option {
	return func(c *config) { c.mounts[normalizeExt(ext)] = factory }
}

// WithLogger sets the logger used for cache and mount diagnostics. The
// default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics registers cache metrics with the given registerer. Without
// this option no metrics are collected.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}

// WithCopyConcurrency bounds the number of concurrent stream transfers
// during subtree copies. Values below one select the default.
func WithCopyConcurrency(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.copyConcurrency = n
		}
	}
}

// normalizeExt lower-cases ext and ensures the leading dot.
func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
