package core

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the cache counters. A nil *metrics is valid and records
// nothing, so nodes can call the helpers unconditionally.
type metrics struct {
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheRefreshes prometheus.Counter
	cacheEvictions prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portablestorage_cache_hits_total",
			Help: "Listings served from a valid entry cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portablestorage_cache_misses_total",
			Help: "Listings that found the entry cache stale or empty.",
		}),
		cacheRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portablestorage_cache_refreshes_total",
			Help: "Full entry-cache refreshes fetched from a provider.",
		}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portablestorage_cache_evictions_total",
			Help: "Cached child nodes evicted and closed.",
		}),
	}
	reg.MustRegister(m.cacheHits, m.cacheMisses, m.cacheRefreshes, m.cacheEvictions)
	return m
}

func (m *metrics) hit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *metrics) miss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *metrics) refresh() {
	if m != nil {
		m.cacheRefreshes.Inc()
	}
}

func (m *metrics) eviction() {
	if m != nil {
		m.cacheEvictions.Inc()
	}
}
