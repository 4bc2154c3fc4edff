package cache

import (
	"context"
	"errors"
	"hash/fnv"
	"sync/atomic"
	"time"

	"pointflow/pkg/circuitbreaker"
	"pointflow/pkg/logger"
	"pointflow/pkg/metrics"
)

// Manager runs cache calls through a circuit breaker. Cache failures are
// logged and never surface to callers: the source of truth is always the
// fetch function.
type Manager struct {
	cache   Cache
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger

	// generations is bumped on every Invalidate. A read-through only keeps
	// what it cached if no invalidation of the key's stripe happened while it
	// was fetching.
	generations [generationStripes]atomic.Uint64
}

const generationStripes = 256

func NewManager(c Cache, breaker *circuitbreaker.CircuitBreaker, log logger.Logger) *Manager {
	return &Manager{
		cache:   c,
		breaker: breaker,
		logger:  log.WithFields(map[string]interface{}{"component": "cache"}),
	}
}

// ReadThrough returns the cached value for key, calling fetch and caching its
// result on a miss.
func ReadThrough[T any](ctx context.Context, m *Manager, key string, fetch func() (T, error), expiration time.Duration) (T, error) {
	generation := m.generation(key)
	before := generation.Load()

	var cached T
	hit := false
	err := m.breaker.Execute(func() error {
		err := m.cache.Get(ctx, key, &cached)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		hit = err == nil
		return err
	})

	if hit {
		metrics.RecordCacheHit()
		return cached, nil
	}
	if err != nil && !circuitbreaker.IsRejected(err) {
		m.logger.Warn("Cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	metrics.RecordCacheMiss()

	value, err := fetch()
	if err != nil {
		return value, err
	}

	if generation.Load() != before {
		return value, nil
	}

	if err := m.breaker.Execute(func() error { return m.cache.Set(ctx, key, value, expiration) }); err != nil {
		if !circuitbreaker.IsRejected(err) {
			m.logger.Warn("Cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return value, nil
	}

	// A write may have invalidated the key between the check above and Set.
	if generation.Load() != before {
		m.delete(ctx, key)
	}

	return value, nil
}

func (m *Manager) Invalidate(ctx context.Context, key string) {
	m.generation(key).Add(1)
	m.delete(ctx, key)
}

func (m *Manager) generation(key string) *atomic.Uint64 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &m.generations[h.Sum32()%generationStripes]
}

func (m *Manager) delete(ctx context.Context, key string) {
	err := m.breaker.Execute(func() error { return m.cache.Delete(ctx, key) })
	if err != nil && !circuitbreaker.IsRejected(err) {
		m.logger.Warn("Cache invalidation failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.cache.Ping(ctx)
}

func (m *Manager) State() circuitbreaker.State {
	return m.breaker.State()
}
