// Package modelcache holds at most one loaded instance per cache key,
// serialises concurrent first-use of the same key behind a per-key lock,
// and evicts idle entries after a configurable TTL (spec §4.2).
package modelcache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/llamafarm/llamafarm-core/internal/logging"
)

// ModelRef is the loaded-model handle the cache hands back to callers.
// Adapters implement Unload(); the cache never inspects anything else
// about the concrete model.
type ModelRef interface {
	Unload() error
}

// Loader builds a fresh ModelRef for a cache key. Loaders must never
// re-enter GetOrLoad for the same key — doing so would deadlock against
// the per-key lock this cache holds across the loader call (spec §4.2
// critical deadlock constraint).
type Loader func() (ModelRef, error)

// entry is one cached model and its last-access bookkeeping.
type entry struct {
	ref          ModelRef
	lastAccessMs int64
}

const (
	// DefaultUnloadTimeout is the idle TTL after which an entry becomes
	// eligible for reaping (env MODEL_UNLOAD_TIMEOUT).
	DefaultUnloadTimeout = 300 * time.Second
	// DefaultCleanupInterval is the reaper tick period (env
	// CLEANUP_CHECK_INTERVAL).
	DefaultCleanupInterval = 60 * time.Second
)

// Cache is the typed, TTL-evicting model cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	locks   map[string]*sync.Mutex

	unloadTimeout   time.Duration
	cleanupInterval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithUnloadTimeout overrides DefaultUnloadTimeout.
func WithUnloadTimeout(d time.Duration) Option {
	return func(c *Cache) { c.unloadTimeout = d }
}

// WithCleanupInterval overrides DefaultCleanupInterval.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *Cache) { c.cleanupInterval = d }
}

// New creates a Cache and starts its background reaper. Call Close to
// stop the reaper.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:         make(map[string]*entry),
		locks:           make(map[string]*sync.Mutex),
		unloadTimeout:   DefaultUnloadTimeout,
		cleanupInterval: DefaultCleanupInterval,
		stopCh:          make(chan struct{}),
		logger:          logging.Logger.With().Str("component", "modelcache").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.wg.Add(1)
	go c.reapLoop()
	return c
}

// nowMs returns the current time in epoch milliseconds. It is a var so
// tests can fake time without sleeping for real TTLs.
var nowMs = func() int64 { return time.Now().UnixMilli() }

// keyLock returns (creating if needed) the per-key mutex for key. The
// map lock is only held long enough to look up/insert the entry; it is
// released before the caller locks the per-key mutex, so loads of
// different keys never block each other.
func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// GetOrLoad returns the cached ModelRef for key, loading it via loader
// on first use. Concurrent callers for the same key block on a per-key
// lock rather than a global one, so unrelated keys load in parallel;
// exactly one loader invocation happens per key (spec §8 invariant 1).
func (c *Cache) GetOrLoad(key string, loader Loader) (ModelRef, error) {
	if ref, ok := c.tryGet(key); ok {
		return ref, nil
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Double-check: another goroutine may have loaded while we waited
	// for the per-key lock.
	if ref, ok := c.tryGet(key); ok {
		return ref, nil
	}

	ref, err := loader()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &entry{ref: ref, lastAccessMs: nowMs()}
	c.mu.Unlock()

	return ref, nil
}

// tryGet returns the entry for key if present, touching its last-access
// timestamp.
func (c *Cache) tryGet(key string) (ModelRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e.lastAccessMs = nowMs()
	return e.ref, true
}

// Touch updates key's last-access timestamp without going through
// GetOrLoad, for fast paths that already hold a reference.
func (c *Cache) Touch(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.lastAccessMs = nowMs()
	}
}

// Drop removes key from the cache and unloads its model. Unload errors
// are logged and swallowed: the cache is not the source of truth for
// durable state, so a failed unload must not prevent the key slot from
// being freed for a future reload.
func (c *Cache) Drop(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if err := safeUnload(e.ref); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("model unload failed")
	}
}

// safeUnload calls ref.Unload(), converting a panic into an error so one
// misbehaving backend cannot crash the reaper or a caller of Drop.
func safeUnload(ref ModelRef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{r}
		}
	}()
	return ref.Unload()
}

type panicError struct{ v any }

func (p *panicError) Error() string { return "panic during unload" }

// Close stops the reaper goroutine. It does not unload remaining
// entries.
func (c *Cache) Close() {
	close(c.stopCh)
	c.wg.Wait()
}

// reapLoop runs on cleanupInterval, evicting entries idle past
// unloadTimeout. It never blocks on time.Sleep; it suspends via a
// time.Ticker selected against the stop channel.
func (c *Cache) reapLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.reapOnce()
		}
	}
}

// reapOnce computes the idle-key set under the map lock, then evicts
// each outside the lock so one slow/failing unload cannot stall the
// scan or take down the others.
func (c *Cache) reapOnce() {
	cutoff := nowMs() - c.unloadTimeout.Milliseconds()
	c.mu.Lock()
	var idle []string
	for key, e := range c.entries {
		if e.lastAccessMs <= cutoff {
			idle = append(idle, key)
		}
	}
	c.mu.Unlock()

	for _, key := range idle {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error().Interface("panic", r).Str("key", key).Msg("reaper eviction panicked")
				}
			}()
			c.Drop(key)
		}()
	}
}

// Len reports the number of currently cached entries (for tests/metrics).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the cache keys currently resident, for admin inspection
// (llamafarm-core cache stats).
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}
