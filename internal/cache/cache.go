package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/redact"
)

// DefaultTTL applies when Set is called with a non-positive ttl.
const DefaultTTL = 24 * time.Hour

// clearBatchSize bounds the number of keys sent in one backend delete.
const clearBatchSize = 500

// Backend is the key-value store behind a Cache.
type Backend interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
}

// Option configures a Cache.
type Option func(*Cache)

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// Cache is a JSON read-through cache with a registry of the keys it wrote.
// It is safe for concurrent use.
type Cache struct {
	backend    Backend
	defaultTTL time.Duration
	logger     *slog.Logger

	mu   sync.Mutex
	keys map[string]struct{}
}

// New creates a Cache over backend.
func New(backend Backend, logger *slog.Logger, opts ...Option) *Cache {
	if backend == nil {
		panic("backend cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		backend:    backend,
		defaultTTL: DefaultTTL,
		logger:     logger.With(slog.String("component", "cache")),
		keys:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateKey builds a cache key from a prefix and a parameter set. Keys are
// sorted before encoding so equal sets give equal keys whatever order they
// were built in. The result looks like prefix:{"a":1,"b":2}.
func GenerateKey(prefix string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(":{")
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(encodeJSON(name))
		b.WriteByte(':')
		b.Write(encodeJSON(params[name]))
	}
	b.WriteByte('}')
	return b.String()
}

func encodeJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Unencodable values still need a stable key.
		data, _ = json.Marshal(fmt.Sprintf("%v", v))
	}
	return data
}

// Get loads key into dest and reports whether it was a hit. Backend and
// decode errors are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	log := logger.FromContextOrDefault(ctx, c.logger)

	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		log.Warn("cache read failed, treating as miss",
			slog.String("key", key),
			slog.String("error", redact.Error(err)))
		return false
	}
	if !ok {
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		log.Warn("cached value could not be decoded, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// Set stores value under key. A non-positive ttl means the default TTL.
// The key is registered for Clear only if the write succeeds.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Warn("cache value could not be encoded",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}

	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		log.Warn("cache write failed",
			slog.String("key", key),
			slog.String("error", redact.Error(err)))
		return fmt.Errorf("cache set %s: %w", key, err)
	}

	c.mu.Lock()
	c.keys[key] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Delete removes key from the backend and the registry. A key whose backend
// delete fails stays registered so a later Clear retries it.
func (c *Cache) Delete(ctx context.Context, key string) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	if err := c.backend.Del(ctx, key); err != nil {
		log.Warn("cache delete failed",
			slog.String("key", key),
			slog.String("error", redact.Error(err)))
		return fmt.Errorf("cache delete %s: %w", key, err)
	}

	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
	return nil
}

// Clear deletes every key this Cache has set. Keys whose delete fails are
// put back into the registry and the errors are joined.
func (c *Cache) Clear(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	c.mu.Lock()
	keys := make([]string, 0, len(c.keys))
	for key := range c.keys {
		keys = append(keys, key)
	}
	c.keys = make(map[string]struct{})
	c.mu.Unlock()

	var errs []error
	for start := 0; start < len(keys); start += clearBatchSize {
		end := min(start+clearBatchSize, len(keys))
		batch := keys[start:end]
		if err := c.backend.Del(ctx, batch...); err != nil {
			errs = append(errs, err)
			c.mu.Lock()
			for _, key := range batch {
				c.keys[key] = struct{}{}
			}
			c.mu.Unlock()
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		log.Warn("cache clear incomplete",
			slog.Int("keys", len(keys)),
			slog.String("error", redact.Error(err)))
		return fmt.Errorf("cache clear: %w", err)
	}

	log.Debug("cache cleared", slog.Int("keys", len(keys)))
	return nil
}

// KnownKeys returns the number of keys currently registered.
func (c *Cache) KnownKeys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}
