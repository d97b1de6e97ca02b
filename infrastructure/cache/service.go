// Package cache is the process-wide, in-memory read-through cache used by
// the repositories. Entries are opaque values keyed by caller-supplied
// strings; invalidation is explicit, by exact key or by key prefix.
package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"

	"stockroom/config"
)

// FetchFn loads the value from the source of truth on a cache miss.
type FetchFn func(ctx context.Context) (any, error)

// Service exposes the read-through operations repositories need.
//
// GetOrCreate is atomic per key: concurrent callers for the same missing key
// share one fetch instead of racing to populate it. There is no cross-key
// atomicity, and nothing here invalidates on writes - that is the caller's
// contract.
type Service interface {
	GetOrCreate(ctx context.Context, key string, ttl time.Duration, fetch FetchFn) (any, error)
	Remove(key string)
	RemoveByPrefix(prefix string)
	Keys() []string
}

// GetOrCreate is the type-safe wrapper over Service.GetOrCreate.
func GetOrCreate[T any](ctx context.Context, s Service, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	result, err := s.GetOrCreate(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// Config holds the cache tuning knobs.
type Config struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

// FromAppConfig maps the viper cache section onto a Config.
func FromAppConfig(appConfig *config.Config) Config {
	cfg := Config{
		Capacity:           appConfig.Cache.Capacity,
		NumShards:          appConfig.Cache.NumShards,
		TTL:                appConfig.Cache.TTL,
		EvictionPercentage: appConfig.Cache.EvictionPercentage,
		EvictionInterval:   appConfig.Cache.EvictionInterval,
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = def.Capacity
	}
	if c.NumShards <= 0 {
		c.NumShards = def.NumShards
	}
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		c.EvictionPercentage = def.EvictionPercentage
	}
}

// sturdycService backs Service with sturdyc clients. A sturdyc client fixes
// its TTL at construction, so entries with a non-default TTL go to a lazily
// created client bucketed by that TTL; key operations fan out across all
// clients.
type sturdycService struct {
	cfg   Config
	def   *sturdyc.Client[any]
	byTTL *xsync.MapOf[time.Duration, *sturdyc.Client[any]]
}

// NewService builds the sturdyc-backed cache service.
func NewService(cfg Config) Service {
	cfg.applyDefaults()
	return &sturdycService{
		cfg:   cfg,
		def:   newClient(cfg, cfg.TTL),
		byTTL: xsync.NewMapOf[time.Duration, *sturdyc.Client[any]](),
	}
}

func newClient(cfg Config, ttl time.Duration) *sturdyc.Client[any] {
	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}
	return sturdyc.New[any](cfg.Capacity, cfg.NumShards, ttl, cfg.EvictionPercentage, opts...)
}

func (s *sturdycService) client(ttl time.Duration) *sturdyc.Client[any] {
	if ttl <= 0 || ttl == s.cfg.TTL {
		return s.def
	}
	client, _ := s.byTTL.LoadOrCompute(ttl, func() *sturdyc.Client[any] {
		return newClient(s.cfg, ttl)
	})
	return client
}

func (s *sturdycService) GetOrCreate(ctx context.Context, key string, ttl time.Duration, fetch FetchFn) (any, error) {
	return s.client(ttl).GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
}

func (s *sturdycService) Remove(key string) {
	s.eachClient(func(c *sturdyc.Client[any]) {
		c.Delete(key)
	})
}

func (s *sturdycService) RemoveByPrefix(prefix string) {
	s.eachClient(func(c *sturdyc.Client[any]) {
		for _, key := range c.ScanKeys() {
			if hasPrefix(key, prefix) {
				c.Delete(key)
			}
		}
	})
}

func (s *sturdycService) Keys() []string {
	var keys []string
	s.eachClient(func(c *sturdyc.Client[any]) {
		keys = append(keys, c.ScanKeys()...)
	})
	return keys
}

func (s *sturdycService) eachClient(fn func(*sturdyc.Client[any])) {
	fn(s.def)
	s.byTTL.Range(func(_ time.Duration, c *sturdyc.Client[any]) bool {
		fn(c)
		return true
	})
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
