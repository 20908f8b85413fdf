// Package cache keeps rendered planner responses in redis, keyed by the
// dataset generation they were computed against.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/maps"

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/logging"
)

const keyPrefix = "planner"

// JourneyCache is a JSON value cache. A nil *JourneyCache is valid and
// never hits.
type JourneyCache struct {
	client *redis.Client
	cache  *cache.Cache[string]
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to the redis server named in cfg. It returns nil when the
// cache is disabled.
func New(ctx context.Context, cfg appconf.CacheConfig, logger *slog.Logger) (*JourneyCache, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return NewWithClient(client, cfg.TTL.Std(), logger), nil
}

// NewWithClient wraps an existing client. Values expire after ttl; zero keeps
// them until evicted.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *JourneyCache {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))
	return &JourneyCache{
		client: client,
		cache:  cache.New[string](redisStore),
		ttl:    ttl,
		logger: logging.Component(logger, "journey_cache"),
	}
}

// Get decodes the value stored under key into dst. Misses, redis failures and
// undecodable values all report false.
func (c *JourneyCache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil {
		return false
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.logger.Warn("dropping undecodable cache entry", slog.String("key", key), slog.String("error", err.Error()))
		_ = c.cache.Delete(ctx, key)
		return false
	}
	return true
}

// Set stores v as JSON under key.
func (c *JourneyCache) Set(ctx context.Context, key string, v any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	if err := c.cache.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (c *JourneyCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

func (c *JourneyCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Key derives a cache key from the generation version, an operation name and
// the request parameters. Parameter order does not matter; the api key is
// left out so that all clients share entries.
func Key(version uint64, operation string, params map[string][]string) string {
	h := sha256.New()
	for _, name := range slices.Sorted(maps.Keys(params)) {
		if name == "key" {
			continue
		}
		values := slices.Clone(params[name])
		slices.Sort(values)
		fmt.Fprintf(h, "%s=%s\n", name, strings.Join(values, "\x00"))
	}
	return fmt.Sprintf("%s:%s:%d:%s", keyPrefix, operation, version, hex.EncodeToString(h.Sum(nil))[:32])
}
