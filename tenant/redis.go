package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/tenantgate/isolation"
	"github.com/kbukum/tenantgate/logger"
	"github.com/kbukum/tenantgate/redis"
	"github.com/kbukum/tenantgate/util"
)

// RedisResolver looks up api-key to tier assignments in a Redis hash,
// fronted by an in-process TTL cache so steady-state resolution costs no
// network round trip. Key revocations take effect within the cache TTL.
type RedisResolver struct {
	client  *redis.Client
	hashKey string
	cache   *ttlcache.Cache[string, isolation.Tier]
	log     *logger.Logger
}

// NewRedisResolver builds a resolver over the given redis client. The
// caller is responsible for closing the resolver to stop its cache.
func NewRedisResolver(cfg RedisConfig, client *redis.Client, log *logger.Logger) (*RedisResolver, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis resolver: %w", err)
	}
	ttl, _ := time.ParseDuration(cfg.CacheTTL)

	cache := ttlcache.New(
		ttlcache.WithTTL[string, isolation.Tier](ttl),
	)
	go cache.Start()

	return &RedisResolver{
		client:  client,
		hashKey: cfg.HashKey,
		cache:   cache,
		log:     log.WithComponent("tenant"),
	}, nil
}

// Resolve maps the request's API key to its tier. Unknown keys and unknown
// tier values are ErrUnresolved; a Redis failure is surfaced as an ordinary
// error so it is not mistaken for bad credentials.
func (r *RedisResolver) Resolve(ctx context.Context, req *http.Request) (isolation.Tier, error) {
	key, err := apiKey(req)
	if err != nil {
		return "", err
	}

	if item := r.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	val, err := r.client.HGet(ctx, r.hashKey, key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", fmt.Errorf("%w: unknown api key", ErrUnresolved)
		}
		return "", fmt.Errorf("lookup api key: %w", err)
	}

	tier, err := isolation.ParseTier(val)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolved, err)
	}

	r.cache.Set(key, tier, ttlcache.DefaultTTL)
	r.log.Debug("Resolved api key", map[string]interface{}{
		"key":            util.MaskSecret(key, 4),
		logger.FieldTier: tier.String(),
	})
	return tier, nil
}

// Close stops the cache's expiry loop.
func (r *RedisResolver) Close() {
	r.cache.Stop()
}
