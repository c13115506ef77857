package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/demandcast/backend-go/internal/config"
	"github.com/demandcast/backend-go/internal/domain"
)

const (
	dashboardKeyPrefix = "dashboard:data"
	scanBatchSize      = 100
	defaultCacheTTL    = time.Minute
)

// DashboardCache memoizes computed dashboard payloads per (file, params).
type DashboardCache interface {
	Get(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardData, bool, error)
	Set(ctx context.Context, query domain.DashboardQuery, data *domain.DashboardData) error
	InvalidateFile(ctx context.Context, fileName string) error
	InvalidateAll(ctx context.Context) error
}

type redisDashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopDashboardCache struct{}

// NewDashboardCache returns a redis-backed cache when enabled, otherwise a
// no-op one so callers never branch on caching.
func NewDashboardCache(cfg config.CacheConfig) (DashboardCache, error) {
	if !cfg.Enabled {
		return &noopDashboardCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisDashboardCache{client: client, ttl: ttl}, nil
}

func NewNoopDashboardCache() DashboardCache {
	return &noopDashboardCache{}
}

func (c *redisDashboardCache) Get(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardData, bool, error) {
	payload, err := c.client.Get(ctx, buildDashboardKey(query)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var data domain.DashboardData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, false, fmt.Errorf("decode dashboard cache: %w", err)
	}
	return &data, true, nil
}

func (c *redisDashboardCache) Set(ctx context.Context, query domain.DashboardQuery, data *domain.DashboardData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode dashboard cache: %w", err)
	}

	if err := c.client.Set(ctx, buildDashboardKey(query), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisDashboardCache) InvalidateFile(ctx context.Context, fileName string) error {
	return deleteKeysWithPrefix(ctx, c.client, dashboardKeyPrefix+":"+hashString(fileName), scanBatchSize)
}

func (c *redisDashboardCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, dashboardKeyPrefix, scanBatchSize)
}

func (n *noopDashboardCache) Get(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardData, bool, error) {
	return nil, false, nil
}

func (n *noopDashboardCache) Set(ctx context.Context, query domain.DashboardQuery, data *domain.DashboardData) error {
	return nil
}

func (n *noopDashboardCache) InvalidateFile(ctx context.Context, fileName string) error {
	return nil
}

func (n *noopDashboardCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// buildDashboardKey nests the file hash before the parameter hash so a
// re-uploaded file can be invalidated without flushing other datasets.
func buildDashboardKey(query domain.DashboardQuery) string {
	params := fmt.Sprintf("fd=%d|lt=%d|bd=%d", query.ForecastDays, query.LeadTimeDays, query.BufferDays)
	return fmt.Sprintf("%s:%s:%s", dashboardKeyPrefix, hashString(query.FileName), hashString(params))
}

func hashString(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newRedisClient(cfg config.CacheConfig) (*redis.Client, time.Duration, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, 0, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, 0, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(cfg.DashboardTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return client, ttl, nil
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

func deleteKeysWithPrefix(ctx context.Context, client *redis.Client, prefix string, batchSize int64) error {
	var cursor uint64
	pattern := prefix + "*"
	for {
		keys, nextCursor, err := client.Scan(ctx, cursor, pattern, batchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}

		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	return nil
}
