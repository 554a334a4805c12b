package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// ReportDetailTTL bounds how stale a report detail view can be.
	ReportDetailTTL = 5 * time.Minute
)

// KeyValue is the slice of Redis the cache needs.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// ReportFetcher resolves composite report ids to full reports.
type ReportFetcher interface {
	FetchReports(ctx context.Context, externalIDs []string) []models.Report
}

// CachedReports keeps report detail lookups in Redis so moderators paging
// through an analysis do not hit every content domain each time. Cache
// failures fall through to the domains.
type CachedReports struct {
	kv     KeyValue
	source ReportFetcher
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedReports(kv KeyValue, source ReportFetcher, ttl time.Duration, logger *slog.Logger) *CachedReports {
	if ttl <= 0 {
		ttl = ReportDetailTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedReports{kv: kv, source: source, ttl: ttl, logger: logger}
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource, identifier string) string {
	return CacheKeyPrefix + resource + ":" + identifier
}

func (c *CachedReports) FetchReports(ctx context.Context, externalIDs []string) []models.Report {
	if len(externalIDs) == 0 {
		return nil
	}
	key := CacheKey("reports", models.ReportSetKey(externalIDs))

	if raw, ok, err := c.kv.Get(ctx, key); err != nil {
		c.logger.Warn("report cache read failed", "module", "cache", "error", err.Error())
	} else if ok {
		var cached []models.Report
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached
		}
	}

	reports := c.source.FetchReports(ctx, externalIDs)
	if len(reports) == 0 {
		return reports
	}
	data, err := json.Marshal(reports)
	if err != nil {
		return reports
	}
	if err := c.kv.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("report cache write failed", "module", "cache", "error", err.Error())
	}
	return reports
}
