package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client for listing page caching
type Cache struct {
	client *redis.Client
}

type cachedPage struct {
	HTML     []byte `json:"html"`
	CachedAt int64  `json:"cached_at"`
}

// NewCache connects to Redis and verifies the connection
func NewCache(ctx context.Context, addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &Cache{client: client}, nil
}

// PageKey generates a consistent cache key for a page URL
func PageKey(pageURL string) string {
	hash := sha256.Sum256([]byte(pageURL))
	return fmt.Sprintf("page:%x", hash[:8])
}

func (c *Cache) GetPage(ctx context.Context, pageURL string) ([]byte, bool, error) {
	key := PageKey(pageURL)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var page cachedPage
	if err := json.Unmarshal(data, &page); err != nil {
		// Invalid entry, drop it and report a miss
		c.client.Del(ctx, key)
		return nil, false, nil
	}

	return page.HTML, true, nil
}

func (c *Cache) SetPage(ctx context.Context, pageURL string, html []byte, ttl time.Duration) error {
	key := PageKey(pageURL)

	data, err := json.Marshal(cachedPage{HTML: html, CachedAt: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	return nil
}

// Health reports whether Redis answers a ping
func (c *Cache) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"status": "healthy",
		"type":   "redis",
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
	}

	return health
}

func (c *Cache) Close() error {
	return c.client.Close()
}
