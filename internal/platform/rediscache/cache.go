// Package rediscache is a small Redis-backed cache of search result IRIs.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Teaching-Knowledge-Graph/TeachingKG/internal/platform/logger"
)

const defaultPrefix = "tkg:"

type Cache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// New connects and pings within five seconds.
func New(addr string, ttl time.Duration, log *logger.Logger) (*Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Cache{
		log:    log.With("service", "RedisSearchCache"),
		rdb:    rdb,
		prefix: defaultPrefix,
		ttl:    ttl,
	}, nil
}

// Get returns the cached IRIs for key. A miss is (nil, false, nil).
func (c *Cache) Get(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var iris []string
	if err := json.Unmarshal(raw, &iris); err != nil {
		return nil, false, fmt.Errorf("decode cached entry: %w", err)
	}
	return iris, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, iris []string) error {
	if iris == nil {
		iris = []string{}
	}
	raw, err := json.Marshal(iris)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err()
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
