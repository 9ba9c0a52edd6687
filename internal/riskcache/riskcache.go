// Package riskcache mirrors admitted-order risk counters into Redis as a
// write-through, best-effort side channel (§2.2, §4.4). It is never read
// back onto the hot path: RiskState always starts cold in memory on
// restart (see the DESIGN.md Open Question decision).
package riskcache

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config mirrors the teacher's RedisConfig, narrowed to what this cache
// needs: a connection target and a key prefix.
type Config struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Prefix       string
}

// DefaultConfig mirrors the teacher's DefaultRedisConfig defaults.
func DefaultConfig() Config {
	return Config{
		Address:      "localhost:6379",
		DB:           0,
		PoolSize:     20,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Prefix:       "riskstate",
	}
}

// SnapshotCache is the narrow write-through mirror implementing
// risk.SnapshotWriter. Writes are best-effort: WriteSnapshot waits for the
// Redis pipeline to finish (the risk engine calls it while holding its
// lock), and a failed write is logged and dropped, never surfaced to the
// risk engine.
type SnapshotCache struct {
	client *redis.Client
	prefix string
	ctx    context.Context
	cancel context.CancelFunc
}

// New connects to Redis and pings it once at construction, same as the
// teacher's NewRedisCache.
func New(cfg Config) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SnapshotCache{client: client, prefix: cfg.Prefix, ctx: ctx, cancel: cancel}, nil
}

// WriteSnapshot mirrors the current per-symbol counters. Each field is a
// separate key so a partial write (e.g. a dropped connection mid-pipeline)
// never corrupts an unrelated counter.
func (c *SnapshotCache) WriteSnapshot(symbol string, dailyVolume, position, orderCount int) {
	pipe := c.client.Pipeline()
	pipe.Set(c.ctx, c.key(symbol, "daily_volume"), strconv.Itoa(dailyVolume), 48*time.Hour)
	pipe.Set(c.ctx, c.key(symbol, "position"), strconv.Itoa(position), 48*time.Hour)
	pipe.Set(c.ctx, c.key(symbol, "order_count"), strconv.Itoa(orderCount), 48*time.Hour)

	if _, err := pipe.Exec(c.ctx); err != nil {
		log.Printf("[RISKCACHE] write-through failed for %s: %v", symbol, err)
	}
}

func (c *SnapshotCache) key(symbol, field string) string {
	return c.prefix + ":" + symbol + ":" + field
}

// Close releases the underlying Redis connection pool.
func (c *SnapshotCache) Close() error {
	c.cancel()
	return c.client.Close()
}
