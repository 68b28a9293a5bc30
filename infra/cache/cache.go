// Package cache provides a Redis read-through layer in front of the price
// repository. Prices never change once stored, so entries only expire by TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/slot"
	"github.com/kilianp07/energyiot/core/store"
	"github.com/kilianp07/energyiot/infra/logger"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	TTL      time.Duration `json:"ttl"`
	Prefix   string        `json:"prefix"`
}

// Enabled reports whether a Redis address is configured.
func (c Config) Enabled() bool { return c.Addr != "" }

// SetDefaults applies default TTL and key prefix.
func (c *Config) SetDefaults() {
	if c.TTL <= 0 {
		c.TTL = 48 * time.Hour
	}
	if c.Prefix == "" {
		c.Prefix = "energyiot:"
	}
}

// PriceCache wraps a store and serves price reads from Redis when possible.
// Every other repository method goes straight to the wrapped store.
type PriceCache struct {
	store.Store
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	log    logger.Logger
}

// New wraps next with rdb. A nil logger discards cache warnings.
func New(next store.Store, rdb redis.Cmdable, cfg Config, log logger.Logger) *PriceCache {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &PriceCache{Store: next, rdb: rdb, ttl: cfg.TTL, prefix: cfg.Prefix, log: log}
}

// Dial connects to Redis and pings it.
func Dial(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

func (c *PriceCache) slotKey(t time.Time) string {
	return fmt.Sprintf("%sprice:%d", c.prefix, t.UTC().Unix())
}

func (c *PriceCache) rangeKey(from, to time.Time) string {
	return fmt.Sprintf("%sprices:%d:%d", c.prefix, from.UTC().Unix(), to.UTC().Unix())
}

func (c *PriceCache) get(ctx context.Context, key string, v any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warnf("cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.log.Warnf("cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (c *PriceCache) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warnf("cache set %s: %v", key, err)
	}
}

func (c *PriceCache) GetPriceAt(ctx context.Context, at time.Time) (*model.PricePoint, error) {
	key := c.slotKey(at)
	var p model.PricePoint
	if c.get(ctx, key, &p) {
		return &p, nil
	}
	got, err := c.Store.GetPriceAt(ctx, at)
	if err != nil || got == nil {
		return got, err
	}
	c.set(ctx, key, got)
	return got, nil
}

// GetPricesInRange caches a range only once every slot in it is stored.
func (c *PriceCache) GetPricesInRange(ctx context.Context, from, to time.Time) ([]model.PricePoint, error) {
	key := c.rangeKey(from, to)
	var out []model.PricePoint
	if c.get(ctx, key, &out) {
		return out, nil
	}
	out, err := c.Store.GetPricesInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 && len(out) == slot.SlotCount(from, to) {
		c.set(ctx, key, out)
	}
	return out, nil
}

// SavePrices writes to the store then primes the per-slot keys.
func (c *PriceCache) SavePrices(ctx context.Context, prices []model.PricePoint) error {
	if err := c.Store.SavePrices(ctx, prices); err != nil {
		return err
	}
	if len(prices) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, p := range prices {
		raw, err := json.Marshal(p)
		if err != nil {
			continue
		}
		pipe.SetNX(ctx, c.slotKey(p.SlotStart), raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warnf("cache prime: %v", err)
	}
	return nil
}
