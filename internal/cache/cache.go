// Package cache stores serialized API responses for a short time. Redis is
// used when configured and reachable; otherwise entries live in process memory.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rewired-gh/sentimentdash/internal/logger"
)

const keyPrefix = "sentimentdash:"

// Cache is a byte-value cache with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Close() error
}

// New returns a Redis cache for redisURL, falling back to memory when the URL
// is empty, invalid or the server does not answer a ping.
func New(redisURL string) Cache {
	if redisURL == "" {
		return NewMemory()
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("Invalid redis URL, using in-memory cache: %v", err)
		return NewMemory()
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, using in-memory cache: %v", err)
		_ = client.Close()
		return NewMemory()
	}
	logger.Info("Using redis cache at %s", opt.Addr)
	return &Redis{client: client}
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("Cache get %s failed: %v", key, err)
		}
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, keyPrefix+key, val, ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// sweepInterval bounds how often Set scans for expired entries.
const sweepInterval = time.Minute

// Memory is an in-process Cache. Expired entries are dropped on read and
// swept from Set at most once per sweepInterval.
type Memory struct {
	mu        sync.Mutex
	items     map[string]memItem
	now       func() time.Time
	nextSweep time.Time
}

type memItem struct {
	val []byte
	exp time.Time
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memItem), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !it.exp.IsZero() && m.now().After(it.exp) {
		delete(m.items, key)
		return nil, false
	}
	return it.val, true
}

// Set stores val under key. A non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(sweepInterval)
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	m.items[key] = memItem{val: append([]byte(nil), val...), exp: exp}
	return nil
}

func (m *Memory) sweep(now time.Time) {
	for k, it := range m.items {
		if !it.exp.IsZero() && now.After(it.exp) {
			delete(m.items, k)
		}
	}
}

func (m *Memory) Close() error { return nil }
