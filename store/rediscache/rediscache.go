// Package rediscache implements a discovery.Cache shared between processes through Redis.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mindtastic/discovery"
)

// Ensure that Cache implements the discovery.Cache interface
var _ discovery.Cache = (*Cache)(nil)

const defaultTimeout = 5 * time.Second

// Cache stores entries in Redis. Every operation is bounded by a timeout since
// discovery.Cache carries no context.
type Cache struct {
	client  redis.UniversalClient
	timeout time.Duration
	ttl     time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithTimeout bounds the duration of a single Redis command.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.timeout = d
	}
}

// WithTTL lets entries expire after d. Entries never expire by default.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		c.ttl = d
	}
}

// New creates a Cache on top of an existing client.
func New(client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		client:  client,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromURL connects to the Redis deployment described by raw and verifies the connection.
// raw is a comma separated list of redis:// URLs or host:port addresses; more than one
// address selects a cluster client.
func NewFromURL(raw string, opts ...Option) (*Cache, error) {
	uopts, err := buildUniversalOptions(raw)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	c := New(redis.NewUniversalClient(uopts), opts...)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		_ = c.client.Close()
		return nil, fmt.Errorf("error connecting to Redis: %w", err)
	}
	return c, nil
}

func buildUniversalOptions(raw string) (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if !strings.Contains(part, "://") {
			opts.Addrs = append(opts.Addrs, part)
			continue
		}

		parsed, err := redis.ParseURL(part)
		if err != nil {
			return nil, err
		}
		opts.Addrs = append(opts.Addrs, parsed.Addr)
		if opts.Username == "" {
			opts.Username = parsed.Username
		}
		if opts.Password == "" {
			opts.Password = parsed.Password
		}
		if opts.DB == 0 {
			opts.DB = parsed.DB
		}
		if opts.TLSConfig == nil {
			opts.TLSConfig = parsed.TLSConfig
		}
	}

	if len(opts.Addrs) == 0 {
		return nil, errors.New("no Redis addresses provided")
	}
	if len(opts.Addrs) > 1 {
		// Cluster deployments only have database 0.
		opts.DB = 0
	}
	return opts, nil
}

// Get returns the value stored under key or an error matching discovery.ErrNotFound.
func (c *Cache) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("could not get key %s: %w", key, discovery.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key.
func (c *Cache) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (c *Cache) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to remove key %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
