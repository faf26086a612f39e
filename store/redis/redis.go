// Package redis stores keys in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Config configures the Redis-backed store.
type Config struct {
	URL              string
	MaxConns         int
	OperationTimeout time.Duration
	Prefix           string
}

// maxUpdateAttempts bounds optimistic retries when a watched key changes.
const maxUpdateAttempts = 10

// txn is the view of a WATCHed key an Update callback works against.
type txn interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// Set queues the write in MULTI/EXEC; it fails with redis.TxFailedErr if
	// the key changed since WATCH.
	Set(ctx context.Context, key, value string) error
}

type watchFunc func(ctx context.Context, key string, fn func(txn) error) error

// Store keeps each key as a plain Redis string without expiry.
type Store struct {
	client    redisClient
	watch     watchFunc
	opTimeout time.Duration
	prefix    string
}

type redisTx struct {
	tx *redis.Tx
}

func (t redisTx) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := t.tx.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (t redisTx) Set(ctx context.Context, key, value string) error {
	_, err := t.tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
		return p.Set(ctx, key, value, 0).Err()
	})
	return err
}

// New creates a Redis-backed store. It does not dial; use Ping to verify the
// connection.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("redis store url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}

	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "labels"
	}

	client := redis.NewClient(opts)
	return &Store{
		client: client,
		watch: func(ctx context.Context, key string, fn func(txn) error) error {
			return client.Watch(ctx, func(tx *redis.Tx) error {
				return fn(redisTx{tx: tx})
			}, key)
		},
		opTimeout: timeout,
		prefix:    prefix,
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	innerCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	v, err := s.client.Get(innerCtx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	innerCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Set(innerCtx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Update runs fn against key under WATCH and commits with MULTI/EXEC,
// retrying when another writer changes the key in between. Nothing is
// written if fn fails.
func (s *Store) Update(ctx context.Context, key string, fn func(old string, ok bool) (string, error)) error {
	k := s.key(key)
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		innerCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		err := s.watch(innerCtx, k, func(t txn) error {
			old, ok, err := t.Get(innerCtx, k)
			if err != nil {
				return fmt.Errorf("get %q: %w", key, err)
			}
			next, err := fn(old, ok)
			if err != nil {
				return err
			}
			return t.Set(innerCtx, k, next)
		})
		cancel()
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %q: gave up after %d attempts: %w", key, maxUpdateAttempts, redis.TxFailedErr)
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	innerCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.client.Ping(innerCtx).Err()
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(k string) string {
	return s.prefix + ":" + k
}
