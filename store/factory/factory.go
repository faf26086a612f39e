// Package factory opens the store backend named in configuration.
package factory

import (
	"context"
	"fmt"
	"io"

	"preset-labels/config"
	"preset-labels/label"
	"preset-labels/logging"
	"preset-labels/store/file"
	"preset-labels/store/memory"
	"preset-labels/store/redis"
	"preset-labels/store/sqlite"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns the configured Store and a Closer releasing its resources.
func New(ctx context.Context, cfg config.StoreConfig, log logging.Logger) (label.Store, io.Closer, error) {
	log = log.With("backend", cfg.Backend)

	switch cfg.Backend {
	case "memory":
		log.Info("using in-memory label store")
		return memory.New(), nopCloser{}, nil

	case "file":
		s, err := file.Open(cfg.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		log.Info("label store opened", "path", s.Path())
		return s, nopCloser{}, nil

	case "sqlite":
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Info("label store opened", "path", cfg.SQLite.Path)
		return s, s, nil

	case "redis":
		s, err := redis.New(redis.Config{
			URL:              cfg.Redis.URL,
			MaxConns:         cfg.Redis.MaxConns,
			OperationTimeout: cfg.Redis.OperationTimeout,
			Prefix:           cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		log.Info("Redis connection established", "max_conns", cfg.Redis.MaxConns)
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
