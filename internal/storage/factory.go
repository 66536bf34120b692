package storage

import (
	"context"
	"fmt"

	"github.com/ikkim/storefront-cart/config"
	"github.com/ikkim/storefront-cart/internal/app/repository"
	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/ikkim/storefront-cart/internal/db"
	"github.com/ikkim/storefront-cart/pkg/logger"
	"github.com/ikkim/storefront-cart/pkg/redis"
)

// Backend is the snapshot storage selected by configuration.
type Backend struct {
	Name    string
	Storage cart.Storage
	// Snapshots is set only for the postgres backend, where stale rows are
	// pruned by the scheduler.
	Snapshots repository.CartSnapshotRepository

	closeFn func() error
	pingFn  func(ctx context.Context) error
}

// Ping reports whether the backend is reachable. Backends without a
// connection always report healthy.
func (b *Backend) Ping(ctx context.Context) error {
	if b == nil || b.pingFn == nil {
		return nil
	}
	return b.pingFn(ctx)
}

// Close releases the connection held by the backend, if any.
func (b *Backend) Close() error {
	if b == nil || b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// Open connects the backend named by cfg.Cart.StorageBackend.
func Open(cfg *config.Config) (*Backend, error) {
	name := cfg.Cart.StorageBackend
	logger.Info("Opening cart snapshot storage", map[string]interface{}{
		"backend": name,
	})

	switch name {
	case config.StorageMemory, "":
		return &Backend{Name: config.StorageMemory, Storage: cart.NewMemoryStorage()}, nil

	case config.StorageRedis:
		if err := redis.Init(&cfg.Redis); err != nil {
			return nil, err
		}
		return &Backend{
			Name:    name,
			Storage: NewRedisStorage(redis.GetClient(), cfg.Cart.SnapshotTTL),
			closeFn: redis.Close,
			pingFn:  redis.Ping,
		}, nil

	case config.StoragePostgres:
		if err := db.Initialize(&cfg.Database); err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		repo := repository.NewCartSnapshotRepository(db.GetDB())
		return &Backend{
			Name:      name,
			Storage:   NewPostgresStorage(repo),
			Snapshots: repo,
			closeFn:   db.Close,
			pingFn:    db.Ping,
		}, nil

	case config.StorageS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("AWS_S3_BUCKET is required for the s3 cart backend")
		}
		return &Backend{
			Name: name,
			Storage: NewS3Storage(
				cfg.S3.Region,
				cfg.S3.Bucket,
				cfg.S3.AccessKeyID,
				cfg.S3.SecretAccessKey,
				cfg.S3.Endpoint,
			),
		}, nil
	}

	return nil, fmt.Errorf("unknown cart storage backend %q", name)
}
