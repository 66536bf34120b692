package storage

import (
	"context"
	"errors"

	"github.com/ikkim/storefront-cart/internal/app/model"
	"github.com/ikkim/storefront-cart/internal/app/repository"
	"github.com/ikkim/storefront-cart/internal/cart"
	"gorm.io/gorm"
)

// PostgresStorage keeps cart snapshots in the cart_snapshots table.
type PostgresStorage struct {
	repo repository.CartSnapshotRepository
}

func NewPostgresStorage(repo repository.CartSnapshotRepository) *PostgresStorage {
	return &PostgresStorage{repo: repo}
}

func (s *PostgresStorage) Get(ctx context.Context, key string) (string, error) {
	snapshot, err := s.repo.FindByKey(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", cart.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return snapshot.Items, nil
}

func (s *PostgresStorage) Set(ctx context.Context, key, value string) error {
	return s.repo.Upsert(ctx, &model.CartSnapshot{CartKey: key, Items: value})
}

func (s *PostgresStorage) Delete(ctx context.Context, key string) error {
	return s.repo.DeleteByKey(ctx, key)
}
