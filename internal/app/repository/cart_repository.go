package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/storefront-cart/internal/app/model"
	"github.com/ikkim/storefront-cart/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartSnapshotRepository interface {
	FindByKey(ctx context.Context, key string) (*model.CartSnapshot, error)
	Upsert(ctx context.Context, snapshot *model.CartSnapshot) error
	DeleteByKey(ctx context.Context, key string) error
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time, keep []string) (int64, error)
}

type cartSnapshotRepository struct {
	db *gorm.DB
}

func NewCartSnapshotRepository(db *gorm.DB) CartSnapshotRepository {
	return &cartSnapshotRepository{db: db}
}

func (r *cartSnapshotRepository) FindByKey(ctx context.Context, key string) (*model.CartSnapshot, error) {
	logger.Debug("Finding cart snapshot by key in database", map[string]interface{}{
		"key": key,
	})

	var snapshot model.CartSnapshot
	err := r.db.WithContext(ctx).Where("cart_key = ?", key).First(&snapshot).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find cart snapshot in database", err, map[string]interface{}{
				"key": key,
			})
		}
		return nil, err
	}
	return &snapshot, nil
}

func (r *cartSnapshotRepository) Upsert(ctx context.Context, snapshot *model.CartSnapshot) error {
	logger.Debug("Upserting cart snapshot in database", map[string]interface{}{
		"key":   snapshot.CartKey,
		"bytes": len(snapshot.Items),
	})

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cart_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"items", "updated_at"}),
	}).Create(snapshot).Error
	if err != nil {
		logger.Error("Failed to upsert cart snapshot in database", err, map[string]interface{}{
			"key": snapshot.CartKey,
		})
		return err
	}
	return nil
}

func (r *cartSnapshotRepository) DeleteByKey(ctx context.Context, key string) error {
	logger.Debug("Deleting cart snapshot from database", map[string]interface{}{
		"key": key,
	})

	if err := r.db.WithContext(ctx).Where("cart_key = ?", key).Delete(&model.CartSnapshot{}).Error; err != nil {
		logger.Error("Failed to delete cart snapshot from database", err, map[string]interface{}{
			"key": key,
		})
		return err
	}
	return nil
}

// DeleteUpdatedBefore purges snapshots untouched since cutoff, except the
// keys listed in keep.
func (r *cartSnapshotRepository) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time, keep []string) (int64, error) {
	query := r.db.WithContext(ctx).Where("updated_at < ?", cutoff)
	if len(keep) > 0 {
		query = query.Where("cart_key NOT IN ?", keep)
	}
	result := query.Delete(&model.CartSnapshot{})
	if result.Error != nil {
		logger.Error("Failed to purge stale cart snapshots", result.Error, map[string]interface{}{
			"cutoff": cutoff,
		})
		return 0, result.Error
	}

	logger.Info("Stale cart snapshots purged", map[string]interface{}{
		"cutoff":  cutoff,
		"kept":    len(keep),
		"deleted": result.RowsAffected,
	})
	return result.RowsAffected, nil
}
