package database

import (
	"context"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
)

func (db *myDB) CreateSyncMetadata(ctx context.Context, sync *models.SyncMetadata) error {
	return db.impl.WithContext(ctx).Create(sync).Error
}

func (db *myDB) SaveSyncMetadata(ctx context.Context, sync *models.SyncMetadata) error {
	result := db.impl.WithContext(ctx).Save(sync)
	return translate(result.Error, "Sync", sync.ID)
}

//GetLatestSyncMetadata returns the most recently created sync row for the user
func (db *myDB) GetLatestSyncMetadata(ctx context.Context, userID string) (*models.SyncMetadata, error) {
	sync := &models.SyncMetadata{}
	result := db.impl.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(sync)

	if result.Error != nil {
		return nil, translate(result.Error, "Sync for user", userID)
	}

	return sync, nil
}

//GetLatestFullSyncMetadata returns the most recently created sync row that completed a full sync
func (db *myDB) GetLatestFullSyncMetadata(ctx context.Context, userID string) (*models.SyncMetadata, error) {
	sync := &models.SyncMetadata{}
	result := db.impl.WithContext(ctx).
		Where("user_id = ? AND last_full_sync IS NOT NULL", userID).
		Order("created_at DESC").
		First(sync)

	if result.Error != nil {
		return nil, translate(result.Error, "Full sync for user", userID)
	}

	return sync, nil
}
