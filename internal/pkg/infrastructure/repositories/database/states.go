package database

import (
	"context"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
)

func (db *myDB) CreateDeviceState(ctx context.Context, state *models.DeviceState) error {
	state.Timestamp = state.Timestamp.UTC()
	return db.impl.WithContext(ctx).Create(state).Error
}

func (db *myDB) GetLatestDeviceState(ctx context.Context, deviceID string) (*models.DeviceState, error) {
	state := &models.DeviceState{}
	result := db.impl.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("timestamp DESC").
		First(state)

	if result.Error != nil {
		return nil, translate(result.Error, "State for device", deviceID)
	}

	return state, nil
}

func (db *myDB) GetDeviceStateHistory(ctx context.Context, deviceID string, period TimeRange, limit, offset int) ([]models.DeviceState, error) {
	states := []models.DeviceState{}

	query := db.impl.WithContext(ctx).Where("device_id = ?", deviceID)
	if period.Start != nil {
		query = query.Where("timestamp >= ?", utc(period.Start))
	}
	if period.End != nil {
		query = query.Where("timestamp <= ?", utc(period.End))
	}

	result := paginate(query.Order("timestamp DESC"), limit, offset).Find(&states)
	return states, result.Error
}

func (db *myDB) DeleteDeviceStatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := db.impl.WithContext(ctx).
		Where("timestamp < ?", cutoff.UTC()).
		Delete(&models.DeviceState{})
	return result.RowsAffected, result.Error
}
