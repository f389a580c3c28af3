package database

import (
	"context"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"gorm.io/gorm"
)

func (db *myDB) CreateDevice(ctx context.Context, device *models.Device) error {
	result := db.impl.WithContext(ctx).Create(device)
	return translate(result.Error, "Device", device.ID)
}

func (db *myDB) GetDeviceByID(ctx context.Context, deviceID string) (*models.Device, error) {
	device := &models.Device{}
	result := db.impl.WithContext(ctx).Where("id = ?", deviceID).First(device)
	if result.Error != nil {
		return nil, translate(result.Error, "Device", deviceID)
	}
	return device, nil
}

func (db *myDB) GetDeviceByMACAddress(ctx context.Context, mac string) (*models.Device, error) {
	device := &models.Device{}
	result := db.impl.WithContext(ctx).Where("mac_address = ?", mac).First(device)
	if result.Error != nil {
		return nil, translate(result.Error, "Device with MAC address", mac)
	}
	return device, nil
}

func (db *myDB) GetDeviceBySerialNumber(ctx context.Context, serial string) (*models.Device, error) {
	device := &models.Device{}
	result := db.impl.WithContext(ctx).Where("serial_number = ?", serial).First(device)
	if result.Error != nil {
		return nil, translate(result.Error, "Device with serial number", serial)
	}
	return device, nil
}

func (db *myDB) GetDevicesForUser(ctx context.Context, userID string, includeInactive bool) ([]models.Device, error) {
	devices := []models.Device{}

	query := db.impl.WithContext(ctx).Where("user_id = ?", userID)
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	result := query.Order("created_at").Find(&devices)
	return devices, result.Error
}

func (db *myDB) GetDevicesUpdatedSince(ctx context.Context, userID string, since time.Time) ([]models.Device, error) {
	devices := []models.Device{}
	result := db.impl.WithContext(ctx).
		Where("user_id = ? AND updated_at > ?", userID, since.UTC()).
		Order("updated_at").
		Find(&devices)
	return devices, result.Error
}

func (db *myDB) GetActiveDevicesWithLowBattery(ctx context.Context, threshold int) ([]models.Device, error) {
	devices := []models.Device{}
	result := db.impl.WithContext(ctx).
		Where("is_active = ? AND battery_level <= ?", true, threshold).
		Find(&devices)
	return devices, result.Error
}

func (db *myDB) GetActiveDevicesWithLowSupplement(ctx context.Context, threshold int) ([]models.Device, error) {
	devices := []models.Device{}
	result := db.impl.WithContext(ctx).
		Where("is_active = ? AND supplement_level <= ?", true, threshold).
		Find(&devices)
	return devices, result.Error
}

func (db *myDB) SaveDevice(ctx context.Context, device *models.Device) error {
	result := db.impl.WithContext(ctx).Save(device)
	return translate(result.Error, "Device", device.ID)
}

func (db *myDB) IncrementDoseCount(ctx context.Context, deviceID string) error {
	return incrementDoseCount(db.impl.WithContext(ctx), deviceID)
}

func incrementDoseCount(tx *gorm.DB, deviceID string) error {
	result := tx.Model(&models.Device{}).
		Where("id = ?", deviceID).
		Update("total_doses_dispensed", gorm.Expr("total_doses_dispensed + ?", 1))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "Device", deviceID)
	}

	return nil
}
