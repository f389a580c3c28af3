package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//Well known activity actions
const (
	ActionDoseDispensed      = "dose_dispensed"
	ActionDeviceConnected    = "device_connected"
	ActionDeviceDisconnected = "device_disconnected"
	ActionBatteryLow         = "battery_low"
	ActionSupplementLow      = "supplement_low"
	ActionDeviceActivated    = "device_activated"
	ActionDeviceDeactivated  = "device_deactivated"
	ActionFirmwareUpdated    = "firmware_updated"
)

//Trigger types
const (
	TriggerAutomatic = "automatic"
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

//ActivityLog is an append only record of something a device or user did
type ActivityLog struct {
	ID          string            `gorm:"primaryKey;size:36"`
	DeviceID    string            `gorm:"size:36;not null;index:activities_by_device_time,priority:1"`
	UserID      string            `gorm:"size:36;not null;index"`
	Action      string            `gorm:"size:50;not null;index"`
	DoseAmount  *string           `gorm:"size:20"`
	TriggeredBy string            `gorm:"size:20;not null"`
	Metadata    datatypes.JSONMap `gorm:"column:custom_metadata"`
	Timestamp   time.Time         `gorm:"not null;index:activities_by_device_time,priority:2"`
}

//BeforeCreate assigns a random identifier to log entries that do not have one yet
func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
