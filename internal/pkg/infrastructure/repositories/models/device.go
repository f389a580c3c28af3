package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//Device is the database model to store dispensers in our database
type Device struct {
	ID                  string  `gorm:"primaryKey;size:36"`
	UserID              string  `gorm:"size:36;not null;index"`
	Name                string  `gorm:"size:100;not null"`
	Type                string  `gorm:"size:20;not null"`
	MACAddress          string  `gorm:"size:17;not null;uniqueIndex"`
	SerialNumber        string  `gorm:"size:100;not null;uniqueIndex"`
	Location            *string `gorm:"size:200"`
	BatteryLevel        int     `gorm:"not null"`
	SupplementLevel     int     `gorm:"not null"`
	IsConnected         bool    `gorm:"not null"`
	FirmwareVersion     *string `gorm:"size:50"`
	TotalDosesDispensed int     `gorm:"not null"`
	LastSync            *time.Time
	IsActive            bool `gorm:"not null;index"`
	CreatedAt           time.Time
	UpdatedAt           time.Time `gorm:"index"`
}

//BeforeCreate assigns a random identifier to devices that do not have one yet
func (d *Device) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

//DeviceState is an immutable sample of what a device reported at a point in time
type DeviceState struct {
	ID            string            `gorm:"primaryKey;size:36"`
	DeviceID      string            `gorm:"size:36;not null;index:states_by_device_time,priority:1"`
	CupPlaced     bool              `gorm:"not null"`
	SensorReading float64           `gorm:"type:numeric(5,2);not null"`
	Timestamp     time.Time         `gorm:"not null;index:states_by_device_time,priority:2"`
	Metadata      datatypes.JSONMap `gorm:"column:custom_metadata"`
}

//BeforeCreate assigns a random identifier to states that do not have one yet
func (s *DeviceState) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
