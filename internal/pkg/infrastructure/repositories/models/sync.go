package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//Sync statuses
const (
	SyncSuccess = "success"
	SyncPartial = "partial"
	SyncFailed  = "failed"
)

//SyncMetadata is the bookkeeping row written for every synchronization call
type SyncMetadata struct {
	ID            string `gorm:"primaryKey;size:36"`
	UserID        string `gorm:"size:36;not null;index:syncs_by_user_created,priority:1"`
	DeviceInfo    datatypes.JSONMap
	LastFullSync  *time.Time
	LastDeltaSync *time.Time
	SyncStatus    string    `gorm:"size:20"`
	CreatedAt     time.Time `gorm:"index:syncs_by_user_created,priority:2"`
}

//TableName overrides the pluralized default
func (SyncMetadata) TableName() string {
	return "sync_metadata"
}

//BeforeCreate assigns a random identifier to sync rows that do not have one yet
func (s *SyncMetadata) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
