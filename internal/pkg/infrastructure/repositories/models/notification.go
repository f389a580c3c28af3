package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//Notification types
const (
	NotificationReminder      = "reminder"
	NotificationLowBattery    = "low_battery"
	NotificationLowSupplement = "low_supplement"
	NotificationAchievement   = "achievement"
)

//Notification is a message addressed to a user, optionally about one of their devices
type Notification struct {
	ID        string            `gorm:"primaryKey;size:36"`
	UserID    string            `gorm:"size:36;not null;index"`
	DeviceID  *string           `gorm:"size:36;index"`
	Type      string            `gorm:"size:20;not null"`
	Title     string            `gorm:"size:200;not null"`
	Message   string            `gorm:"not null"`
	IsRead    bool              `gorm:"not null;index"`
	Metadata  datatypes.JSONMap `gorm:"column:custom_metadata"`
	CreatedAt time.Time         `gorm:"index"`
	ReadAt    *time.Time        `gorm:"index"`
}

//BeforeCreate assigns a random identifier to notifications that do not have one yet
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

//NotificationSettings stores what a user wants to be notified about. One row per user.
type NotificationSettings struct {
	UserID               string  `gorm:"primaryKey;size:36"`
	ReminderEnabled      bool    `gorm:"not null"`
	ReminderTime         string  `gorm:"size:5;not null"`
	LowBatteryEnabled    bool    `gorm:"not null"`
	LowSupplementEnabled bool    `gorm:"not null"`
	AchievementEnabled   bool    `gorm:"not null"`
	PushToken            *string `gorm:"size:500"`
	PushPlatform         *string `gorm:"size:20"`
	UpdatedAt            time.Time
}

//DefaultNotificationSettings is what a user gets before they have changed anything
func DefaultNotificationSettings(userID string) NotificationSettings {
	return NotificationSettings{
		UserID:               userID,
		ReminderEnabled:      true,
		ReminderTime:         "08:00",
		LowBatteryEnabled:    true,
		LowSupplementEnabled: true,
		AchievementEnabled:   true,
	}
}

//UserProfile holds user preferences that clients mirror during synchronization
type UserProfile struct {
	UserID              string `gorm:"primaryKey;size:36"`
	NotificationEnabled bool   `gorm:"not null"`
	Theme               string `gorm:"size:20;not null"`
	Language            string `gorm:"size:10;not null"`
	Timezone            string `gorm:"size:50;not null"`
	UpdatedAt           time.Time
}
