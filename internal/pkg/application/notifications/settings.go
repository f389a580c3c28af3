package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
)

var pushPlatforms = map[string]bool{
	"ios":     true,
	"android": true,
	"web":     true,
}

//SettingsUpdate carries optional changes to the notification settings. Nil fields are left untouched.
type SettingsUpdate struct {
	ReminderEnabled      *bool   `json:"reminder_enabled"`
	ReminderTime         *string `json:"reminder_time"`
	LowBatteryEnabled    *bool   `json:"low_battery_enabled"`
	LowSupplementEnabled *bool   `json:"low_supplement_enabled"`
	AchievementEnabled   *bool   `json:"achievement_enabled"`
}

//PushTokenUpdate registers where push notifications should be delivered
type PushTokenUpdate struct {
	PushToken string `json:"push_token"`
	Platform  string `json:"platform"`
}

//GetSettings returns the user's settings, or the defaults if they were never changed.
//Defaults are not persisted.
func (s *Service) GetSettings(ctx context.Context, userID string) (*SettingsResponse, error) {
	settings, err := s.settingsOrDefault(ctx, userID)
	if err != nil {
		return nil, err
	}

	response := NewSettingsResponse(*settings)
	return &response, nil
}

func (s *Service) settingsOrDefault(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	settings, err := s.db.GetNotificationSettings(ctx, userID)
	if apperrors.IsNotFound(err) {
		defaults := models.DefaultNotificationSettings(userID)
		return &defaults, nil
	}
	return settings, err
}

//UpdateSettings applies the non nil fields of update and stores the result
func (s *Service) UpdateSettings(ctx context.Context, userID string, update SettingsUpdate) (*SettingsResponse, error) {
	settings, err := s.settingsOrDefault(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.ReminderTime != nil {
		if _, err := time.Parse("15:04", *update.ReminderTime); err != nil {
			return nil, apperrors.Validation("Reminder time must be formatted as HH:MM")
		}
		settings.ReminderTime = *update.ReminderTime
	}

	if update.ReminderEnabled != nil {
		settings.ReminderEnabled = *update.ReminderEnabled
	}
	if update.LowBatteryEnabled != nil {
		settings.LowBatteryEnabled = *update.LowBatteryEnabled
	}
	if update.LowSupplementEnabled != nil {
		settings.LowSupplementEnabled = *update.LowSupplementEnabled
	}
	if update.AchievementEnabled != nil {
		settings.AchievementEnabled = *update.AchievementEnabled
	}

	if err := s.db.SaveNotificationSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save notification settings: %w", err)
	}

	response := NewSettingsResponse(*settings)
	return &response, nil
}

//UpdatePushToken stores the push token and platform of the user's current client
func (s *Service) UpdatePushToken(ctx context.Context, userID string, update PushTokenUpdate) (*SettingsResponse, error) {
	if update.PushToken == "" || len(update.PushToken) > 500 {
		return nil, apperrors.Validation("Push token must be between 1 and 500 characters")
	}

	if !pushPlatforms[update.Platform] {
		return nil, apperrors.Validation("Invalid platform %q. Must be one of: ios, android, web", update.Platform)
	}

	settings, err := s.settingsOrDefault(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings.PushToken = &update.PushToken
	settings.PushPlatform = &update.Platform

	if err := s.db.SaveNotificationSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save push token: %w", err)
	}

	response := NewSettingsResponse(*settings)
	return &response, nil
}
