package notifications

import (
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
)

//Response is the client facing representation of a notification
type Response struct {
	NotificationID string                 `json:"notification_id"`
	UserID         string                 `json:"user_id"`
	DeviceID       *string                `json:"device_id"`
	Type           string                 `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	IsRead         bool                   `json:"is_read"`
	Metadata       map[string]interface{} `json:"metadata"`
	CreatedAt      time.Time              `json:"created_at"`
	ReadAt         *time.Time             `json:"read_at"`
}

//SettingsResponse is the client facing representation of notification settings
type SettingsResponse struct {
	UserID               string     `json:"user_id"`
	ReminderEnabled      bool       `json:"reminder_enabled"`
	ReminderTime         string     `json:"reminder_time"`
	LowBatteryEnabled    bool       `json:"low_battery_enabled"`
	LowSupplementEnabled bool       `json:"low_supplement_enabled"`
	AchievementEnabled   bool       `json:"achievement_enabled"`
	PushPlatform         *string    `json:"push_platform"`
	HasPushToken         bool       `json:"has_push_token"`
	UpdatedAt            *time.Time `json:"updated_at"`
}

//NewResponse maps a stored notification
func NewResponse(n models.Notification) Response {
	metadata := map[string]interface{}(n.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return Response{
		NotificationID: n.ID,
		UserID:         n.UserID,
		DeviceID:       n.DeviceID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		IsRead:         n.IsRead,
		Metadata:       metadata,
		CreatedAt:      n.CreatedAt,
		ReadAt:         n.ReadAt,
	}
}

//NewResponseList maps a slice of stored notifications
func NewResponseList(notifications []models.Notification) []Response {
	responses := make([]Response, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, NewResponse(n))
	}
	return responses
}

//NewSettingsResponse maps stored settings. Settings that were never saved have no update time.
func NewSettingsResponse(s models.NotificationSettings) SettingsResponse {
	response := SettingsResponse{
		UserID:               s.UserID,
		ReminderEnabled:      s.ReminderEnabled,
		ReminderTime:         s.ReminderTime,
		LowBatteryEnabled:    s.LowBatteryEnabled,
		LowSupplementEnabled: s.LowSupplementEnabled,
		AchievementEnabled:   s.AchievementEnabled,
		PushPlatform:         s.PushPlatform,
		HasPushToken:         s.PushToken != nil && *s.PushToken != "",
	}

	if !s.UpdatedAt.IsZero() {
		updated := s.UpdatedAt
		response.UpdatedAt = &updated
	}

	return response
}
