package synchronization

import (
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/notifications"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
)

//DeviceData is a device as mirrored by clients
type DeviceData struct {
	DeviceID            string     `json:"device_id"`
	DeviceName          string     `json:"device_name"`
	DeviceType          string     `json:"device_type"`
	MACAddress          string     `json:"mac_address"`
	SerialNumber        string     `json:"serial_number"`
	Location            *string    `json:"location"`
	BatteryLevel        int        `json:"battery_level"`
	SupplementLevel     int        `json:"supplement_level"`
	IsConnected         bool       `json:"is_connected"`
	FirmwareVersion     *string    `json:"firmware_version"`
	TotalDosesDispensed int        `json:"total_doses_dispensed"`
	LastSync            *time.Time `json:"last_sync"`
	IsActive            bool       `json:"is_active"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

//NotificationData is a notification as mirrored by clients
type NotificationData struct {
	NotificationID string                 `json:"notification_id"`
	DeviceID       *string                `json:"device_id"`
	Type           string                 `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	IsRead         bool                   `json:"is_read"`
	Metadata       map[string]interface{} `json:"metadata"`
	CreatedAt      time.Time              `json:"created_at"`
	ReadAt         *time.Time             `json:"read_at"`
}

//ActivityData is an activity log entry as mirrored by clients
type ActivityData struct {
	LogID       string                 `json:"log_id"`
	DeviceID    string                 `json:"device_id"`
	Action      string                 `json:"action"`
	DoseAmount  *string                `json:"dose_amount"`
	TriggeredBy string                 `json:"triggered_by"`
	Metadata    map[string]interface{} `json:"metadata"`
	Timestamp   time.Time              `json:"timestamp"`
}

//ProfileData holds the user preferences mirrored by clients
type ProfileData struct {
	UserID              string    `json:"user_id"`
	NotificationEnabled bool      `json:"notification_enabled"`
	Theme               string    `json:"theme"`
	Language            string    `json:"language"`
	Timezone            string    `json:"timezone"`
	UpdatedAt           time.Time `json:"updated_at"`
}

//FullSnapshot is everything a client needs to rebuild its local copy
type FullSnapshot struct {
	SyncID               string                          `json:"sync_id"`
	UserID               string                          `json:"user_id"`
	Devices              []DeviceData                    `json:"devices"`
	Notifications        []NotificationData              `json:"notifications"`
	ActivityLogs         []ActivityData                  `json:"activity_logs"`
	NotificationSettings *notifications.SettingsResponse `json:"notification_settings"`
	UserProfile          *ProfileData                    `json:"user_profile"`
	SyncTimestamp        time.Time                       `json:"sync_timestamp"`
	SyncStatus           string                          `json:"sync_status"`
}

//Delta is what changed since the client last synchronized
type Delta struct {
	SyncID                      string                          `json:"sync_id"`
	UserID                      string                          `json:"user_id"`
	DevicesUpdated              []DeviceData                    `json:"devices_updated"`
	DevicesDeleted              []string                        `json:"devices_deleted"`
	NotificationsNew            []NotificationData              `json:"notifications_new"`
	NotificationsUpdated        []NotificationData              `json:"notifications_updated"`
	ActivityLogsNew             []ActivityData                  `json:"activity_logs_new"`
	NotificationSettingsUpdated *notifications.SettingsResponse `json:"notification_settings_updated"`
	UserProfileUpdated          *ProfileData                    `json:"user_profile_updated"`
	SyncTimestamp               time.Time                       `json:"sync_timestamp"`
	SyncStatus                  string                          `json:"sync_status"`
	Conflicts                   []Conflict                      `json:"conflicts"`
}

//Conflict describes an entity the client changed after the server did
type Conflict struct {
	EntityType    string                 `json:"entity_type"`
	EntityID      string                 `json:"entity_id"`
	ConflictType  string                 `json:"conflict_type"`
	ClientVersion map[string]interface{} `json:"client_version"`
	ServerVersion interface{}            `json:"server_version"`
	Resolution    string                 `json:"resolution"`
}

//Resolution is the outcome of resolving a conflict
type Resolution struct {
	EntityType      string      `json:"entity_type"`
	EntityID        string      `json:"entity_id"`
	Resolution      string      `json:"resolution"`
	ResolvedVersion interface{} `json:"resolved_version"`
	Timestamp       time.Time   `json:"timestamp"`
}

//Status summarizes the synchronization history of a user
type Status struct {
	UserID         string     `json:"user_id"`
	LastFullSync   *time.Time `json:"last_full_sync"`
	LastDeltaSync  *time.Time `json:"last_delta_sync"`
	SyncStatus     *string    `json:"sync_status"`
	NeedsFullSync  bool       `json:"needs_full_sync"`
	PendingChanges int        `json:"pending_changes"`
}

func newDeviceData(d models.Device) DeviceData {
	return DeviceData{
		DeviceID:            d.ID,
		DeviceName:          d.Name,
		DeviceType:          d.Type,
		MACAddress:          d.MACAddress,
		SerialNumber:        d.SerialNumber,
		Location:            d.Location,
		BatteryLevel:        d.BatteryLevel,
		SupplementLevel:     d.SupplementLevel,
		IsConnected:         d.IsConnected,
		FirmwareVersion:     d.FirmwareVersion,
		TotalDosesDispensed: d.TotalDosesDispensed,
		LastSync:            d.LastSync,
		IsActive:            d.IsActive,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func newNotificationData(n models.Notification) NotificationData {
	return NotificationData{
		NotificationID: n.ID,
		DeviceID:       n.DeviceID,
		Type:           n.Type,
		Title:          n.Title,
		Message:        n.Message,
		IsRead:         n.IsRead,
		Metadata:       n.Metadata,
		CreatedAt:      n.CreatedAt,
		ReadAt:         n.ReadAt,
	}
}

func newNotificationDataList(list []models.Notification) []NotificationData {
	result := make([]NotificationData, 0, len(list))
	for _, n := range list {
		result = append(result, newNotificationData(n))
	}
	return result
}

func newActivityDataList(logs []models.ActivityLog) []ActivityData {
	result := make([]ActivityData, 0, len(logs))
	for _, l := range logs {
		result = append(result, ActivityData{
			LogID:       l.ID,
			DeviceID:    l.DeviceID,
			Action:      l.Action,
			DoseAmount:  l.DoseAmount,
			TriggeredBy: l.TriggeredBy,
			Metadata:    l.Metadata,
			Timestamp:   l.Timestamp,
		})
	}
	return result
}

func newProfileData(p models.UserProfile) *ProfileData {
	return &ProfileData{
		UserID:              p.UserID,
		NotificationEnabled: p.NotificationEnabled,
		Theme:               p.Theme,
		Language:            p.Language,
		Timezone:            p.Timezone,
		UpdatedAt:           p.UpdatedAt,
	}
}
