//Package synchronization computes the full snapshots and incremental deltas that mobile clients
//use to mirror a user's data, and surfaces conflicts between client and server copies
package synchronization

import (
	"context"
	"fmt"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/notifications"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/iot"
)

const (
	fullSyncNotificationLimit = 100
	fullSyncActivityLimit     = 50
	fullSyncActivityDays      = 30
	deltaSyncActivityLimit    = 100
	fullSyncMaxAge            = 7 * 24 * time.Hour
	conflictVersionMismatch   = "version_mismatch"
)

//ResolutionServerWins is the only resolution policy. The server copy always replaces the client's.
const ResolutionServerWins = "server_wins"

//Store is the part of the datastore the synchronization engine reads from and records syncs in
type Store interface {
	GetDeviceByID(ctx context.Context, deviceID string) (*models.Device, error)
	GetDevicesForUser(ctx context.Context, userID string, includeInactive bool) ([]models.Device, error)
	GetDevicesUpdatedSince(ctx context.Context, userID string, since time.Time) ([]models.Device, error)
	QueryActivityLogs(ctx context.Context, query database.ActivityQuery) ([]models.ActivityLog, error)
	QueryNotifications(ctx context.Context, query database.NotificationQuery) ([]models.Notification, int64, error)
	GetNotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	CreateSyncMetadata(ctx context.Context, sync *models.SyncMetadata) error
	SaveSyncMetadata(ctx context.Context, sync *models.SyncMetadata) error
	GetLatestSyncMetadata(ctx context.Context, userID string) (*models.SyncMetadata, error)
	GetLatestFullSyncMetadata(ctx context.Context, userID string) (*models.SyncMetadata, error)
}

//Service exposes the synchronization engine operations
type Service struct {
	db  Store
	log logging.Logger
	now func() time.Time
}

//NewService creates a synchronization engine backed by db
func NewService(db Store, log logging.Logger) *Service {
	return &Service{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

//FullSyncRequest is sent by a client that wants a complete snapshot
type FullSyncRequest struct {
	DeviceInfo     DeviceInfo `json:"device_info"`
	IncludeDeleted bool       `json:"include_deleted"`
}

//DeltaSyncRequest is sent by a client that wants the changes since its last synchronization
type DeltaSyncRequest struct {
	DeviceInfo        DeviceInfo                          `json:"device_info"`
	LastSyncTimestamp string                              `json:"last_sync_timestamp"`
	ClientChanges     map[string][]map[string]interface{} `json:"client_changes"`
}

//FullSync returns a snapshot of the user's devices, unread notifications, recent activities,
//settings and profile
func (s *Service) FullSync(ctx context.Context, userID string, req FullSyncRequest) (*FullSnapshot, error) {
	if err := req.DeviceInfo.Validate(); err != nil {
		return nil, err
	}

	now := s.now()

	sync, err := s.begin(ctx, userID, req.DeviceInfo)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.fullSnapshot(ctx, userID, req.IncludeDeleted, now)
	if err != nil {
		s.fail(ctx, sync, err)
		return nil, err
	}

	sync.LastFullSync = &now
	sync.SyncStatus = models.SyncSuccess

	if err := s.db.SaveSyncMetadata(ctx, sync); err != nil {
		return nil, fmt.Errorf("failed to record full sync: %w", err)
	}

	snapshot.SyncID = sync.ID
	snapshot.SyncStatus = sync.SyncStatus

	s.log.Infof("Full sync %s for user %s: %d devices, %d notifications, %d activities",
		sync.ID, userID, len(snapshot.Devices), len(snapshot.Notifications), len(snapshot.ActivityLogs))

	return snapshot, nil
}

func (s *Service) fullSnapshot(ctx context.Context, userID string, includeDeleted bool, now time.Time) (*FullSnapshot, error) {
	userDevices, err := s.db.GetDevicesForUser(ctx, userID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to read devices: %w", err)
	}

	unread := false
	unreadNotifications, _, err := s.db.QueryNotifications(ctx, database.NotificationQuery{
		UserID: userID,
		IsRead: &unread,
		Limit:  fullSyncNotificationLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}

	snapshot := &FullSnapshot{
		UserID:        userID,
		Devices:       make([]DeviceData, 0, len(userDevices)),
		Notifications: newNotificationDataList(unreadNotifications),
		ActivityLogs:  []ActivityData{},
		SyncTimestamp: now,
	}

	since := now.AddDate(0, 0, -fullSyncActivityDays)

	for _, d := range userDevices {
		snapshot.Devices = append(snapshot.Devices, newDeviceData(d))

		logs, err := s.db.QueryActivityLogs(ctx, database.ActivityQuery{
			DeviceID: d.ID,
			Start:    &since,
			Limit:    fullSyncActivityLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read activities of device %s: %w", d.ID, err)
		}

		snapshot.ActivityLogs = append(snapshot.ActivityLogs, newActivityDataList(logs)...)
	}

	if snapshot.NotificationSettings, err = s.settings(ctx, userID, nil); err != nil {
		return nil, err
	}

	if snapshot.UserProfile, err = s.profile(ctx, userID, nil); err != nil {
		return nil, err
	}

	return snapshot, nil
}

//DeltaSync returns what changed for the user since the client's last synchronization. Devices
//that were deactivated are reported as deleted and not as updated.
func (s *Service) DeltaSync(ctx context.Context, userID string, req DeltaSyncRequest) (*Delta, error) {
	if err := req.DeviceInfo.Validate(); err != nil {
		return nil, err
	}

	if req.LastSyncTimestamp == "" {
		return nil, apperrors.Validation("last_sync_timestamp is required")
	}

	lastSync, err := iot.ParseTimestamp(req.LastSyncTimestamp)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}

	now := s.now()
	if lastSync.After(now) {
		return nil, apperrors.Validation("Sync timestamp cannot be in the future").
			WithDetail("last_sync_timestamp", req.LastSyncTimestamp)
	}

	sync, err := s.begin(ctx, userID, req.DeviceInfo)
	if err != nil {
		return nil, err
	}

	delta, err := s.delta(ctx, userID, lastSync, now, req.ClientChanges)
	if err != nil {
		s.fail(ctx, sync, err)
		return nil, err
	}

	sync.LastDeltaSync = &now
	sync.SyncStatus = models.SyncSuccess

	if err := s.db.SaveSyncMetadata(ctx, sync); err != nil {
		return nil, fmt.Errorf("failed to record delta sync: %w", err)
	}

	delta.SyncID = sync.ID
	delta.SyncStatus = sync.SyncStatus

	return delta, nil
}

func (s *Service) delta(ctx context.Context, userID string, lastSync, now time.Time, changes map[string][]map[string]interface{}) (*Delta, error) {
	delta := &Delta{
		UserID:          userID,
		DevicesUpdated:  []DeviceData{},
		DevicesDeleted:  []string{},
		ActivityLogsNew: []ActivityData{},
		SyncTimestamp:   now,
		Conflicts:       []Conflict{},
	}

	changed, err := s.db.GetDevicesUpdatedSince(ctx, userID, lastSync)
	if err != nil {
		return nil, fmt.Errorf("failed to read changed devices: %w", err)
	}

	for _, d := range changed {
		if d.IsActive {
			delta.DevicesUpdated = append(delta.DevicesUpdated, newDeviceData(d))
		} else {
			delta.DevicesDeleted = append(delta.DevicesDeleted, d.ID)
		}
	}

	created, _, err := s.db.QueryNotifications(ctx, database.NotificationQuery{UserID: userID, CreatedAfter: &lastSync})
	if err != nil {
		return nil, fmt.Errorf("failed to read new notifications: %w", err)
	}
	delta.NotificationsNew = newNotificationDataList(created)

	read, _, err := s.db.QueryNotifications(ctx, database.NotificationQuery{UserID: userID, ReadAfter: &lastSync})
	if err != nil {
		return nil, fmt.Errorf("failed to read updated notifications: %w", err)
	}
	delta.NotificationsUpdated = newNotificationDataList(read)

	active, err := s.db.GetDevicesForUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read devices: %w", err)
	}

	for _, d := range active {
		logs, err := s.db.QueryActivityLogs(ctx, database.ActivityQuery{
			DeviceID: d.ID,
			After:    &lastSync,
			Limit:    deltaSyncActivityLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read activities of device %s: %w", d.ID, err)
		}

		delta.ActivityLogsNew = append(delta.ActivityLogsNew, newActivityDataList(logs)...)
	}

	if delta.NotificationSettingsUpdated, err = s.settings(ctx, userID, &lastSync); err != nil {
		return nil, err
	}

	if delta.UserProfileUpdated, err = s.profile(ctx, userID, &lastSync); err != nil {
		return nil, err
	}

	if delta.Conflicts, err = s.detectConflicts(ctx, userID, changes["devices"]); err != nil {
		return nil, err
	}

	return delta, nil
}

//detectConflicts reports client device copies that are older than the server copy
func (s *Service) detectConflicts(ctx context.Context, userID string, clientDevices []map[string]interface{}) ([]Conflict, error) {
	conflicts := []Conflict{}

	for _, clientDevice := range clientDevices {
		deviceID, _ := clientDevice["device_id"].(string)
		clientUpdated, _ := clientDevice["updated_at"].(string)

		if deviceID == "" || clientUpdated == "" {
			continue
		}

		server, err := s.db.GetDeviceByID(ctx, deviceID)
		if apperrors.IsNotFound(err) {
			continue
		} else if err != nil {
			return nil, err
		}

		if server.UserID != userID {
			continue
		}

		clientTime, err := iot.ParseTimestamp(clientUpdated)
		if err != nil {
			return nil, apperrors.Validation("Client device %s has an invalid updated_at: %s", deviceID, err.Error())
		}

		if server.UpdatedAt.After(clientTime) {
			conflicts = append(conflicts, Conflict{
				EntityType:    "device",
				EntityID:      deviceID,
				ConflictType:  conflictVersionMismatch,
				ClientVersion: clientDevice,
				ServerVersion: newDeviceData(*server),
				Resolution:    ResolutionServerWins,
			})
		}
	}

	return conflicts, nil
}

//ResolveConflict settles a conflict. The server version always wins.
func (s *Service) ResolveConflict(ctx context.Context, conflict Conflict) (*Resolution, error) {
	if conflict.EntityType == "" || conflict.EntityID == "" {
		return nil, apperrors.Validation("entity_type and entity_id are required")
	}

	return &Resolution{
		EntityType:      conflict.EntityType,
		EntityID:        conflict.EntityID,
		Resolution:      ResolutionServerWins,
		ResolvedVersion: conflict.ServerVersion,
		Timestamp:       s.now(),
	}, nil
}

//GetSyncStatus reports when the user last synchronized and whether a full sync is due
func (s *Service) GetSyncStatus(ctx context.Context, userID string) (*Status, error) {
	status := &Status{UserID: userID, NeedsFullSync: true}

	latest, err := s.db.GetLatestSyncMetadata(ctx, userID)
	if apperrors.IsNotFound(err) {
		return status, nil
	} else if err != nil {
		return nil, err
	}

	status.LastDeltaSync = latest.LastDeltaSync
	if latest.SyncStatus != "" {
		status.SyncStatus = &latest.SyncStatus
	}

	full, err := s.db.GetLatestFullSyncMetadata(ctx, userID)
	if err == nil {
		status.LastFullSync = full.LastFullSync
	} else if !apperrors.IsNotFound(err) {
		return nil, err
	}

	if status.LastFullSync != nil {
		status.NeedsFullSync = s.now().Sub(*status.LastFullSync) > fullSyncMaxAge
	}

	return status, nil
}

func (s *Service) begin(ctx context.Context, userID string, info DeviceInfo) (*models.SyncMetadata, error) {
	sync := &models.SyncMetadata{
		UserID:     userID,
		DeviceInfo: info.toMap(),
		SyncStatus: models.SyncPartial,
	}

	if err := s.db.CreateSyncMetadata(ctx, sync); err != nil {
		return nil, fmt.Errorf("failed to record sync: %w", err)
	}

	return sync, nil
}

func (s *Service) fail(ctx context.Context, sync *models.SyncMetadata, cause error) {
	s.log.Errorf("Sync %s for user %s failed: %s", sync.ID, sync.UserID, cause.Error())

	sync.SyncStatus = models.SyncFailed
	if err := s.db.SaveSyncMetadata(ctx, sync); err != nil {
		s.log.Errorf("Failed to mark sync %s as failed: %s", sync.ID, err.Error())
	}
}

//settings returns the user's notification settings, if they exist and changed after since
func (s *Service) settings(ctx context.Context, userID string, since *time.Time) (*notifications.SettingsResponse, error) {
	settings, err := s.db.GetNotificationSettings(ctx, userID)
	if apperrors.IsNotFound(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read notification settings: %w", err)
	}

	if since != nil && !settings.UpdatedAt.After(*since) {
		return nil, nil
	}

	response := notifications.NewSettingsResponse(*settings)
	return &response, nil
}

//profile returns the user's profile, if it exists and changed after since
func (s *Service) profile(ctx context.Context, userID string, since *time.Time) (*ProfileData, error) {
	profile, err := s.db.GetUserProfile(ctx, userID)
	if apperrors.IsNotFound(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read user profile: %w", err)
	}

	if since != nil && !profile.UpdatedAt.After(*since) {
		return nil, nil
	}

	return newProfileData(*profile), nil
}
