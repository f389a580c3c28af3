package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThatCreatedNotificationIsListedAsUnread(t *testing.T) {
	if svc, db, ok := newServiceForTest(t); ok {
		ctx := context.Background()
		device := createDevice(t, db, "user-1")

		created, err := svc.Create(ctx, "user-1", CreateRequest{
			DeviceID: &device.ID,
			Type:     models.NotificationAchievement,
			Title:    "Ten in a row",
			Message:  "You have taken your supplement ten days in a row",
		})
		require.NoError(t, err)
		assert.False(t, created.IsRead)
		assert.Nil(t, created.ReadAt)

		unread := false
		page, err := svc.List(ctx, "user-1", ListOptions{IsRead: &unread})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		require.Len(t, page.Notifications, 1)
		assert.Equal(t, created.NotificationID, page.Notifications[0].NotificationID)

		count, err := svc.UnreadCount(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	}
}

func TestThatCreateValidatesInput(t *testing.T) {
	if svc, db, ok := newServiceForTest(t); ok {
		ctx := context.Background()
		theirs := createDevice(t, db, "user-2")

		_, err := svc.Create(ctx, "user-1", CreateRequest{Type: "spam", Title: "t", Message: "m"})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

		_, err = svc.Create(ctx, "user-1", CreateRequest{Type: models.NotificationReminder, Title: " ", Message: "m"})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

		_, err = svc.Create(ctx, "user-1", CreateRequest{DeviceID: &theirs.ID, Type: models.NotificationReminder, Title: "t", Message: "m"})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	}
}

func TestThatMarkReadKeepsTheFirstReadTime(t *testing.T) {
	if svc, _, ok := newServiceForTest(t); ok {
		ctx := context.Background()
		created := createNotification(t, svc, "user-1", models.NotificationReminder)
		first := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

		svc.now = fixedClock(first)
		read, err := svc.MarkRead(ctx, "user-1", created.NotificationID)
		require.NoError(t, err)
		assert.True(t, read.IsRead)
		require.NotNil(t, read.ReadAt)
		assert.True(t, first.Equal(*read.ReadAt))

		svc.now = fixedClock(first.Add(time.Hour))
		again, err := svc.MarkRead(ctx, "user-1", created.NotificationID)
		require.NoError(t, err)
		assert.True(t, first.Equal(*again.ReadAt))
	}
}

func TestThatOtherUsersNotificationsAreForbidden(t *testing.T) {
	if svc, _, ok := newServiceForTest(t); ok {
		ctx := context.Background()
		created := createNotification(t, svc, "user-1", models.NotificationReminder)

		_, err := svc.Get(ctx, "user-2", created.NotificationID)
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

		_, err = svc.MarkRead(ctx, "user-2", created.NotificationID)
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

		err = svc.Delete(ctx, "user-2", created.NotificationID)
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

		require.NoError(t, svc.Delete(ctx, "user-1", created.NotificationID))

		_, err = svc.Get(ctx, "user-1", created.NotificationID)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	}
}

func TestThatBulkAndAllMarkingOnlyTouchOwnNotifications(t *testing.T) {
	if svc, _, ok := newServiceForTest(t); ok {
		ctx := context.Background()
		a := createNotification(t, svc, "user-1", models.NotificationReminder)
		createNotification(t, svc, "user-1", models.NotificationLowBattery)
		createNotification(t, svc, "user-1", models.NotificationLowBattery)
		foreign := createNotification(t, svc, "user-2", models.NotificationReminder)

		marked, err := svc.BulkMarkRead(ctx, "user-1", []string{a.NotificationID, foreign.NotificationID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), marked)

		_, err = svc.BulkMarkRead(ctx, "user-1", []string{})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

		marked, err = svc.MarkAllRead(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), marked)

		stats, err := svc.Stats(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Total)
		assert.Equal(t, int64(0), stats.Unread)
		assert.Equal(t, int64(2), stats.ByType[models.NotificationLowBattery])
		assert.Equal(t, int64(0), stats.ByType[models.NotificationAchievement])

		count, err := svc.UnreadCount(ctx, "user-2")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	}
}

func TestThatListValidatesPaging(t *testing.T) {
	if svc, _, ok := newServiceForTest(t); ok {
		_, err := svc.List(context.Background(), "user-1", ListOptions{Limit: 101})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

		_, err = svc.List(context.Background(), "user-1", ListOptions{Type: "spam"})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	}
}

func TestThatDefaultSettingsAreReturnedButNotStored(t *testing.T) {
	if svc, db, ok := newServiceForTest(t); ok {
		ctx := context.Background()

		settings, err := svc.GetSettings(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, settings.ReminderEnabled)
		assert.Equal(t, "08:00", settings.ReminderTime)
		assert.Nil(t, settings.UpdatedAt)

		_, err = db.GetNotificationSettings(ctx, "user-1")
		assert.True(t, apperrors.IsNotFound(err))
	}
}

func TestThatSettingsUpdatesArePersisted(t *testing.T) {
	if svc, db, ok := newServiceForTest(t); ok {
		ctx := context.Background()
		reminderTime, disabled := "21:30", false

		_, err := svc.UpdateSettings(ctx, "user-1", SettingsUpdate{ReminderTime: &reminderTime, LowBatteryEnabled: &disabled})
		require.NoError(t, err)

		stored, err := db.GetNotificationSettings(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "21:30", stored.ReminderTime)
		assert.False(t, stored.LowBatteryEnabled)
		assert.True(t, stored.LowSupplementEnabled)

		invalid := "25:00"
		_, err = svc.UpdateSettings(ctx, "user-1", SettingsUpdate{ReminderTime: &invalid})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

		updated, err := svc.UpdatePushToken(ctx, "user-1", PushTokenUpdate{PushToken: "token-123", Platform: "android"})
		require.NoError(t, err)
		assert.True(t, updated.HasPushToken)
		assert.Equal(t, "21:30", updated.ReminderTime)

		_, err = svc.UpdatePushToken(ctx, "user-1", PushTokenUpdate{PushToken: "token-123", Platform: "symbian"})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	}
}

func createNotification(t *testing.T, svc *Service, userID, notificationType string) *Response {
	created, err := svc.Create(context.Background(), userID, CreateRequest{
		Type:    notificationType,
		Title:   "Title",
		Message: "Message",
	})
	require.NoError(t, err)
	return created
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func createDevice(t *testing.T, db database.Datastore, userID string) *models.Device {
	device := &models.Device{
		UserID:          userID,
		Name:            "Kitchen",
		Type:            "fish_oil",
		MACAddress:      "AA:BB:CC:DD:EE:01",
		SerialNumber:    "SERIAL0001",
		BatteryLevel:    100,
		SupplementLevel: 100,
		IsActive:        true,
	}
	require.NoError(t, db.CreateDevice(context.Background(), device))
	return device
}

func newServiceForTest(t *testing.T) (*Service, database.Datastore, bool) {
	log := logging.NewLogger()
	db, err := database.NewDatabaseConnection(database.NewSQLiteConnector(), log)

	if err != nil {
		t.Error(err.Error())
		return nil, nil, false
	}

	return NewService(db, log), db, true
}
