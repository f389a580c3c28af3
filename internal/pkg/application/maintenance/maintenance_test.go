package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"github.com/iot-for-tillgenglighet/messaging-golang/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var morning = time.Date(2024, 4, 1, 8, 30, 0, 0, time.UTC)

func TestThatLowBatteryRaisesOneAlertPerDay(t *testing.T) {
	if w, db, msg, ok := newWorkerForTest(t); ok {
		ctx := context.Background()
		createDevice(t, db, "user-1", 10, 100)
		createDevice(t, db, "user-1", 80, 100)

		summary := w.RunOnce(ctx)
		assert.Equal(t, 1, summary.BatteryAlerts)
		assert.Equal(t, 0, summary.SupplementAlerts)
		assert.Equal(t, 1, msg.PublishCount)

		notifications, _, err := db.QueryNotifications(ctx, database.NotificationQuery{UserID: "user-1", Type: models.NotificationLowBattery})
		require.NoError(t, err)
		require.Len(t, notifications, 1)
		assert.Equal(t, "Low Battery Alert", notifications[0].Title)
		assert.Equal(t, "Device 'Kitchen' is running low on battery (10%)", notifications[0].Message)

		w.now = fixedClock(morning.Add(time.Hour))
		summary = w.RunOnce(ctx)
		assert.Equal(t, 0, summary.BatteryAlerts)

		w.now = fixedClock(morning.Add(25 * time.Hour))
		summary = w.RunOnce(ctx)
		assert.Equal(t, 1, summary.BatteryAlerts)
	}
}

func TestThatDisabledAlertsAreNotRaised(t *testing.T) {
	if w, db, msg, ok := newWorkerForTest(t); ok {
		ctx := context.Background()
		createDevice(t, db, "user-2", 100, 5)

		settings := models.DefaultNotificationSettings("user-2")
		settings.LowSupplementEnabled = false
		settings.ReminderEnabled = false
		require.NoError(t, db.SaveNotificationSettings(ctx, &settings))

		summary := w.RunOnce(ctx)
		assert.Equal(t, 0, summary.SupplementAlerts)
		assert.Equal(t, 0, msg.PublishCount)
	}
}

func TestThatRemindersAreSentOnceNearTheReminderTime(t *testing.T) {
	if w, db, _, ok := newWorkerForTest(t); ok {
		ctx := context.Background()

		early := models.DefaultNotificationSettings("user-1")
		require.NoError(t, db.SaveNotificationSettings(ctx, &early))

		late := models.DefaultNotificationSettings("user-2")
		late.ReminderTime = "20:00"
		require.NoError(t, db.SaveNotificationSettings(ctx, &late))

		summary := w.RunOnce(ctx)
		assert.Equal(t, 1, summary.Reminders)

		reminders, _, err := db.QueryNotifications(ctx, database.NotificationQuery{UserID: "user-1", Type: models.NotificationReminder})
		require.NoError(t, err)
		require.Len(t, reminders, 1)
		assert.Equal(t, "Daily Reminder", reminders[0].Title)

		w.now = fixedClock(morning.Add(30 * time.Minute))
		summary = w.RunOnce(ctx)
		assert.Equal(t, 0, summary.Reminders)
	}
}

func TestThatOldReadNotificationsArePruned(t *testing.T) {
	if w, db, _, ok := newWorkerForTest(t); ok {
		ctx := context.Background()

		old := &models.Notification{UserID: "user-1", Type: models.NotificationAchievement, Title: "t", Message: "m"}
		unread := &models.Notification{UserID: "user-1", Type: models.NotificationAchievement, Title: "t", Message: "m"}
		require.NoError(t, db.CreateNotification(ctx, old))
		require.NoError(t, db.CreateNotification(ctx, unread))

		_, err := db.MarkNotificationsRead(ctx, "user-1", []string{old.ID}, morning.AddDate(0, 0, -40))
		require.NoError(t, err)

		summary := w.RunOnce(ctx)
		assert.Equal(t, int64(1), summary.NotificationsDeleted)

		count, err := db.CountNotifications(ctx, database.NotificationQuery{UserID: "user-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	}
}

func TestThatAFailingStepDoesNotStopTheRun(t *testing.T) {
	if w, db, _, ok := newWorkerForTest(t); ok {
		ctx := context.Background()
		createDevice(t, db, "user-1", 10, 10)
		w.states = &cleanerMock{err: errors.New("disk on fire")}

		summary := w.RunOnce(ctx)
		assert.Equal(t, []string{"state cleanup"}, summary.FailedSteps)
		assert.Equal(t, int64(3), summary.ActivitiesDeleted)
		assert.Equal(t, 1, summary.BatteryAlerts)
		assert.Equal(t, 1, summary.SupplementAlerts)
	}
}

func TestThatRunStopsWhenTheContextIsCancelled(t *testing.T) {
	if w, _, _, ok := newWorkerForTest(t); ok {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			w.Run(ctx)
			close(done)
		}()

		cancel()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func TestReminderWindow(t *testing.T) {
	at := func(hour, minute int) time.Time {
		return time.Date(2024, 4, 1, hour, minute, 0, 0, time.UTC)
	}

	assert.True(t, withinReminderWindow(at(8, 0), at(8, 0)))
	assert.True(t, withinReminderWindow(at(9, 0), at(8, 0)))
	assert.False(t, withinReminderWindow(at(9, 1), at(8, 0)))
	assert.True(t, withinReminderWindow(at(23, 30), at(0, 15)))
	assert.False(t, withinReminderWindow(at(20, 0), at(8, 0)))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var deviceCount = 0

func createDevice(t *testing.T, db database.Datastore, userID string, battery, supplement int) *models.Device {
	deviceCount++
	device := &models.Device{
		UserID:          userID,
		Name:            "Kitchen",
		Type:            "smart_cup",
		MACAddress:      "AA:BB:CC:DD:EE:" + string(rune('A'+deviceCount%26)) + "0",
		SerialNumber:    "SERIAL" + string(rune('A'+deviceCount%26)) + "000",
		BatteryLevel:    battery,
		SupplementLevel: supplement,
		IsConnected:     true,
		IsActive:        true,
	}
	require.NoError(t, db.CreateDevice(context.Background(), device))
	return device
}

func newWorkerForTest(t *testing.T) (*Worker, database.Datastore, *msgMock, bool) {
	log := logging.NewLogger()
	db, err := database.NewDatabaseConnection(database.NewSQLiteConnector(), log)

	if err != nil {
		t.Error(err.Error())
		return nil, nil, nil, false
	}

	cfg := config.MaintenanceConfig{
		Interval:                  time.Hour,
		StateRetentionDays:        90,
		ActivityRetentionDays:     365,
		NotificationRetentionDays: 30,
	}

	msg := &msgMock{}
	w := NewWorker(cfg, db, &cleanerMock{deleted: 2}, &cleanerMock{deleted: 3}, msg, log)
	w.now = fixedClock(morning)

	return w, db, msg, true
}

type cleanerMock struct {
	deleted int64
	err     error
}

func (m *cleanerMock) Cleanup(ctx context.Context, days int) (int64, error) {
	return m.deleted, m.err
}

type msgMock struct {
	PublishCount int
}

func (m *msgMock) PublishOnTopic(message messaging.TopicMessage) error {
	m.PublishCount++
	return nil
}
