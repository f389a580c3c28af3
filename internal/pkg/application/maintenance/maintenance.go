//Package maintenance runs the periodic housekeeping: retention cleanup, device alerts and daily reminders
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/events"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/iot"
)

const (
	alertDedupeWindow    = 24 * time.Hour
	reminderDedupeWindow = 20 * time.Hour
	reminderWindow       = 60
	minutesPerDay        = 24 * 60
)

//Store is the part of the datastore the housekeeping touches
type Store interface {
	GetActiveDevicesWithLowBattery(ctx context.Context, threshold int) ([]models.Device, error)
	GetActiveDevicesWithLowSupplement(ctx context.Context, threshold int) ([]models.Device, error)
	CreateNotification(ctx context.Context, notification *models.Notification) error
	CountNotifications(ctx context.Context, query database.NotificationQuery) (int64, error)
	DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetNotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
	GetSettingsWithRemindersEnabled(ctx context.Context) ([]models.NotificationSettings, error)
}

//Cleaner prunes records older than a number of days
type Cleaner interface {
	Cleanup(ctx context.Context, days int) (int64, error)
}

//Summary reports what a single run did
type Summary struct {
	StatesDeleted        int64
	ActivitiesDeleted    int64
	NotificationsDeleted int64
	BatteryAlerts        int
	SupplementAlerts     int
	Reminders            int
	FailedSteps          []string
}

//Worker runs the housekeeping steps on a fixed interval
type Worker struct {
	cfg        config.MaintenanceConfig
	db         Store
	states     Cleaner
	activities Cleaner
	publisher  events.Publisher
	log        logging.Logger
	now        func() time.Time
}

//NewWorker creates a worker that prunes states and activities through their services
func NewWorker(cfg config.MaintenanceConfig, db Store, states, activities Cleaner, publisher events.Publisher, log logging.Logger) *Worker {
	return &Worker{
		cfg:        cfg,
		db:         db,
		states:     states,
		activities: activities,
		publisher:  publisher,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

//Run executes a run immediately and then once every interval until ctx is cancelled
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Infof("Maintenance worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

//RunOnce executes every step. A failing step is logged and does not prevent the others from running.
func (w *Worker) RunOnce(ctx context.Context) Summary {
	summary := Summary{}
	var err error

	step := func(name string, err error) {
		if err != nil {
			w.log.Errorf("Maintenance step %s failed: %s", name, err.Error())
			summary.FailedSteps = append(summary.FailedSteps, name)
		}
	}

	summary.StatesDeleted, err = w.states.Cleanup(ctx, w.cfg.StateRetentionDays)
	step("state cleanup", err)

	summary.ActivitiesDeleted, err = w.activities.Cleanup(ctx, w.cfg.ActivityRetentionDays)
	step("activity cleanup", err)

	summary.NotificationsDeleted, err = w.cleanupNotifications(ctx)
	step("notification cleanup", err)

	summary.BatteryAlerts, err = w.raiseAlerts(ctx, batteryAlert)
	step("battery alerts", err)

	summary.SupplementAlerts, err = w.raiseAlerts(ctx, supplementAlert)
	step("supplement alerts", err)

	summary.Reminders, err = w.sendReminders(ctx)
	step("reminders", err)

	w.log.Infof("Maintenance done: %d states, %d activities and %d notifications pruned, %d alerts and %d reminders sent",
		summary.StatesDeleted, summary.ActivitiesDeleted, summary.NotificationsDeleted,
		summary.BatteryAlerts+summary.SupplementAlerts, summary.Reminders)

	return summary
}

func (w *Worker) cleanupNotifications(ctx context.Context) (int64, error) {
	if w.cfg.NotificationRetentionDays < 1 {
		return 0, apperrors.Validation("Notification retention must be at least one day")
	}

	cutoff := w.now().AddDate(0, 0, -w.cfg.NotificationRetentionDays)
	return w.db.DeleteReadNotificationsBefore(ctx, cutoff)
}

type alertKind struct {
	notificationType string
	action           string
	title            string
	subject          string
	threshold        int
	find             func(Store, context.Context, int) ([]models.Device, error)
	level            func(models.Device) int
	enabled          func(models.NotificationSettings) bool
}

var batteryAlert = alertKind{
	notificationType: models.NotificationLowBattery,
	action:           models.ActionBatteryLow,
	title:            "Low Battery Alert",
	subject:          "battery",
	threshold:        iot.LowBatteryThreshold,
	find:             Store.GetActiveDevicesWithLowBattery,
	level:            func(d models.Device) int { return d.BatteryLevel },
	enabled:          func(s models.NotificationSettings) bool { return s.LowBatteryEnabled },
}

var supplementAlert = alertKind{
	notificationType: models.NotificationLowSupplement,
	action:           models.ActionSupplementLow,
	title:            "Low Supplement Alert",
	subject:          "supplement",
	threshold:        iot.LowSupplementThreshold,
	find:             Store.GetActiveDevicesWithLowSupplement,
	level:            func(d models.Device) int { return d.SupplementLevel },
	enabled:          func(s models.NotificationSettings) bool { return s.LowSupplementEnabled },
}

//raiseAlerts notifies the owners of devices at or below the threshold, at most once per
//device and day
func (w *Worker) raiseAlerts(ctx context.Context, kind alertKind) (int, error) {
	devices, err := kind.find(w.db, ctx, kind.threshold)
	if err != nil {
		return 0, err
	}

	now := w.now()
	since := now.Add(-alertDedupeWindow)
	raised := 0

	for _, d := range devices {
		deviceID := d.ID

		recent, err := w.db.CountNotifications(ctx, database.NotificationQuery{
			DeviceID:     deviceID,
			Type:         kind.notificationType,
			CreatedAfter: &since,
		})
		if err != nil {
			return raised, err
		}
		if recent > 0 {
			continue
		}

		settings, err := w.settings(ctx, d.UserID)
		if err != nil {
			return raised, err
		}
		if !kind.enabled(*settings) {
			continue
		}

		level := kind.level(d)
		notification := &models.Notification{
			UserID:    d.UserID,
			DeviceID:  &deviceID,
			Type:      kind.notificationType,
			Title:     kind.title,
			Message:   fmt.Sprintf("Device '%s' is running low on %s (%d%%)", d.Name, kind.subject, level),
			Metadata:  map[string]interface{}{kind.subject + "_level": level},
			CreatedAt: now,
		}

		if err := w.db.CreateNotification(ctx, notification); err != nil {
			return raised, err
		}

		events.Publish(w.log, w.publisher, &events.DeviceAlert{
			DeviceID:  deviceID,
			UserID:    d.UserID,
			AlertType: kind.action,
			Level:     level,
			Timestamp: now,
		})

		raised++
	}

	return raised, nil
}

//sendReminders sends the daily reminder to users whose reminder time is within an hour of now
func (w *Worker) sendReminders(ctx context.Context) (int, error) {
	all, err := w.db.GetSettingsWithRemindersEnabled(ctx)
	if err != nil {
		return 0, err
	}

	now := w.now()
	since := now.Add(-reminderDedupeWindow)
	sent := 0

	for _, settings := range all {
		reminderAt, err := time.Parse("15:04", settings.ReminderTime)
		if err != nil {
			w.log.Warnf("Ignoring invalid reminder time %q of user %s", settings.ReminderTime, settings.UserID)
			continue
		}

		if !withinReminderWindow(now, reminderAt) {
			continue
		}

		recent, err := w.db.CountNotifications(ctx, database.NotificationQuery{
			UserID:       settings.UserID,
			Type:         models.NotificationReminder,
			CreatedAfter: &since,
		})
		if err != nil {
			return sent, err
		}
		if recent > 0 {
			continue
		}

		err = w.db.CreateNotification(ctx, &models.Notification{
			UserID:    settings.UserID,
			Type:      models.NotificationReminder,
			Title:     "Daily Reminder",
			Message:   "Don't forget to take your supplement today!",
			CreatedAt: now,
		})
		if err != nil {
			return sent, err
		}

		sent++
	}

	return sent, nil
}

func withinReminderWindow(now, reminderAt time.Time) bool {
	diff := (now.Hour()*60 + now.Minute()) - (reminderAt.Hour()*60 + reminderAt.Minute())
	if diff < 0 {
		diff = -diff
	}
	if diff > minutesPerDay/2 {
		diff = minutesPerDay - diff
	}
	return diff <= reminderWindow
}

func (w *Worker) settings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	settings, err := w.db.GetNotificationSettings(ctx, userID)
	if apperrors.IsNotFound(err) {
		defaults := models.DefaultNotificationSettings(userID)
		return &defaults, nil
	}
	return settings, err
}
