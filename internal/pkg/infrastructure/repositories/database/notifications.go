package database

import (
	"context"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//NotificationQuery narrows down a user's notifications. Zero values do not filter.
//CreatedAfter and ReadAfter are exclusive lower bounds.
type NotificationQuery struct {
	UserID       string
	DeviceID     string
	Type         string
	IsRead       *bool
	CreatedAfter *time.Time
	ReadAfter    *time.Time
	Limit        int
	Offset       int
}

func (q NotificationQuery) apply(tx *gorm.DB) *gorm.DB {
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.DeviceID != "" {
		tx = tx.Where("device_id = ?", q.DeviceID)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.IsRead != nil {
		tx = tx.Where("is_read = ?", *q.IsRead)
	}
	if q.CreatedAfter != nil {
		tx = tx.Where("created_at > ?", utc(q.CreatedAfter))
	}
	if q.ReadAfter != nil {
		tx = tx.Where("read_at IS NOT NULL AND read_at > ?", utc(q.ReadAfter))
	}
	return tx
}

func (db *myDB) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return db.impl.WithContext(ctx).Create(notification).Error
}

func (db *myDB) GetNotificationByID(ctx context.Context, notificationID string) (*models.Notification, error) {
	notification := &models.Notification{}
	result := db.impl.WithContext(ctx).Where("id = ?", notificationID).First(notification)
	if result.Error != nil {
		return nil, translate(result.Error, "Notification", notificationID)
	}
	return notification, nil
}

//QueryNotifications returns a page of notifications, newest first, together with the
//number of notifications that match the query regardless of paging
func (db *myDB) QueryNotifications(ctx context.Context, query NotificationQuery) ([]models.Notification, int64, error) {
	total, err := db.CountNotifications(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	notifications := []models.Notification{}
	tx := query.apply(db.impl.WithContext(ctx).Model(&models.Notification{}))
	result := paginate(tx.Order("created_at DESC"), query.Limit, query.Offset).Find(&notifications)

	return notifications, total, result.Error
}

func (db *myDB) CountNotifications(ctx context.Context, query NotificationQuery) (int64, error) {
	var count int64
	result := query.apply(db.impl.WithContext(ctx).Model(&models.Notification{})).Count(&count)
	return count, result.Error
}

func (db *myDB) CountNotificationsByType(ctx context.Context, userID string) (map[string]int64, error) {
	type typeCount struct {
		Type  string
		Total int64
	}

	rows := []typeCount{}
	result := db.impl.WithContext(ctx).Model(&models.Notification{}).
		Select("type, count(*) AS total").
		Where("user_id = ?", userID).
		Group("type").
		Scan(&rows)

	if result.Error != nil {
		return nil, result.Error
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Type] = r.Total
	}

	return counts, nil
}

//MarkNotificationsRead marks unread notifications owned by userID as read. A nil list of ids
//marks all of them.
func (db *myDB) MarkNotificationsRead(ctx context.Context, userID string, notificationIDs []string, readAt time.Time) (int64, error) {
	tx := db.impl.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false)

	if notificationIDs != nil {
		if len(notificationIDs) == 0 {
			return 0, nil
		}
		tx = tx.Where("id IN ?", notificationIDs)
	}

	result := tx.Updates(map[string]interface{}{
		"is_read": true,
		"read_at": readAt.UTC(),
	})

	return result.RowsAffected, result.Error
}

func (db *myDB) DeleteNotification(ctx context.Context, notificationID string) error {
	result := db.impl.WithContext(ctx).Where("id = ?", notificationID).Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "Notification", notificationID)
	}
	return nil
}

func (db *myDB) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := db.impl.WithContext(ctx).
		Where("is_read = ? AND read_at < ?", true, cutoff.UTC()).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

func (db *myDB) GetNotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	settings := &models.NotificationSettings{}
	result := db.impl.WithContext(ctx).Where("user_id = ?", userID).First(settings)
	if result.Error != nil {
		return nil, translate(result.Error, "Notification settings for user", userID)
	}
	return settings, nil
}

func (db *myDB) GetSettingsWithRemindersEnabled(ctx context.Context) ([]models.NotificationSettings, error) {
	settings := []models.NotificationSettings{}
	result := db.impl.WithContext(ctx).Where("reminder_enabled = ?", true).Find(&settings)
	return settings, result.Error
}

func (db *myDB) SaveNotificationSettings(ctx context.Context, settings *models.NotificationSettings) error {
	settings.UpdatedAt = db.impl.NowFunc()
	return db.impl.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(settings).Error
}

func (db *myDB) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile := &models.UserProfile{}
	result := db.impl.WithContext(ctx).Where("user_id = ?", userID).First(profile)
	if result.Error != nil {
		return nil, translate(result.Error, "Profile for user", userID)
	}
	return profile, nil
}

func (db *myDB) SaveUserProfile(ctx context.Context, profile *models.UserProfile) error {
	profile.UpdatedAt = db.impl.NowFunc()
	return db.impl.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(profile).Error
}
