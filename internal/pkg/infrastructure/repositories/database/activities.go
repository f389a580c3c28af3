package database

import (
	"context"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"gorm.io/gorm"
)

//ActivityQuery narrows down the activity log. Zero values do not filter.
//Start and End are inclusive bounds while After is an exclusive lower bound.
type ActivityQuery struct {
	DeviceID string
	UserID   string
	Action   string
	Start    *time.Time
	End      *time.Time
	After    *time.Time
	Limit    int
	Offset   int
}

func (q ActivityQuery) apply(tx *gorm.DB) *gorm.DB {
	if q.DeviceID != "" {
		tx = tx.Where("device_id = ?", q.DeviceID)
	}
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}
	if q.Start != nil {
		tx = tx.Where("timestamp >= ?", utc(q.Start))
	}
	if q.End != nil {
		tx = tx.Where("timestamp <= ?", utc(q.End))
	}
	if q.After != nil {
		tx = tx.Where("timestamp > ?", utc(q.After))
	}
	return tx
}

//CreateActivityLog appends an entry to the log. Recording a dispense also bumps the
//device dose counter, both or neither.
func (db *myDB) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	entry.Timestamp = entry.Timestamp.UTC()

	return db.impl.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		if entry.Action == models.ActionDoseDispensed {
			return incrementDoseCount(tx, entry.DeviceID)
		}

		return nil
	})
}

func (db *myDB) QueryActivityLogs(ctx context.Context, query ActivityQuery) ([]models.ActivityLog, error) {
	logs := []models.ActivityLog{}

	tx := query.apply(db.impl.WithContext(ctx).Model(&models.ActivityLog{}))
	result := paginate(tx.Order("timestamp DESC"), query.Limit, query.Offset).Find(&logs)

	return logs, result.Error
}

func (db *myDB) CountActivityLogs(ctx context.Context, query ActivityQuery) (int64, error) {
	var count int64
	result := query.apply(db.impl.WithContext(ctx).Model(&models.ActivityLog{})).Count(&count)
	return count, result.Error
}

func (db *myDB) GetActionBreakdown(ctx context.Context, query ActivityQuery) (map[string]int64, error) {
	type actionCount struct {
		Action string
		Total  int64
	}

	rows := []actionCount{}
	result := query.apply(db.impl.WithContext(ctx).Model(&models.ActivityLog{})).
		Select("action, count(*) AS total").
		Group("action").
		Scan(&rows)

	if result.Error != nil {
		return nil, result.Error
	}

	breakdown := make(map[string]int64, len(rows))
	for _, r := range rows {
		breakdown[r.Action] = r.Total
	}

	return breakdown, nil
}

func (db *myDB) GetLastDispenseTime(ctx context.Context, deviceID string) (*time.Time, error) {
	logs, err := db.QueryActivityLogs(ctx, ActivityQuery{
		DeviceID: deviceID,
		Action:   models.ActionDoseDispensed,
		Limit:    1,
	})

	if err != nil || len(logs) == 0 {
		return nil, err
	}

	return &logs[0].Timestamp, nil
}

func (db *myDB) DeleteActivityLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := db.impl.WithContext(ctx).
		Where("timestamp < ?", cutoff.UTC()).
		Delete(&models.ActivityLog{})
	return result.RowsAffected, result.Error
}
