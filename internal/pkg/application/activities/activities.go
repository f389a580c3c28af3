//Package activities implements the activity ledger, the append only audit trail of what
//devices and their owners have done
package activities

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/devices"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

var (
	actionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	knownActions = map[string]bool{
		models.ActionDoseDispensed:      true,
		models.ActionDeviceConnected:    true,
		models.ActionDeviceDisconnected: true,
		models.ActionBatteryLow:         true,
		models.ActionSupplementLow:      true,
		models.ActionDeviceActivated:    true,
		models.ActionDeviceDeactivated:  true,
		models.ActionFirmwareUpdated:    true,
	}

	triggers = map[string]bool{
		models.TriggerAutomatic: true,
		models.TriggerManual:    true,
		models.TriggerScheduled: true,
	}

	periods = map[string]int{
		"day":   1,
		"week":  7,
		"month": 30,
		"year":  365,
	}
)

//Store is the part of the datastore the ledger depends on
type Store interface {
	devices.Finder
	CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error
	QueryActivityLogs(ctx context.Context, query database.ActivityQuery) ([]models.ActivityLog, error)
	CountActivityLogs(ctx context.Context, query database.ActivityQuery) (int64, error)
	GetActionBreakdown(ctx context.Context, query database.ActivityQuery) (map[string]int64, error)
	GetLastDispenseTime(ctx context.Context, deviceID string) (*time.Time, error)
	DeleteActivityLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

//Service exposes the activity ledger operations
type Service struct {
	db  Store
	log logging.Logger
	now func() time.Time
}

//NewService creates an activity ledger backed by db
func NewService(db Store, log logging.Logger) *Service {
	return &Service{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

//CreateRequest describes a new ledger entry. A zero Timestamp means now.
type CreateRequest struct {
	DeviceID    string                 `json:"device_id"`
	Action      string                 `json:"action"`
	DoseAmount  *string                `json:"dose_amount"`
	TriggeredBy string                 `json:"triggered_by"`
	Metadata    map[string]interface{} `json:"metadata"`
	Timestamp   time.Time              `json:"-"`
}

//ListOptions bounds and pages a listing
type ListOptions struct {
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

//Page is one page of ledger entries
type Page struct {
	Activities []Entry `json:"activities"`
	Total      int64   `json:"total"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}

//Statistics summarizes the ledger over a period
type Statistics struct {
	Period          string           `json:"period"`
	DeviceID        *string          `json:"device_id"`
	TotalActivities int64            `json:"total_activities"`
	TotalDoses      int64            `json:"total_doses"`
	DailyAverage    float64          `json:"daily_average"`
	WeeklyTotal     int64            `json:"weekly_total"`
	MonthlyTotal    int64            `json:"monthly_total"`
	ActionBreakdown map[string]int64 `json:"action_breakdown"`
	StartDate       time.Time        `json:"start_date"`
	EndDate         time.Time        `json:"end_date"`
}

//Create appends an entry for a device owned by userID. Recording a dispense increments the
//device's dose counter.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Entry, error) {
	if _, err := devices.GetOwned(ctx, s.db, userID, req.DeviceID); err != nil {
		return nil, err
	}

	if req.TriggeredBy == "" {
		req.TriggeredBy = models.TriggerAutomatic
	}

	if err := validate(req); err != nil {
		return nil, err
	}

	return s.Record(ctx, userID, req)
}

//Record appends an entry without checking ownership. Callers must already have done so.
func (s *Service) Record(ctx context.Context, userID string, req CreateRequest) (*Entry, error) {
	entry := &models.ActivityLog{
		DeviceID:    req.DeviceID,
		UserID:      userID,
		Action:      req.Action,
		DoseAmount:  req.DoseAmount,
		TriggeredBy: req.TriggeredBy,
		Metadata:    req.Metadata,
		Timestamp:   req.Timestamp,
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	if err := s.db.CreateActivityLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record %s for device %s: %w", req.Action, req.DeviceID, err)
	}

	result := NewEntry(*entry)
	return &result, nil
}

func validate(req CreateRequest) error {
	if !knownActions[req.Action] && (len(req.Action) > 50 || !actionPattern.MatchString(req.Action)) {
		return apperrors.Validation("Invalid action %q. Actions are snake_case", req.Action)
	}

	if !triggers[req.TriggeredBy] {
		return apperrors.Validation("Invalid trigger %q. Must be one of: automatic, manual, scheduled", req.TriggeredBy)
	}

	if req.DoseAmount != nil && len(*req.DoseAmount) > 20 {
		return apperrors.Validation("Dose amount must be at most 20 characters")
	}

	return nil
}

//ListForUser returns a page of the user's activities across all of their devices
func (s *Service) ListForUser(ctx context.Context, userID string, opts ListOptions) (*Page, error) {
	return s.list(ctx, database.ActivityQuery{UserID: userID}, opts)
}

//ListForDevice returns a page of the activities of a device owned by userID
func (s *Service) ListForDevice(ctx context.Context, userID, deviceID string, opts ListOptions) (*Page, error) {
	if _, err := devices.GetOwned(ctx, s.db, userID, deviceID); err != nil {
		return nil, err
	}

	return s.list(ctx, database.ActivityQuery{DeviceID: deviceID}, opts)
}

func (s *Service) list(ctx context.Context, query database.ActivityQuery, opts ListOptions) (*Page, error) {
	if opts.Limit == 0 {
		opts.Limit = defaultLimit
	}

	if opts.Limit < 1 || opts.Limit > maxLimit {
		return nil, apperrors.Validation("Limit must be between 1 and %d", maxLimit)
	}

	if opts.Offset < 0 {
		return nil, apperrors.Validation("Offset must not be negative")
	}

	query.Start = opts.Start
	query.End = opts.End

	total, err := s.db.CountActivityLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}

	query.Limit = opts.Limit
	query.Offset = opts.Offset

	logs, err := s.db.QueryActivityLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}

	return &Page{
		Activities: NewEntryList(logs),
		Total:      total,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	}, nil
}

//Statistics summarizes the activities of a user, or of one of their devices when deviceID
//is not empty, over the named period
func (s *Service) Statistics(ctx context.Context, userID, deviceID, period string) (*Statistics, error) {
	if period == "" {
		period = "week"
	}

	days, ok := periods[period]
	if !ok {
		return nil, apperrors.Validation("Invalid period %q. Must be one of: day, week, month, year", period)
	}

	query := database.ActivityQuery{UserID: userID}
	stats := &Statistics{Period: period}

	if deviceID != "" {
		if _, err := devices.GetOwned(ctx, s.db, userID, deviceID); err != nil {
			return nil, err
		}
		query = database.ActivityQuery{DeviceID: deviceID}
		stats.DeviceID = &deviceID
	}

	now := s.now()
	start := now.AddDate(0, 0, -days)
	stats.StartDate = start
	stats.EndDate = now

	var err error
	inPeriod := query
	inPeriod.Start, inPeriod.End = &start, &now

	if stats.TotalActivities, err = s.db.CountActivityLogs(ctx, inPeriod); err != nil {
		return nil, err
	}

	if stats.TotalDoses, err = s.countDoses(ctx, query, start, now); err != nil {
		return nil, err
	}

	if stats.WeeklyTotal, err = s.countDoses(ctx, query, now.AddDate(0, 0, -7), now); err != nil {
		return nil, err
	}

	if stats.MonthlyTotal, err = s.countDoses(ctx, query, now.AddDate(0, 0, -30), now); err != nil {
		return nil, err
	}

	if stats.ActionBreakdown, err = s.db.GetActionBreakdown(ctx, inPeriod); err != nil {
		return nil, err
	}

	stats.DailyAverage = math.Round(float64(stats.TotalDoses)/float64(days)*100) / 100

	return stats, nil
}

func (s *Service) countDoses(ctx context.Context, query database.ActivityQuery, start, end time.Time) (int64, error) {
	query.Action = models.ActionDoseDispensed
	query.Start, query.End = &start, &end
	return s.db.CountActivityLogs(ctx, query)
}

//LastDispense returns when the device last dispensed, or nil if it never has
func (s *Service) LastDispense(ctx context.Context, deviceID string) (*time.Time, error) {
	return s.db.GetLastDispenseTime(ctx, deviceID)
}

//Cleanup prunes entries older than the given number of days
func (s *Service) Cleanup(ctx context.Context, days int) (int64, error) {
	if days < config.MinActivityRetentionDays {
		return 0, apperrors.Validation("Activities must be kept for at least %d days", config.MinActivityRetentionDays)
	}

	deleted, err := s.db.DeleteActivityLogsBefore(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity log: %w", err)
	}

	return deleted, nil
}
