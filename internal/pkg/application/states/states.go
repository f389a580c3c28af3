//Package states records what dispensers report and turns those reports into dispense instructions
package states

import (
	"context"
	"fmt"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/activities"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/devices"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/dispense"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/events"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/iot"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

//Store is the part of the datastore the state recorder depends on
type Store interface {
	devices.Finder
	GetDevicesForUser(ctx context.Context, userID string, includeInactive bool) ([]models.Device, error)
	CreateDeviceState(ctx context.Context, state *models.DeviceState) error
	GetLatestDeviceState(ctx context.Context, deviceID string) (*models.DeviceState, error)
	GetDeviceStateHistory(ctx context.Context, deviceID string, period database.TimeRange, limit, offset int) ([]models.DeviceState, error)
	DeleteDeviceStatesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

//Ledger is where dispenses are committed and looked up
type Ledger interface {
	LastDispense(ctx context.Context, deviceID string) (*time.Time, error)
	Record(ctx context.Context, userID string, req activities.CreateRequest) (*activities.Entry, error)
}

//Service exposes the state recorder operations
type Service struct {
	db        Store
	ledger    Ledger
	publisher events.Publisher
	log       logging.Logger
	now       func() time.Time
}

//NewService creates a state recorder that commits dispenses to ledger
func NewService(db Store, ledger Ledger, publisher events.Publisher, log logging.Logger) *Service {
	return &Service{
		db:        db,
		ledger:    ledger,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

//Report is the body of a state report sent by a device
type Report struct {
	CupPlaced     *bool    `json:"cup_placed"`
	SensorReading *float64 `json:"sensor_reading"`
	Timestamp     string   `json:"timestamp"`
}

//ReportResult tells the device what was recorded and whether it should dispense
type ReportResult struct {
	StateID        string    `json:"state_id"`
	CupPlaced      bool      `json:"cup_placed"`
	SensorReading  float64   `json:"sensor_reading"`
	Timestamp      time.Time `json:"timestamp"`
	ShouldDispense bool      `json:"should_dispense"`
	DispenseAmount *string   `json:"dispense_amount"`
	Reason         string    `json:"reason"`
}

//HistoryOptions bounds and pages a state history
type HistoryOptions struct {
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

//ReportState records a state sample for a device and decides whether it should dispense.
//A dispense is committed to the ledger, together with the dose counter, before returning.
func (s *Service) ReportState(ctx context.Context, deviceID string, report Report) (*ReportResult, error) {
	if report.CupPlaced == nil {
		return nil, apperrors.Validation("cup_placed is required")
	}

	if report.SensorReading == nil {
		return nil, apperrors.Validation("sensor_reading is required")
	}

	var timestamp *time.Time
	if report.Timestamp != "" {
		ts, err := iot.ParseTimestamp(report.Timestamp)
		if err != nil {
			return nil, apperrors.Validation("%s", err.Error())
		}
		timestamp = &ts
	}

	device, err := s.db.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	state, err := s.RecordState(ctx, device.ID, *report.CupPlaced, *report.SensorReading, timestamp)
	if err != nil {
		return nil, err
	}

	lastDispense, err := s.ledger.LastDispense(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up last dispense of device %s: %w", device.ID, err)
	}

	now := s.now()
	decision := dispense.Decide(*device, state.CupPlaced, lastDispense, now)

	result := &ReportResult{
		StateID:        state.StateID,
		CupPlaced:      state.CupPlaced,
		SensorReading:  state.SensorReading,
		Timestamp:      state.Timestamp,
		ShouldDispense: decision.ShouldDispense,
		Reason:         string(decision.Reason),
	}

	if !decision.ShouldDispense {
		return result, nil
	}

	amount := decision.Amount
	_, err = s.ledger.Record(ctx, device.UserID, activities.CreateRequest{
		DeviceID:    device.ID,
		Action:      models.ActionDoseDispensed,
		DoseAmount:  &amount,
		TriggeredBy: models.TriggerAutomatic,
		Metadata: map[string]interface{}{
			"state_id":       state.StateID,
			"sensor_reading": state.SensorReading,
		},
		Timestamp: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit dispense for device %s: %w", device.ID, err)
	}

	result.DispenseAmount = &amount

	s.log.Infof("Device %s dispensing %s", device.ID, amount)

	events.Publish(s.log, s.publisher, &events.DoseDispensed{
		DeviceID:  device.ID,
		UserID:    device.UserID,
		StateID:   state.StateID,
		Amount:    amount,
		Timestamp: now,
	})

	return result, nil
}

//RecordState persists a new immutable state sample. A nil timestamp means now.
func (s *Service) RecordState(ctx context.Context, deviceID string, cupPlaced bool, sensorReading float64, timestamp *time.Time) (*Record, error) {
	if !iot.ValidSensorReading(sensorReading) {
		return nil, apperrors.Validation(
			"Sensor reading must be between 0 and %.2f with at most two decimals", iot.MaxSensorReading,
		).WithDetail("sensor_reading", sensorReading)
	}

	state := &models.DeviceState{
		DeviceID:      deviceID,
		CupPlaced:     cupPlaced,
		SensorReading: sensorReading,
		Metadata:      map[string]interface{}{"source": "iot_device"},
	}

	if timestamp != nil {
		state.Timestamp = timestamp.UTC()
	} else {
		state.Timestamp = s.now()
	}

	if err := s.db.CreateDeviceState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to record state of device %s: %w", deviceID, err)
	}

	record := NewRecord(*state)
	return &record, nil
}

//GetAllStates returns every active device of the user together with its latest state, if any
func (s *Service) GetAllStates(ctx context.Context, userID string) ([]DeviceStates, error) {
	userDevices, err := s.db.GetDevicesForUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]DeviceStates, 0, len(userDevices))

	for _, d := range userDevices {
		entry := DeviceStates{
			DeviceID:        d.ID,
			DeviceName:      d.Name,
			DeviceType:      d.Type,
			IsConnected:     d.IsConnected,
			BatteryLevel:    d.BatteryLevel,
			SupplementLevel: d.SupplementLevel,
		}

		latest, err := s.db.GetLatestDeviceState(ctx, d.ID)
		if err == nil {
			record := NewRecord(*latest)
			entry.LatestState = &record
		} else if !apperrors.IsNotFound(err) {
			return nil, err
		}

		result = append(result, entry)
	}

	return result, nil
}

//GetLatestState returns the newest sample of a device owned by userID
func (s *Service) GetLatestState(ctx context.Context, userID, deviceID string) (*Record, error) {
	if _, err := devices.GetOwned(ctx, s.db, userID, deviceID); err != nil {
		return nil, err
	}

	state, err := s.db.GetLatestDeviceState(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	record := NewRecord(*state)
	return &record, nil
}

//GetHistory returns samples of a device owned by userID, newest first
func (s *Service) GetHistory(ctx context.Context, userID, deviceID string, opts HistoryOptions) ([]Record, error) {
	if opts.Limit == 0 {
		opts.Limit = defaultHistoryLimit
	}

	if opts.Limit < 1 || opts.Limit > maxHistoryLimit {
		return nil, apperrors.Validation("Limit must be between 1 and %d", maxHistoryLimit)
	}

	if opts.Offset < 0 {
		return nil, apperrors.Validation("Offset must not be negative")
	}

	if _, err := devices.GetOwned(ctx, s.db, userID, deviceID); err != nil {
		return nil, err
	}

	history, err := s.db.GetDeviceStateHistory(ctx, deviceID, database.TimeRange{Start: opts.Start, End: opts.End}, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to read state history of device %s: %w", deviceID, err)
	}

	return NewRecordList(history), nil
}

//Cleanup prunes samples older than the given number of days
func (s *Service) Cleanup(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, apperrors.Validation("Retention must be at least one day")
	}

	deleted, err := s.db.DeleteDeviceStatesBefore(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return 0, fmt.Errorf("failed to prune device states: %w", err)
	}

	return deleted, nil
}
