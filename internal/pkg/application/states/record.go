package states

import (
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
)

//Record is the client facing representation of a state sample
type Record struct {
	StateID       string                 `json:"state_id"`
	DeviceID      string                 `json:"device_id"`
	CupPlaced     bool                   `json:"cup_placed"`
	SensorReading float64                `json:"sensor_reading"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata"`
}

//DeviceStates pairs an active device with its most recent sample
type DeviceStates struct {
	DeviceID        string  `json:"device_id"`
	DeviceName      string  `json:"device_name"`
	DeviceType      string  `json:"device_type"`
	IsConnected     bool    `json:"is_connected"`
	BatteryLevel    int     `json:"battery_level"`
	SupplementLevel int     `json:"supplement_level"`
	LatestState     *Record `json:"latest_state"`
}

//NewRecord maps a stored state sample
func NewRecord(s models.DeviceState) Record {
	return Record{
		StateID:       s.ID,
		DeviceID:      s.DeviceID,
		CupPlaced:     s.CupPlaced,
		SensorReading: s.SensorReading,
		Timestamp:     s.Timestamp,
		Metadata:      s.Metadata,
	}
}

//NewRecordList maps a slice of stored state samples
func NewRecordList(states []models.DeviceState) []Record {
	records := make([]Record, 0, len(states))
	for _, s := range states {
		records = append(records, NewRecord(s))
	}
	return records
}
