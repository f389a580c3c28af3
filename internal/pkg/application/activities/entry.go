package activities

import (
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
)

//Entry is the client facing representation of an activity log entry
type Entry struct {
	LogID       string                 `json:"log_id"`
	DeviceID    string                 `json:"device_id"`
	UserID      string                 `json:"user_id"`
	Action      string                 `json:"action"`
	DoseAmount  *string                `json:"dose_amount"`
	TriggeredBy string                 `json:"triggered_by"`
	Metadata    map[string]interface{} `json:"metadata"`
	Timestamp   time.Time              `json:"timestamp"`
}

//NewEntry maps a stored log entry
func NewEntry(l models.ActivityLog) Entry {
	metadata := map[string]interface{}(l.Metadata)
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return Entry{
		LogID:       l.ID,
		DeviceID:    l.DeviceID,
		UserID:      l.UserID,
		Action:      l.Action,
		DoseAmount:  l.DoseAmount,
		TriggeredBy: l.TriggeredBy,
		Metadata:    metadata,
		Timestamp:   l.Timestamp,
	}
}

//NewEntryList maps a slice of stored log entries
func NewEntryList(logs []models.ActivityLog) []Entry {
	entries := make([]Entry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, NewEntry(l))
	}
	return entries
}
