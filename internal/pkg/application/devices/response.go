package devices

import (
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/iot"
)

//Below these levels a device is flagged as needing attention
const (
	batteryReplacementLevel = 20
	supplementRefillLevel   = 20
)

//Response is the client facing representation of a device
type Response struct {
	DeviceID                string     `json:"device_id"`
	UserID                  string     `json:"user_id"`
	DeviceName              string     `json:"device_name"`
	DeviceType              string     `json:"device_type"`
	MACAddress              string     `json:"mac_address"`
	SerialNumber            string     `json:"serial_number"`
	Location                *string    `json:"location"`
	BatteryLevel            int        `json:"battery_level"`
	SupplementLevel         int        `json:"supplement_level"`
	IsConnected             bool       `json:"is_connected"`
	FirmwareVersion         *string    `json:"firmware_version"`
	TotalDosesDispensed     int        `json:"total_doses_dispensed"`
	LastSync                *time.Time `json:"last_sync"`
	IsActive                bool       `json:"is_active"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
	NeedsBatteryReplacement bool       `json:"needs_battery_replacement"`
	NeedsSupplementRefill   bool       `json:"needs_supplement_refill"`
	EstimatedRemainingDoses int        `json:"estimated_remaining_doses"`
	StatusSummary           string     `json:"status_summary"`
}

//NewResponse maps a stored device onto its response
func NewResponse(d models.Device) Response {
	return Response{
		DeviceID:                d.ID,
		UserID:                  d.UserID,
		DeviceName:              d.Name,
		DeviceType:              d.Type,
		MACAddress:              d.MACAddress,
		SerialNumber:            d.SerialNumber,
		Location:                d.Location,
		BatteryLevel:            d.BatteryLevel,
		SupplementLevel:         d.SupplementLevel,
		IsConnected:             d.IsConnected,
		FirmwareVersion:         d.FirmwareVersion,
		TotalDosesDispensed:     d.TotalDosesDispensed,
		LastSync:                d.LastSync,
		IsActive:                d.IsActive,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
		NeedsBatteryReplacement: d.BatteryLevel < batteryReplacementLevel,
		NeedsSupplementRefill:   d.SupplementLevel < supplementRefillLevel,
		EstimatedRemainingDoses: iot.EstimatedRemainingDoses(d.Type, d.SupplementLevel),
		StatusSummary:           StatusSummary(d),
	}
}

//NewResponseList maps a slice of stored devices
func NewResponseList(devices []models.Device) []Response {
	responses := make([]Response, 0, len(devices))
	for _, d := range devices {
		responses = append(responses, NewResponse(d))
	}
	return responses
}

//StatusSummary condenses the state of a device into the single most pressing concern
func StatusSummary(d models.Device) string {
	switch {
	case !d.IsActive:
		return "inactive"
	case !d.IsConnected:
		return "disconnected"
	case d.BatteryLevel < batteryReplacementLevel:
		return "low_battery"
	case d.SupplementLevel < supplementRefillLevel:
		return "low_supplement"
	}
	return "ok"
}
