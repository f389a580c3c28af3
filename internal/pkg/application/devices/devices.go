//Package devices implements the device registry: identity, ownership and the operational
//state of the dispensers a user owns
package devices

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/events"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/iot"
)

//Finder looks up a single device
type Finder interface {
	GetDeviceByID(ctx context.Context, deviceID string) (*models.Device, error)
}

//Store is the part of the datastore the registry depends on
type Store interface {
	Finder
	CreateDevice(ctx context.Context, device *models.Device) error
	GetDeviceByMACAddress(ctx context.Context, mac string) (*models.Device, error)
	GetDeviceBySerialNumber(ctx context.Context, serial string) (*models.Device, error)
	GetDevicesForUser(ctx context.Context, userID string, includeInactive bool) ([]models.Device, error)
	SaveDevice(ctx context.Context, device *models.Device) error
}

//Service exposes the device registry operations
type Service struct {
	db        Store
	publisher events.Publisher
	log       logging.Logger
	now       func() time.Time
}

//NewService creates a device registry backed by db
func NewService(db Store, publisher events.Publisher, log logging.Logger) *Service {
	return &Service{
		db:        db,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

//GetOwned fetches a device and makes sure it belongs to userID
func GetOwned(ctx context.Context, finder Finder, userID, deviceID string) (*models.Device, error) {
	device, err := finder.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if device.UserID != userID {
		return nil, apperrors.Forbidden("You do not have access to this device")
	}

	return device, nil
}

//CreateRequest carries the fields a user supplies when registering a dispenser
type CreateRequest struct {
	DeviceName      string  `json:"device_name"`
	DeviceType      string  `json:"device_type"`
	MACAddress      string  `json:"mac_address"`
	SerialNumber    string  `json:"serial_number"`
	Location        *string `json:"location"`
	FirmwareVersion *string `json:"firmware_version"`
}

//UpdateRequest carries optional field updates. Nil fields are left untouched.
type UpdateRequest struct {
	DeviceName      *string `json:"device_name"`
	Location        *string `json:"location"`
	BatteryLevel    *int    `json:"battery_level"`
	SupplementLevel *int    `json:"supplement_level"`
	IsConnected     *bool   `json:"is_connected"`
	FirmwareVersion *string `json:"firmware_version"`
	IsActive        *bool   `json:"is_active"`
}

//StatusReport is what a dispenser periodically reports about itself
type StatusReport struct {
	BatteryLevel    int    `json:"battery_level"`
	SupplementLevel int    `json:"supplement_level"`
	IsConnected     bool   `json:"is_connected"`
	FirmwareVersion string `json:"firmware_version"`
}

//ListOptions controls ordering of List
type ListOptions struct {
	IncludeInactive bool
	Sort            string
	Order           string
}

//List returns the devices of a user sorted by name, creation time or type
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]Response, error) {
	if opts.Sort == "" {
		opts.Sort = "name"
	}
	if opts.Order == "" {
		opts.Order = "asc"
	}

	var less func(a, b models.Device) bool
	switch opts.Sort {
	case "name":
		less = func(a, b models.Device) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case "created_at":
		less = func(a, b models.Device) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "type":
		less = func(a, b models.Device) bool { return a.Type < b.Type }
	default:
		return nil, apperrors.Validation("Invalid sort field %q. Must be one of: name, created_at, type", opts.Sort)
	}

	if opts.Order != "asc" && opts.Order != "desc" {
		return nil, apperrors.Validation("Invalid sort order %q. Must be asc or desc", opts.Order)
	}

	devices, err := s.db.GetDevicesForUser(ctx, userID, opts.IncludeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	sort.SliceStable(devices, func(i, j int) bool {
		if opts.Order == "desc" {
			return less(devices[j], devices[i])
		}
		return less(devices[i], devices[j])
	})

	return NewResponseList(devices), nil
}

//Get returns a single device owned by userID
func (s *Service) Get(ctx context.Context, userID, deviceID string) (*Response, error) {
	device, err := GetOwned(ctx, s.db, userID, deviceID)
	if err != nil {
		return nil, err
	}

	response := NewResponse(*device)
	return &response, nil
}

//Create registers a new dispenser for userID
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Response, error) {
	req.DeviceName = strings.TrimSpace(req.DeviceName)
	if req.DeviceName == "" || len(req.DeviceName) > 100 {
		return nil, apperrors.Validation("Device name must be between 1 and 100 characters")
	}

	if !iot.IsKnownDeviceType(req.DeviceType) {
		return nil, apperrors.Validation("Invalid device type %q", req.DeviceType)
	}

	if !iot.ValidMACAddress(req.MACAddress) {
		return nil, apperrors.Validation("Invalid MAC address format")
	}

	if !iot.ValidSerialNumber(req.SerialNumber) {
		return nil, apperrors.Validation("Invalid serial number format")
	}

	mac := iot.NormalizeMACAddress(req.MACAddress)
	serial := iot.NormalizeSerialNumber(req.SerialNumber)

	if err := s.ensureUnused(ctx, mac, serial); err != nil {
		return nil, err
	}

	device := &models.Device{
		UserID:          userID,
		Name:            req.DeviceName,
		Type:            req.DeviceType,
		MACAddress:      mac,
		SerialNumber:    serial,
		Location:        req.Location,
		FirmwareVersion: req.FirmwareVersion,
		BatteryLevel:    100,
		SupplementLevel: 100,
		IsConnected:     false,
		IsActive:        true,
	}

	if err := s.db.CreateDevice(ctx, device); err != nil {
		if apperrors.KindOf(err) == apperrors.KindDuplicate {
			return nil, apperrors.Duplicate("Device with this MAC address or serial number already exists")
		}
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	s.log.Infof("Registered device %s (%s) for user %s", device.ID, device.Type, userID)

	response := NewResponse(*device)
	return &response, nil
}

func (s *Service) ensureUnused(ctx context.Context, mac, serial string) error {
	if _, err := s.db.GetDeviceByMACAddress(ctx, mac); err == nil {
		return apperrors.Duplicate("Device with this MAC address already exists")
	} else if !apperrors.IsNotFound(err) {
		return err
	}

	if _, err := s.db.GetDeviceBySerialNumber(ctx, serial); err == nil {
		return apperrors.Duplicate("Device with this serial number already exists")
	} else if !apperrors.IsNotFound(err) {
		return err
	}

	return nil
}

//Update applies the non nil fields of req to a device owned by userID
func (s *Service) Update(ctx context.Context, userID, deviceID string, req UpdateRequest) (*Response, error) {
	device, err := GetOwned(ctx, s.db, userID, deviceID)
	if err != nil {
		return nil, err
	}

	if err := applyUpdate(device, req, s.now()); err != nil {
		return nil, err
	}

	if err := s.db.SaveDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to update device %s: %w", deviceID, err)
	}

	response := NewResponse(*device)
	return &response, nil
}

func applyUpdate(device *models.Device, req UpdateRequest, now time.Time) error {
	if req.DeviceName != nil {
		name := strings.TrimSpace(*req.DeviceName)
		if name == "" || len(name) > 100 {
			return apperrors.Validation("Device name must be between 1 and 100 characters")
		}
		device.Name = name
	}

	if req.Location != nil {
		device.Location = req.Location
	}

	if req.BatteryLevel != nil {
		if !iot.ValidLevel(*req.BatteryLevel) {
			return apperrors.Validation("Battery level must be between 0 and 100")
		}
		device.BatteryLevel = *req.BatteryLevel
	}

	if req.SupplementLevel != nil {
		if !iot.ValidLevel(*req.SupplementLevel) {
			return apperrors.Validation("Supplement level must be between 0 and 100")
		}
		device.SupplementLevel = *req.SupplementLevel
	}

	if req.IsConnected != nil {
		device.IsConnected = *req.IsConnected
		if device.IsConnected {
			device.LastSync = &now
		}
	}

	if req.FirmwareVersion != nil {
		device.FirmwareVersion = req.FirmwareVersion
	}

	if req.IsActive != nil {
		device.IsActive = *req.IsActive
	}

	return nil
}

//Delete deactivates a device. Devices are never physically removed.
func (s *Service) Delete(ctx context.Context, userID, deviceID string) error {
	device, err := GetOwned(ctx, s.db, userID, deviceID)
	if err != nil {
		return err
	}

	device.IsActive = false

	if err := s.db.SaveDevice(ctx, device); err != nil {
		return fmt.Errorf("failed to deactivate device %s: %w", deviceID, err)
	}

	return nil
}

//UpdateStatus records a status report sent by the dispenser itself
func (s *Service) UpdateStatus(ctx context.Context, deviceID string, report StatusReport) (*Response, error) {
	if !iot.ValidLevel(report.BatteryLevel) {
		return nil, apperrors.Validation("Battery level must be between 0 and 100")
	}

	if !iot.ValidLevel(report.SupplementLevel) {
		return nil, apperrors.Validation("Supplement level must be between 0 and 100")
	}

	device, err := s.db.GetDeviceByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	device.BatteryLevel = report.BatteryLevel
	device.SupplementLevel = report.SupplementLevel
	device.IsConnected = report.IsConnected
	device.FirmwareVersion = &report.FirmwareVersion
	device.LastSync = &now

	if err := s.db.SaveDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to store status of device %s: %w", deviceID, err)
	}

	events.Publish(s.log, s.publisher, &events.DeviceStatus{
		DeviceID:        device.ID,
		BatteryLevel:    device.BatteryLevel,
		SupplementLevel: device.SupplementLevel,
		IsConnected:     device.IsConnected,
		FirmwareVersion: report.FirmwareVersion,
		Timestamp:       now,
	})

	response := NewResponse(*device)
	return &response, nil
}

//BulkUpdate applies the same update to several devices, skipping those that do not exist or
//are not owned by userID
func (s *Service) BulkUpdate(ctx context.Context, userID string, deviceIDs []string, req UpdateRequest) ([]Response, error) {
	updated := []Response{}

	for _, deviceID := range deviceIDs {
		response, err := s.Update(ctx, userID, deviceID, req)
		if err != nil {
			kind := apperrors.KindOf(err)
			if kind == apperrors.KindNotFound || kind == apperrors.KindForbidden {
				continue
			}
			return nil, err
		}
		updated = append(updated, *response)
	}

	return updated, nil
}
