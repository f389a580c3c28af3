package synchronization

import (
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
)

var platforms = map[string]bool{
	"ios":     true,
	"android": true,
	"web":     true,
}

//DeviceInfo describes the client that is synchronizing
type DeviceInfo struct {
	Platform    string  `json:"platform"`
	AppVersion  string  `json:"app_version"`
	OSVersion   string  `json:"os_version"`
	DeviceModel *string `json:"device_model"`
}

//Validate checks the platform and the length of the version strings
func (d DeviceInfo) Validate() error {
	if !platforms[d.Platform] {
		return apperrors.Validation("Invalid platform %q. Must be one of: ios, android, web", d.Platform)
	}

	if d.AppVersion == "" || len(d.AppVersion) > 20 {
		return apperrors.Validation("App version must be between 1 and 20 characters")
	}

	if d.OSVersion == "" || len(d.OSVersion) > 50 {
		return apperrors.Validation("OS version must be between 1 and 50 characters")
	}

	if d.DeviceModel != nil && len(*d.DeviceModel) > 100 {
		return apperrors.Validation("Device model must be at most 100 characters")
	}

	return nil
}

func (d DeviceInfo) toMap() map[string]interface{} {
	info := map[string]interface{}{
		"platform":    d.Platform,
		"app_version": d.AppVersion,
		"os_version":  d.OSVersion,
	}

	if d.DeviceModel != nil {
		info["device_model"] = *d.DeviceModel
	} else {
		info["device_model"] = nil
	}

	return info
}
