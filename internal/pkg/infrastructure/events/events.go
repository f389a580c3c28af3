//Package events defines the topic messages this service publishes on the message bus
package events

import (
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/messaging-golang/pkg/messaging"
)

//Topic names
const (
	TopicDoseDispensed = "dispenser.dose.dispensed"
	TopicDeviceAlert   = "dispenser.device.alert"
	TopicDeviceStatus  = "dispenser.device.status"
)

//Publisher is an interface that allows mocking of messaging.Context parameters
type Publisher interface {
	PublishOnTopic(message messaging.TopicMessage) error
}

//DoseDispensed is published after a dispense has been committed
type DoseDispensed struct {
	DeviceID  string    `json:"device_id"`
	UserID    string    `json:"user_id"`
	StateID   string    `json:"state_id"`
	Amount    string    `json:"dose_amount"`
	Timestamp time.Time `json:"timestamp"`
}

//ContentType returns the content type of the serialized message
func (m *DoseDispensed) ContentType() string {
	return "application/json"
}

//TopicName returns the name of the topic the message is published on
func (m *DoseDispensed) TopicName() string {
	return TopicDoseDispensed
}

//DeviceAlert is published when a low battery or low supplement alert is raised
type DeviceAlert struct {
	DeviceID  string    `json:"device_id"`
	UserID    string    `json:"user_id"`
	AlertType string    `json:"alert_type"`
	Level     int       `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

//ContentType returns the content type of the serialized message
func (m *DeviceAlert) ContentType() string {
	return "application/json"
}

//TopicName returns the name of the topic the message is published on
func (m *DeviceAlert) TopicName() string {
	return TopicDeviceAlert
}

//DeviceStatus is published when a device reports its battery, supplement and connectivity
type DeviceStatus struct {
	DeviceID        string    `json:"device_id"`
	BatteryLevel    int       `json:"battery_level"`
	SupplementLevel int       `json:"supplement_level"`
	IsConnected     bool      `json:"is_connected"`
	FirmwareVersion string    `json:"firmware_version"`
	Timestamp       time.Time `json:"timestamp"`
}

//ContentType returns the content type of the serialized message
func (m *DeviceStatus) ContentType() string {
	return "application/json"
}

//TopicName returns the name of the topic the message is published on
func (m *DeviceStatus) TopicName() string {
	return TopicDeviceStatus
}

//Publish sends a message and logs, rather than returns, any failure
func Publish(log logging.Logger, publisher Publisher, message messaging.TopicMessage) {
	if publisher == nil {
		return
	}

	if err := publisher.PublishOnTopic(message); err != nil {
		log.Warnf("Failed to publish message on topic %s: %s", message.TopicName(), err.Error())
	}
}

//NewNopPublisher returns a publisher that silently drops all messages
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

type nopPublisher struct{}

func (nopPublisher) PublishOnTopic(message messaging.TopicMessage) error {
	return nil
}
