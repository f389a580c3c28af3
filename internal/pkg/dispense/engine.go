//Package dispense decides whether a reported device state should release a dose
package dispense

import (
	"time"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/iot"
)

//MinInterval is the shortest time allowed between two automatic dispenses on the same device
const MinInterval = 30 * time.Second

//Reason explains a dispense decision
type Reason string

const (
	ReasonCupNotPlaced       Reason = "cup_not_placed"
	ReasonDeviceInactive     Reason = "device_inactive"
	ReasonDeviceDisconnected Reason = "device_disconnected"
	ReasonSupplementEmpty    Reason = "supplement_empty"
	ReasonRecentDispense     Reason = "recent_dispense"
	ReasonReady              Reason = "cup_placed_and_ready"
)

//Decision is the advisory outcome of evaluating a state report
type Decision struct {
	ShouldDispense bool
	Amount         string
	Reason         Reason
}

//Decide evaluates the dispense rules in a fixed order and reports the first one that fails.
//lastDispense is the time of the most recent recorded dispense, or nil if there has been none.
func Decide(device models.Device, cupPlaced bool, lastDispense *time.Time, now time.Time) Decision {
	switch {
	case !cupPlaced:
		return reject(ReasonCupNotPlaced)
	case !device.IsActive:
		return reject(ReasonDeviceInactive)
	case !device.IsConnected:
		return reject(ReasonDeviceDisconnected)
	case device.SupplementLevel <= 0:
		return reject(ReasonSupplementEmpty)
	case lastDispense != nil && now.Sub(*lastDispense) < MinInterval:
		return reject(ReasonRecentDispense)
	}

	return Decision{
		ShouldDispense: true,
		Amount:         iot.DispenseAmount(device.Type),
		Reason:         ReasonReady,
	}
}

func reject(reason Reason) Decision {
	return Decision{Reason: reason}
}
