package application

import (
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/activities"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/devices"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/notifications"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/states"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/synchronization"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/events"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"
)

//Services bundles the domain services that the request handlers delegate to
type Services struct {
	Devices       *devices.Service
	States        *states.Service
	Activities    *activities.Service
	Notifications *notifications.Service
	Sync          *synchronization.Service
}

//NewServices creates all domain services on top of a single datastore. Dispenses decided by the
//state recorder are committed to the activity ledger.
func NewServices(db database.Datastore, publisher events.Publisher, log logging.Logger) *Services {
	ledger := activities.NewService(db, log)

	return &Services{
		Devices:       devices.NewService(db, publisher, log),
		States:        states.NewService(db, ledger, publisher, log),
		Activities:    ledger,
		Notifications: notifications.NewService(db, log),
		Sync:          synchronization.NewService(db, log),
	}
}
