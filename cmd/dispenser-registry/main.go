package main

import (
	"context"

	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/application/maintenance"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/events"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/mqtt"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/database"
	"github.com/iot-for-tillgenglighet/messaging-golang/pkg/messaging"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger().Fatalf("Invalid configuration: %s", err.Error())
	}

	log := logging.NewLoggerWithLevel(cfg.LogLevel)
	log.Infof("Starting up %s ...", cfg.ServiceName)

	db, err := database.NewDatabaseConnection(database.NewConnectorFromConfig(cfg.Database, log), log)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %s", err.Error())
	}

	publisher := events.NewNopPublisher()

	if cfg.Messaging.Enabled {
		messenger, err := messaging.Initialize(messaging.LoadConfiguration(cfg.ServiceName))
		if err != nil {
			log.Fatalf("Failed to initialize messaging: %s", err.Error())
		}
		defer messenger.Close()

		publisher = messenger
	}

	svcs := application.NewServices(db, publisher, log)

	if cfg.MQTT.Enabled {
		listener, err := mqtt.NewListener(cfg.MQTT, svcs.States, log)
		if err != nil {
			log.Fatalf("Invalid MQTT configuration: %s", err.Error())
		}

		if err := listener.Start(); err != nil {
			log.Fatalf("Failed to start MQTT listener: %s", err.Error())
		}
		defer listener.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := maintenance.NewWorker(cfg.Maintenance, db, svcs.States, svcs.Activities, publisher, log)
	go worker.Run(ctx)

	application.CreateRouterAndStartServing(log, cfg.ServicePort, cfg.Auth.JWTSecret, db, svcs)
}
