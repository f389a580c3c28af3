package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/apperrors"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/logging"
	"github.com/iot-for-tillgenglighet/dispenser-registry/internal/pkg/infrastructure/repositories/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//Datastore is an interface that is used to inject the database into different services to improve testability
type Datastore interface {
	Ping(ctx context.Context) error

	CreateDevice(ctx context.Context, device *models.Device) error
	GetDeviceByID(ctx context.Context, deviceID string) (*models.Device, error)
	GetDeviceByMACAddress(ctx context.Context, mac string) (*models.Device, error)
	GetDeviceBySerialNumber(ctx context.Context, serial string) (*models.Device, error)
	GetDevicesForUser(ctx context.Context, userID string, includeInactive bool) ([]models.Device, error)
	GetDevicesUpdatedSince(ctx context.Context, userID string, since time.Time) ([]models.Device, error)
	GetActiveDevicesWithLowBattery(ctx context.Context, threshold int) ([]models.Device, error)
	GetActiveDevicesWithLowSupplement(ctx context.Context, threshold int) ([]models.Device, error)
	SaveDevice(ctx context.Context, device *models.Device) error
	IncrementDoseCount(ctx context.Context, deviceID string) error

	CreateDeviceState(ctx context.Context, state *models.DeviceState) error
	GetLatestDeviceState(ctx context.Context, deviceID string) (*models.DeviceState, error)
	GetDeviceStateHistory(ctx context.Context, deviceID string, period TimeRange, limit, offset int) ([]models.DeviceState, error)
	DeleteDeviceStatesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error
	QueryActivityLogs(ctx context.Context, query ActivityQuery) ([]models.ActivityLog, error)
	CountActivityLogs(ctx context.Context, query ActivityQuery) (int64, error)
	GetActionBreakdown(ctx context.Context, query ActivityQuery) (map[string]int64, error)
	GetLastDispenseTime(ctx context.Context, deviceID string) (*time.Time, error)
	DeleteActivityLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetNotificationByID(ctx context.Context, notificationID string) (*models.Notification, error)
	QueryNotifications(ctx context.Context, query NotificationQuery) ([]models.Notification, int64, error)
	CountNotifications(ctx context.Context, query NotificationQuery) (int64, error)
	CountNotificationsByType(ctx context.Context, userID string) (map[string]int64, error)
	MarkNotificationsRead(ctx context.Context, userID string, notificationIDs []string, readAt time.Time) (int64, error)
	DeleteNotification(ctx context.Context, notificationID string) error
	DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	GetNotificationSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
	GetSettingsWithRemindersEnabled(ctx context.Context) ([]models.NotificationSettings, error)
	SaveNotificationSettings(ctx context.Context, settings *models.NotificationSettings) error
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	SaveUserProfile(ctx context.Context, profile *models.UserProfile) error

	CreateSyncMetadata(ctx context.Context, sync *models.SyncMetadata) error
	SaveSyncMetadata(ctx context.Context, sync *models.SyncMetadata) error
	GetLatestSyncMetadata(ctx context.Context, userID string) (*models.SyncMetadata, error)
	GetLatestFullSyncMetadata(ctx context.Context, userID string) (*models.SyncMetadata, error)
}

//TimeRange is an optionally bounded, inclusive time interval
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

type myDB struct {
	impl *gorm.DB
}

//ConnectorFunc is used to inject a database connection method into NewDatabaseConnection
type ConnectorFunc func() (*gorm.DB, error)

func newGormConfig(l logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:         l,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

//NewPostgreSQLConnector opens a connection to a postgresql database
func NewPostgreSQLConnector(cfg config.DatabaseConfig, log logging.Logger) ConnectorFunc {
	dbURI := fmt.Sprintf("host=%s user=%s dbname=%s sslmode=%s password=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Name, cfg.SSLMode, cfg.Password)

	return func() (*gorm.DB, error) {
		for {
			log.Infof("Connecting to database host %s ...", cfg.Host)
			db, err := gorm.Open(postgres.Open(dbURI), newGormConfig(logger.Default.LogMode(logger.Warn)))
			if err != nil {
				log.Errorf("Failed to connect to database %s", err)
				time.Sleep(3 * time.Second)
			} else {
				return db, nil
			}
		}
	}
}

//NewSQLiteConnector opens a connection to a private in-memory sqlite database
func NewSQLiteConnector() ConnectorFunc {
	return func() (*gorm.DB, error) {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

		db, err := gorm.Open(sqlite.Open(dsn), newGormConfig(logger.Default.LogMode(logger.Silent)))
		if err != nil {
			return nil, err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}

		// the in-memory database lives exactly as long as its single connection
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)

		db.Exec("PRAGMA foreign_keys = ON")

		return db, nil
	}
}

//NewConnectorFromConfig picks a connector based on the configured driver
func NewConnectorFromConfig(cfg config.DatabaseConfig, log logging.Logger) ConnectorFunc {
	if cfg.Driver == "sqlite" {
		log.Warnf("Using a volatile in-memory sqlite database")
		return NewSQLiteConnector()
	}
	return NewPostgreSQLConnector(cfg, log)
}

//NewDatabaseConnection initializes a new connection to the database and wraps it in a Datastore
func NewDatabaseConnection(connect ConnectorFunc, log logging.Logger) (Datastore, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	db := &myDB{
		impl: impl,
	}

	err = db.impl.AutoMigrate(
		&models.Device{},
		&models.DeviceState{},
		&models.ActivityLog{},
		&models.Notification{},
		&models.NotificationSettings{},
		&models.UserProfile{},
		&models.SyncMetadata{},
	)
	if err != nil {
		log.Errorf("Failed to migrate database schema: %s", err.Error())
		return nil, err
	}

	return db, nil
}

func (db *myDB) Ping(ctx context.Context) error {
	sqlDB, err := db.impl.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

//translate turns gorm errors that clients can act upon into application errors
func translate(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound("%s %s not found", entity, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.Duplicate("%s already exists", entity)
	}
	return err
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func paginate(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}
