package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

//Config holds everything the service needs to know about its environment
type Config struct {
	ServiceName string
	ServicePort string
	LogLevel    string

	Database    DatabaseConfig
	Auth        AuthConfig
	Messaging   MessagingConfig
	MQTT        MQTTConfig
	Maintenance MaintenanceConfig
}

//DatabaseConfig selects and configures the backing store
type DatabaseConfig struct {
	Driver   string
	Host     string
	User     string
	Name     string
	Password string
	SSLMode  string
}

//AuthConfig holds the key used to verify bearer tokens
type AuthConfig struct {
	JWTSecret string
}

//MessagingConfig toggles event publishing over RabbitMQ
type MessagingConfig struct {
	Enabled bool
}

//MQTTConfig configures the optional device state ingestion
type MQTTConfig struct {
	Enabled    bool
	BrokerURL  string
	ClientID   string
	Username   string
	Password   string
	StateTopic string
}

//MaintenanceConfig controls the periodic retention and alert run
type MaintenanceConfig struct {
	Interval                  time.Duration
	StateRetentionDays        int
	ActivityRetentionDays     int
	NotificationRetentionDays int
}

//MinActivityRetentionDays is the lower bound accepted for activity log pruning
const MinActivityRetentionDays = 30

//ErrMissingJWTSecret is returned by Load when no token verification key is configured
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required but not set")

//Load reads an optional .env file and then builds the configuration from the environment
func Load() (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	return FromEnvironment()
}

//FromEnvironment builds the configuration from environment variables only
func FromEnvironment() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "dispenser-registry"),
		ServicePort: getEnv("SERVICE_PORT", "8880"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Driver:   getEnv("DISPENSER_DB_DRIVER", "postgres"),
			Host:     os.Getenv("DISPENSER_DB_HOST"),
			User:     os.Getenv("DISPENSER_DB_USER"),
			Name:     os.Getenv("DISPENSER_DB_NAME"),
			Password: os.Getenv("DISPENSER_DB_PASSWORD"),
			SSLMode:  getEnv("DISPENSER_DB_SSLMODE", "require"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Messaging: MessagingConfig{
			Enabled: getEnvAsBool("MESSAGING_ENABLED", true),
		},
		MQTT: MQTTConfig{
			Enabled:    getEnvAsBool("MQTT_ENABLED", false),
			BrokerURL:  getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
			ClientID:   getEnv("MQTT_CLIENT_ID", "dispenser-registry"),
			Username:   os.Getenv("MQTT_USERNAME"),
			Password:   os.Getenv("MQTT_PASSWORD"),
			StateTopic: getEnv("MQTT_STATE_TOPIC", "dispensers/+/state"),
		},
		Maintenance: MaintenanceConfig{
			Interval:                  getEnvAsDuration("MAINTENANCE_INTERVAL", time.Hour),
			StateRetentionDays:        getEnvAsInt("STATE_RETENTION_DAYS", 90),
			ActivityRetentionDays:     getEnvAsInt("ACTIVITY_RETENTION_DAYS", 180),
			NotificationRetentionDays: getEnvAsInt("NOTIFICATION_RETENTION_DAYS", 30),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	if cfg.Maintenance.ActivityRetentionDays < MinActivityRetentionDays {
		return nil, fmt.Errorf("ACTIVITY_RETENTION_DAYS must be at least %d, got %d",
			MinActivityRetentionDays, cfg.Maintenance.ActivityRetentionDays)
	}

	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DISPENSER_DB_DRIVER %q", cfg.Database.Driver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
