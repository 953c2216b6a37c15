package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Hardware  HardwareConfig
	Rental    RentalConfig
	Sweeper   SweeperConfig
	Redis     RedisConfig
	Amqp      AmqpConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JwtSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// HardwareConfig holds station ingestion settings
type HardwareConfig struct {
	HmacSecret      string
	FreshnessWindow time.Duration
}

// RentalConfig holds rental lifecycle and billing settings
type RentalConfig struct {
	CancelWindow       time.Duration
	ReminderLead       time.Duration
	MinBatteryLevel    int
	PointsPerUnit      int64
	CompletionPoints   int64
	AbandonAfter       time.Duration
	AbandonmentPenalty decimal.Decimal
}

// SweeperConfig holds background job intervals
type SweeperConfig struct {
	OverdueInterval     time.Duration
	AbandonmentInterval time.Duration
	ReminderInterval    time.Duration
}

// RedisConfig holds the optional cache connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// AmqpConfig holds the optional broker connection
type AmqpConfig struct {
	Url               string
	ReturnQueue       string
	NotificationQueue string
	Enabled           bool
}

// RateLimitConfig holds the token bucket settings for user routes
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}
