/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"powerbank-rental-go/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		d, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	penalty, err := getEnvDecimal("RENTAL_ABANDONMENT_PENALTY", decimal.NewFromInt(1000))
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "rental.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: duration("DB_CONN_MAX_IDLE_TIME", 30*time.Second),
			PingTimeout:     duration("DB_PING_TIMEOUT", 5*time.Second),
			BusyTimeout:     duration("DB_BUSY_TIMEOUT", 5*time.Second),
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			Mode:            getEnvString("GIN_MODE", "release"),
			ReadTimeout:     duration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    duration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: models.AuthConfig{
			JwtSecret: getEnvString("JWT_SECRET", ""),
			Issuer:    getEnvString("JWT_ISSUER", "powerbank-rental"),
			TokenTTL:  duration("JWT_TOKEN_TTL", 24*time.Hour),
		},
		Hardware: models.HardwareConfig{
			HmacSecret:      getEnvString("HARDWARE_HMAC_SECRET", ""),
			FreshnessWindow: duration("HARDWARE_FRESHNESS_WINDOW", 5*time.Minute),
		},
		Rental: models.RentalConfig{
			CancelWindow:       duration("RENTAL_CANCEL_WINDOW", 5*time.Minute),
			ReminderLead:       duration("RENTAL_REMINDER_LEAD", 15*time.Minute),
			MinBatteryLevel:    getEnvInt("RENTAL_MIN_BATTERY_LEVEL", 20),
			PointsPerUnit:      int64(getEnvInt("RENTAL_POINTS_PER_UNIT", 10)),
			CompletionPoints:   int64(getEnvInt("RENTAL_COMPLETION_POINTS", 5)),
			AbandonAfter:       duration("RENTAL_ABANDON_AFTER", 24*time.Hour),
			AbandonmentPenalty: penalty,
		},
		Sweeper: models.SweeperConfig{
			OverdueInterval:     duration("SWEEPER_OVERDUE_INTERVAL", 5*time.Minute),
			AbandonmentInterval: duration("SWEEPER_ABANDONMENT_INTERVAL", time.Hour),
			ReminderInterval:    duration("SWEEPER_REMINDER_INTERVAL", time.Minute),
		},
		Redis: models.RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", ""),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Amqp: models.AmqpConfig{
			Url:               getEnvString("AMQP_URL", ""),
			ReturnQueue:       getEnvString("AMQP_RETURN_QUEUE", "hardware.returns"),
			NotificationQueue: getEnvString("AMQP_NOTIFICATION_QUEUE", "rental.notifications"),
		},
		RateLimit: models.RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			Capacity:       getEnvInt("RATE_LIMIT_CAPACITY", 60),
			RefillTokens:   getEnvInt("RATE_LIMIT_REFILL_TOKENS", 1),
			RefillInterval: duration("RATE_LIMIT_REFILL_INTERVAL", time.Second),
			TTL:            duration("RATE_LIMIT_TTL", 10*time.Minute),
			Prefix:         getEnvString("RATE_LIMIT_PREFIX", "ratelimit"),
		},
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}

	cfg.Redis.Enabled = cfg.Redis.Addr != ""
	cfg.Amqp.Enabled = cfg.Amqp.Url != ""
	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
