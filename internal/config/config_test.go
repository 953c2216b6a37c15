package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rental.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Rental.CancelWindow)
	assert.Equal(t, 20, cfg.Rental.MinBatteryLevel)
	assert.True(t, cfg.Rental.AbandonmentPenalty.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "hardware.returns", cfg.Amqp.ReturnQueue)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Amqp.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RENTAL_CANCEL_WINDOW", "10m")
	t.Setenv("RENTAL_ABANDONMENT_PENALTY", "250.50")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RENTAL_MIN_BATTERY_LEVEL", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Rental.CancelWindow)
	assert.Equal(t, "250.5", cfg.Rental.AbandonmentPenalty.String())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 20, cfg.Rental.MinBatteryLevel, "unparseable ints fall back to the default")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SWEEPER_OVERDUE_INTERVAL", "often"},
		{"RENTAL_ABANDONMENT_PENALTY", "lots"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
