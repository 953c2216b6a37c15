package database

import (
	"context"
	"fmt"

	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateLateFeeConfig stores a new configuration. New configurations start
// inactive and must be activated explicitly.
func (q *Queries) CreateLateFeeConfig(ctx context.Context, cfg models.LateFeeConfiguration) (*models.LateFeeConfiguration, error) {
	if cfg.Id == "" {
		cfg.Id = uuid.New().String()
	}
	now := nowUTC()
	cfg.IsActive = false
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	var maxDaily any
	if cfg.MaxDailyRate.Valid {
		maxDaily = cfg.MaxDailyRate.Decimal.String()
	}

	_, err := q.db.ExecContext(ctx, queryInsertLateFeeConfig, cfg.Id, cfg.Name, string(cfg.FeeType),
		cfg.Multiplier.String(), cfg.FlatRatePerHour.String(), cfg.GracePeriodMinutes, maxDaily,
		cfg.IsActive, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create late fee configuration: %w", err)
	}

	zap.L().Info("Late fee configuration created",
		zap.String("id", cfg.Id),
		zap.String("name", cfg.Name),
		zap.String("fee_type", string(cfg.FeeType)))
	return &cfg, nil
}

func (q *Queries) GetLateFeeConfig(ctx context.Context, configId string) (*models.LateFeeConfiguration, error) {
	cfg, err := scanLateFeeConfig(q.db.QueryRowContext(ctx, queryGetLateFeeConfig, configId))
	if isNoRows(err) {
		return nil, store.NotFound("late fee configuration %s not found", configId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get late fee configuration: %w", err)
	}
	return cfg, nil
}

func (q *Queries) ListLateFeeConfigs(ctx context.Context) ([]models.LateFeeConfiguration, error) {
	rows, err := q.db.QueryContext(ctx, queryListLateFeeConfigs)
	if err != nil {
		return nil, fmt.Errorf("failed to list late fee configurations: %w", err)
	}
	defer closeRows(rows)

	var configs []models.LateFeeConfiguration
	for rows.Next() {
		cfg, err := scanLateFeeConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan late fee configuration: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating late fee configuration rows: %w", err)
	}
	return configs, nil
}

// GetActiveLateFeeConfig returns the active configuration, or nil when none
// is active.
func (q *Queries) GetActiveLateFeeConfig(ctx context.Context) (*models.LateFeeConfiguration, error) {
	cfg, err := scanLateFeeConfig(q.db.QueryRowContext(ctx, queryGetActiveLateFeeConfig))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active late fee configuration: %w", err)
	}
	return cfg, nil
}

// SetLateFeeConfigActive flips a configuration. Activating deactivates every
// other configuration first; run it inside a transaction.
func (q *Queries) SetLateFeeConfigActive(ctx context.Context, configId string, active bool) error {
	if _, err := q.GetLateFeeConfig(ctx, configId); err != nil {
		return err
	}
	now := nowUTC()

	if active {
		if _, err := q.db.ExecContext(ctx, queryDeactivateAllLateFeeConfigs, now, configId); err != nil {
			return fmt.Errorf("failed to deactivate late fee configurations: %w", err)
		}
	}
	if _, err := q.db.ExecContext(ctx, querySetLateFeeConfigActive, active, now, configId); err != nil {
		return fmt.Errorf("failed to set late fee configuration active: %w", err)
	}

	zap.L().Info("Late fee configuration updated", zap.String("id", configId), zap.Bool("active", active))
	return nil
}

func (q *Queries) DeleteLateFeeConfig(ctx context.Context, configId string) error {
	cfg, err := q.GetLateFeeConfig(ctx, configId)
	if err != nil {
		return err
	}
	if cfg.IsActive {
		return store.Conflict("late fee configuration %s is active and cannot be deleted", configId)
	}
	result, err := q.db.ExecContext(ctx, queryDeleteInactiveLateFeeConfig, configId)
	if err != nil {
		return fmt.Errorf("failed to delete late fee configuration: %w", err)
	}
	return expectOneRow(result, store.Conflict("late fee configuration %s was activated concurrently", configId))
}
