package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"powerbank-rental-go/internal/billing"
	"powerbank-rental-go/internal/models"
	"powerbank-rental-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type SlotSeed struct {
	Number    int    `yaml:"number"`
	PowerBank string `yaml:"power_bank"`
	Battery   int    `yaml:"battery"`
}

type StationSeed struct {
	SerialNumber string     `yaml:"serial_number"`
	Name         string     `yaml:"name"`
	Latitude     float64    `yaml:"latitude"`
	Longitude    float64    `yaml:"longitude"`
	Slots        []SlotSeed `yaml:"slots"`
}

// PackageSeed carries money as strings; yaml.v2 cannot decode decimals.
type PackageSeed struct {
	Name            string `yaml:"name"`
	DurationMinutes int64  `yaml:"duration_minutes"`
	Price           string `yaml:"price"`
	PaymentModel    string `yaml:"payment_model"`
}

type LateFeeSeed struct {
	Name               string `yaml:"name"`
	FeeType            string `yaml:"fee_type"`
	Multiplier         string `yaml:"multiplier"`
	FlatRatePerHour    string `yaml:"flat_rate_per_hour"`
	GracePeriodMinutes int64  `yaml:"grace_period_minutes"`
	MaxDailyRate       string `yaml:"max_daily_rate"`
	Active             bool   `yaml:"active"`
}

type SeedConfig struct {
	Stations []StationSeed `yaml:"stations"`
	Packages []PackageSeed `yaml:"packages"`
	LateFees []LateFeeSeed `yaml:"late_fees"`
}

// SeedResult counts what ApplySeed created.
type SeedResult struct {
	Stations   int
	Slots      int
	PowerBanks int
	Packages   int
	LateFees   int
}

func LoadSeedConfig(seedFile string) (*SeedConfig, error) {
	var seedPath string
	if filepath.IsAbs(seedFile) {
		seedPath = seedFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		seedPath = filepath.Join(wd, seedFile)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", seedFile, err)
	}
	return ParseSeedConfig(data)
}

func ParseSeedConfig(data []byte) (*SeedConfig, error) {
	var config SeedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse seed file: %w", err)
	}

	for i, station := range config.Stations {
		if station.SerialNumber == "" {
			return nil, fmt.Errorf("station at index %d missing serial_number", i)
		}
		for _, slot := range station.Slots {
			if slot.Number <= 0 {
				return nil, fmt.Errorf("station %s has a slot without a positive number", station.SerialNumber)
			}
		}
	}
	for i, pkg := range config.Packages {
		if pkg.Name == "" {
			return nil, fmt.Errorf("package at index %d missing name", i)
		}
		if _, err := decimal.NewFromString(pkg.Price); err != nil {
			return nil, fmt.Errorf("package %s has invalid price %q: %w", pkg.Name, pkg.Price, err)
		}
	}
	for i, fee := range config.LateFees {
		if fee.Name == "" {
			return nil, fmt.Errorf("late fee at index %d missing name", i)
		}
	}

	return &config, nil
}

func optionalDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

func (fs LateFeeSeed) configuration() (models.LateFeeConfiguration, error) {
	cfg := models.LateFeeConfiguration{
		Name:               fs.Name,
		FeeType:            models.FeeType(fs.FeeType),
		GracePeriodMinutes: fs.GracePeriodMinutes,
	}
	var err error
	if cfg.Multiplier, err = optionalDecimal(fs.Multiplier); err != nil {
		return cfg, fmt.Errorf("late fee %s has invalid multiplier: %w", fs.Name, err)
	}
	if cfg.FlatRatePerHour, err = optionalDecimal(fs.FlatRatePerHour); err != nil {
		return cfg, fmt.Errorf("late fee %s has invalid flat_rate_per_hour: %w", fs.Name, err)
	}
	if fs.MaxDailyRate != "" {
		limit, err := decimal.NewFromString(fs.MaxDailyRate)
		if err != nil {
			return cfg, fmt.Errorf("late fee %s has invalid max_daily_rate: %w", fs.Name, err)
		}
		cfg.MaxDailyRate = decimal.NewNullDecimal(limit)
	}
	return cfg, nil
}

// ApplySeed creates whatever the seed describes that is not stored yet.
// Stations and slots are refreshed; power banks, packages and late fee
// configurations are matched by serial number or name and never duplicated.
func ApplySeed(ctx context.Context, st store.RentalStore, seed *SeedConfig) (*SeedResult, error) {
	result := &SeedResult{}
	err := st.RunInTx(ctx, func(q store.Queries) error {
		for _, station := range seed.Stations {
			if err := seedStation(ctx, q, station, result); err != nil {
				return err
			}
		}
		if err := seedPackages(ctx, q, seed.Packages, result); err != nil {
			return err
		}
		return seedLateFees(ctx, q, seed.LateFees, result)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Seed applied",
		zap.Int("stations", result.Stations),
		zap.Int("slots", result.Slots),
		zap.Int("power_banks", result.PowerBanks),
		zap.Int("packages", result.Packages),
		zap.Int("late_fees", result.LateFees))
	return result, nil
}

func seedStation(ctx context.Context, q store.Queries, seed StationSeed, result *SeedResult) error {
	station, err := q.UpsertStation(ctx, models.Station{
		SerialNumber: seed.SerialNumber,
		Name:         seed.Name,
		Latitude:     seed.Latitude,
		Longitude:    seed.Longitude,
	})
	if err != nil {
		return err
	}
	result.Stations++

	for _, s := range seed.Slots {
		existing, err := q.GetSlotByNumber(ctx, station.Id, s.Number)
		if err != nil && !store.IsKind(err, store.KindNotFound) {
			return err
		}
		if existing != nil && existing.CurrentRentalId != "" {
			continue
		}

		slot := models.Slot{StationId: station.Id, SlotNumber: s.Number, Status: models.SlotAvailable, BatteryLevel: s.Battery}
		if existing != nil {
			slot.Id = existing.Id
			slot.Status = existing.Status
		}
		if s.PowerBank != "" {
			slot.Status = models.SlotOccupied
		}
		stored, err := q.UpsertSlot(ctx, slot)
		if err != nil {
			return err
		}
		result.Slots++

		if s.PowerBank == "" {
			continue
		}
		_, err = q.GetPowerBankBySerial(ctx, s.PowerBank)
		if err == nil {
			continue
		}
		if !store.IsKind(err, store.KindNotFound) {
			return err
		}
		if _, err := q.CreatePowerBank(ctx, models.PowerBank{
			SerialNumber:     s.PowerBank,
			BatteryLevel:     s.Battery,
			CurrentStationId: station.Id,
			CurrentSlotId:    stored.Id,
		}); err != nil {
			return err
		}
		result.PowerBanks++
	}
	return nil
}

func seedPackages(ctx context.Context, q store.Queries, seeds []PackageSeed, result *SeedResult) error {
	existing, err := q.ListPackages(ctx, false)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, pkg := range existing {
		known[pkg.Name] = true
	}

	for _, seed := range seeds {
		if known[seed.Name] {
			continue
		}
		price, err := decimal.NewFromString(seed.Price)
		if err != nil {
			return fmt.Errorf("package %s has invalid price: %w", seed.Name, err)
		}
		if _, err := q.CreatePackage(ctx, models.RentalPackage{
			Name:            seed.Name,
			DurationMinutes: seed.DurationMinutes,
			Price:           price,
			PaymentModel:    models.PaymentModel(seed.PaymentModel),
			IsActive:        true,
		}); err != nil {
			return err
		}
		result.Packages++
	}
	return nil
}

func seedLateFees(ctx context.Context, q store.Queries, seeds []LateFeeSeed, result *SeedResult) error {
	existing, err := q.ListLateFeeConfigs(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]string, len(existing))
	for _, cfg := range existing {
		byName[cfg.Name] = cfg.Id
	}

	for _, seed := range seeds {
		id, ok := byName[seed.Name]
		if !ok {
			cfg, err := seed.configuration()
			if err != nil {
				return err
			}
			if err := billing.ValidateLateFeeConfig(cfg); err != nil {
				return fmt.Errorf("late fee %s: %w", seed.Name, err)
			}
			created, err := q.CreateLateFeeConfig(ctx, cfg)
			if err != nil {
				return err
			}
			id = created.Id
			result.LateFees++
		}
		if seed.Active {
			if err := q.SetLateFeeConfigActive(ctx, id, true); err != nil {
				return err
			}
		}
	}
	return nil
}
