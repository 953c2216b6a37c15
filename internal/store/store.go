package store

import (
	"context"
	"time"

	"powerbank-rental-go/internal/models"

	"github.com/shopspring/decimal"
)

// CreateUserParams contains the parameters for registering a user.
type CreateUserParams struct {
	Id              string
	Name            string
	Email           string
	Role            models.UserRole
	ProfileComplete bool
	KycVerified     bool
}

// WalletTxParams describes one wallet ledger mutation. Amount is signed.
type WalletTxParams struct {
	UserId      string
	RentalId    string
	Type        string
	Amount      decimal.Decimal
	Reference   string
	Description string
}

// PointsTxParams describes one points ledger mutation. Points is signed.
type PointsTxParams struct {
	UserId      string
	RentalId    string
	Type        string
	Points      int64
	Reference   string
	Description string
}

// SlotUpdate sets a slot's status and rental back-reference. An empty
// RentalId clears the back-reference.
type SlotUpdate struct {
	SlotId   string
	Status   models.SlotStatus
	RentalId string
}

// PlacementParams docks a power bank into a slot.
type PlacementParams struct {
	PowerBankId  string
	StationId    string
	SlotId       string
	BatteryLevel int
}

// Queries is every read and write the rental core performs. Implementations
// bind it either to the pool or to a single write transaction.
type Queries interface {
	// --- Users ---
	CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	HasUnpaidDues(ctx context.Context, userId string) (bool, error)

	// --- Ledgers ---
	GetWalletBalance(ctx context.Context, userId string) (decimal.Decimal, error)
	GetPointsBalance(ctx context.Context, userId string) (int64, error)
	ApplyWalletTransaction(ctx context.Context, params WalletTxParams) (*models.WalletTransaction, error)
	ApplyPointsTransaction(ctx context.Context, params PointsTxParams) (*models.PointsTransaction, error)
	GetWalletHistory(ctx context.Context, userId string, limit, offset int) ([]models.WalletTransaction, error)
	GetPointsHistory(ctx context.Context, userId string, limit, offset int) ([]models.PointsTransaction, error)
	SumRentalDebits(ctx context.Context, rentalId string) (decimal.Decimal, int64, error)

	// --- Inventory ---
	GetStation(ctx context.Context, stationId string) (*models.Station, error)
	GetStationBySerial(ctx context.Context, serial string) (*models.Station, error)
	ListStations(ctx context.Context) ([]models.Station, error)
	UpsertStation(ctx context.Context, station models.Station) (*models.Station, error)
	TouchStationHeartbeat(ctx context.Context, stationId string, at time.Time) error
	GetSlot(ctx context.Context, slotId string) (*models.Slot, error)
	GetSlotByNumber(ctx context.Context, stationId string, slotNumber int) (*models.Slot, error)
	ListSlots(ctx context.Context, stationId string) ([]models.Slot, error)
	UpsertSlot(ctx context.Context, slot models.Slot) (*models.Slot, error)
	UpdateSlot(ctx context.Context, update SlotUpdate) error
	UpdateSlotBattery(ctx context.Context, slotId string, batteryLevel int) error
	GetPowerBank(ctx context.Context, powerBankId string) (*models.PowerBank, error)
	GetPowerBankBySerial(ctx context.Context, serial string) (*models.PowerBank, error)
	GetPowerBankInSlot(ctx context.Context, slotId string) (*models.PowerBank, error)
	CreatePowerBank(ctx context.Context, bank models.PowerBank) (*models.PowerBank, error)
	PlacePowerBank(ctx context.Context, params PlacementParams) error
	DetachPowerBank(ctx context.Context, powerBankId string, status models.PowerBankStatus, stationId string) error
	SetPowerBankStatus(ctx context.Context, powerBankId string, status models.PowerBankStatus) error
	PickPowerBank(ctx context.Context, stationId string, minBattery int) (*models.Slot, *models.PowerBank, error)

	// --- Packages ---
	CreatePackage(ctx context.Context, pkg models.RentalPackage) (*models.RentalPackage, error)
	GetPackage(ctx context.Context, packageId string) (*models.RentalPackage, error)
	ListPackages(ctx context.Context, activeOnly bool) ([]models.RentalPackage, error)
	UpdatePackage(ctx context.Context, pkg models.RentalPackage) error

	// --- Rentals ---
	CreateRental(ctx context.Context, rental models.Rental) error
	GetRental(ctx context.Context, rentalId string) (*models.Rental, error)
	GetRentalByCode(ctx context.Context, code string) (*models.Rental, error)
	GetOpenRentalForUser(ctx context.Context, userId string) (*models.Rental, error)
	GetCurrentRentalForUser(ctx context.Context, userId string) (*models.Rental, error)
	GetOpenRentalForPowerBank(ctx context.Context, powerBankId string) (*models.Rental, error)
	ListRentalsByUser(ctx context.Context, userId string, limit, offset int) ([]models.Rental, error)
	UpdateRental(ctx context.Context, rental *models.Rental, expected models.RentalStatus) error
	CreateExtension(ctx context.Context, ext models.RentalExtension) error
	ListExtensions(ctx context.Context, rentalId string) ([]models.RentalExtension, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	ListAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]models.Rental, error)
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]models.Rental, error)
	MarkReminderSent(ctx context.Context, rentalId string) (bool, error)
	CreateIssue(ctx context.Context, issue models.RentalIssue) error
	CreateLocation(ctx context.Context, loc models.RentalLocation) error
	ListLocations(ctx context.Context, rentalId string) ([]models.RentalLocation, error)

	// --- Late fee configurations ---
	CreateLateFeeConfig(ctx context.Context, cfg models.LateFeeConfiguration) (*models.LateFeeConfiguration, error)
	GetLateFeeConfig(ctx context.Context, configId string) (*models.LateFeeConfiguration, error)
	ListLateFeeConfigs(ctx context.Context) ([]models.LateFeeConfiguration, error)
	GetActiveLateFeeConfig(ctx context.Context) (*models.LateFeeConfiguration, error)
	SetLateFeeConfigActive(ctx context.Context, configId string, active bool) error
	DeleteLateFeeConfig(ctx context.Context, configId string) error

	// --- Analytics ---
	GetAnalytics(ctx context.Context) (*models.Analytics, error)
}

// RentalStore is the contract the rental core depends on.
type RentalStore interface {
	Queries

	// RunInTx runs fn inside one write transaction. Every write made through
	// the Queries handed to fn commits together or not at all.
	RunInTx(ctx context.Context, fn func(q Queries) error) error

	Close()
}
