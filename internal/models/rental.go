package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RentalStatus string

const (
	RentalPending   RentalStatus = "PENDING"
	RentalActive    RentalStatus = "ACTIVE"
	RentalCompleted RentalStatus = "COMPLETED"
	RentalCancelled RentalStatus = "CANCELLED"
	RentalOverdue   RentalStatus = "OVERDUE"
)

// Open reports whether the rental still holds a power bank.
func (s RentalStatus) Open() bool {
	return s == RentalPending || s == RentalActive || s == RentalOverdue
}

// Ended reports whether ended_at must be set for the status.
func (s RentalStatus) Ended() bool {
	return s == RentalCompleted || s == RentalCancelled
}

func (s RentalStatus) Valid() bool {
	switch s {
	case RentalPending, RentalActive, RentalCompleted, RentalCancelled, RentalOverdue:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

type PaymentModel string

const (
	Prepaid  PaymentModel = "PREPAID"
	Postpaid PaymentModel = "POSTPAID"
)

// RentalPackage is a purchasable rental duration
type RentalPackage struct {
	Id              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	DurationMinutes int64           `db:"duration_minutes" json:"duration_minutes"`
	Price           decimal.Decimal `db:"price" json:"price"`
	PaymentModel    PaymentModel    `db:"payment_model" json:"payment_model"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// RatePerMinute is the usage rate used for postpaid billing and late fees.
func (p RentalPackage) RatePerMinute() decimal.Decimal {
	if p.DurationMinutes <= 0 {
		return decimal.Zero
	}
	return p.Price.Div(decimal.NewFromInt(p.DurationMinutes))
}

// Rental is one user's borrowing of a single power bank
type Rental struct {
	Id               string          `db:"id" json:"id"`
	RentalCode       string          `db:"rental_code" json:"rental_code"`
	UserId           string          `db:"user_id" json:"user_id"`
	StationId        string          `db:"station_id" json:"station_id"`
	SlotId           string          `db:"slot_id" json:"slot_id"`
	PackageId        string          `db:"package_id" json:"package_id"`
	PowerBankId      string          `db:"power_bank_id" json:"power_bank_id"`
	ReturnStationId  string          `db:"return_station_id" json:"return_station_id,omitempty"`
	ReturnSlotId     string          `db:"return_slot_id" json:"return_slot_id,omitempty"`
	Status           RentalStatus    `db:"status" json:"status"`
	PaymentStatus    PaymentStatus   `db:"payment_status" json:"payment_status"`
	StartedAt        time.Time       `db:"started_at" json:"started_at"`
	EndedAt          *time.Time      `db:"ended_at" json:"ended_at,omitempty"`
	DueAt            time.Time       `db:"due_at" json:"due_at"`
	AmountPaid       decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	OverdueAmount    decimal.Decimal `db:"overdue_amount" json:"overdue_amount"`
	AmountDue        decimal.Decimal `db:"amount_due" json:"amount_due"`
	IsReturnedOnTime *bool           `db:"is_returned_on_time" json:"is_returned_on_time,omitempty"`
	ReminderAt       time.Time       `db:"reminder_at" json:"-"`
	ReminderSent     bool            `db:"reminder_sent" json:"reminder_sent"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// RentalExtension records one additional package purchase
type RentalExtension struct {
	Id               string          `db:"id" json:"id"`
	RentalId         string          `db:"rental_id" json:"rental_id"`
	PackageId        string          `db:"package_id" json:"package_id"`
	ExtensionMinutes int64           `db:"extension_minutes" json:"extension_minutes"`
	Price            decimal.Decimal `db:"price" json:"price"`
	PointsUsed       int64           `db:"points_used" json:"points_used"`
	WalletAmount     decimal.Decimal `db:"wallet_amount" json:"wallet_amount"`
	PreviousDueAt    time.Time       `db:"previous_due_at" json:"previous_due_at"`
	NewDueAt         time.Time       `db:"new_due_at" json:"new_due_at"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// RentalIssue is a user-reported problem with a rental
type RentalIssue struct {
	Id          string    `db:"id" json:"id"`
	RentalId    string    `db:"rental_id" json:"rental_id"`
	UserId      string    `db:"user_id" json:"user_id"`
	IssueType   string    `db:"issue_type" json:"issue_type"`
	Description string    `db:"description" json:"description"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// RentalLocation is a GPS breadcrumb recorded while a rental is open
type RentalLocation struct {
	Id         string    `db:"id" json:"id"`
	RentalId   string    `db:"rental_id" json:"rental_id"`
	Latitude   float64   `db:"latitude" json:"latitude"`
	Longitude  float64   `db:"longitude" json:"longitude"`
	Accuracy   float64   `db:"accuracy" json:"accuracy"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}
