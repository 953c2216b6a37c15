package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// User represents a renter or operator account
type User struct {
	Id              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	Role            UserRole  `db:"role" json:"role"`
	Active          bool      `db:"active" json:"active"`
	ProfileComplete bool      `db:"profile_complete" json:"profile_complete"`
	KycVerified     bool      `db:"kyc_verified" json:"kyc_verified"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Ledger transaction types shared by the wallet and points logs
const (
	TxTypeTopUp         = "TOPUP"
	TxTypeRentalPayment = "RENTAL_PAYMENT"
	TxTypeRefund        = "REFUND"
	TxTypeReward        = "REWARD"
	TxTypeAdjustment    = "ADJUSTMENT"
)

// WalletBalance is the hot rollup of a user's wallet
type WalletBalance struct {
	Id                string          `db:"id" json:"id"`
	UserId            string          `db:"user_id" json:"user_id"`
	Balance           decimal.Decimal `db:"balance" json:"balance"`
	LastTransactionId string          `db:"last_transaction_id" json:"last_transaction_id"`
	Version           int64           `db:"version" json:"version"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// PointsBalance is the hot rollup of a user's loyalty points
type PointsBalance struct {
	Id                string    `db:"id" json:"id"`
	UserId            string    `db:"user_id" json:"user_id"`
	Points            int64     `db:"points" json:"points"`
	LastTransactionId string    `db:"last_transaction_id" json:"last_transaction_id"`
	Version           int64     `db:"version" json:"version"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// WalletTransaction is an immutable wallet ledger row
type WalletTransaction struct {
	Id            string          `db:"id" json:"id"`
	UserId        string          `db:"user_id" json:"user_id"`
	RentalId      string          `db:"rental_id" json:"rental_id,omitempty"`
	Type          string          `db:"transaction_type" json:"type"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	Reference     string          `db:"reference" json:"reference"`
	Description   string          `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// PointsTransaction is an immutable points ledger row
type PointsTransaction struct {
	Id           string    `db:"id" json:"id"`
	UserId       string    `db:"user_id" json:"user_id"`
	RentalId     string    `db:"rental_id" json:"rental_id,omitempty"`
	Type         string    `db:"transaction_type" json:"type"`
	Points       int64     `db:"points" json:"points"`
	PointsBefore int64     `db:"points_before" json:"points_before"`
	PointsAfter  int64     `db:"points_after" json:"points_after"`
	Reference    string    `db:"reference" json:"reference"`
	Description  string    `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
