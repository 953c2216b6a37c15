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

package models

import (
	"github.com/shopspring/decimal"
)

// DeviceInfo identifies the station sending a hardware message
type DeviceInfo struct {
	SerialNumber string `json:"serial_number"`
}

// ReturnEventPayload is the decoded "unit returned" signal
type ReturnEventPayload struct {
	PowerBankSerial string `json:"power_bank_serial"`
	SlotNumber      int    `json:"slot_number"`
	BatteryLevel    int    `json:"battery_level"`
}

// ReturnEventMessage is the wire body of a hardware return event
type ReturnEventMessage struct {
	Device      DeviceInfo         `json:"device"`
	ReturnEvent ReturnEventPayload `json:"return_event"`
}

// ReturnEvent is the flattened form consumed by the reconciler
type ReturnEvent struct {
	StationSerial   string
	PowerBankSerial string
	SlotNumber      int
	BatteryLevel    int
}

func (m ReturnEventMessage) Event() ReturnEvent {
	return ReturnEvent{
		StationSerial:   m.Device.SerialNumber,
		PowerBankSerial: m.ReturnEvent.PowerBankSerial,
		SlotNumber:      m.ReturnEvent.SlotNumber,
		BatteryLevel:    m.ReturnEvent.BatteryLevel,
	}
}

// ReturnResult summarizes what a return event changed
type ReturnResult struct {
	StationId        string          `json:"station_id"`
	SlotId           string          `json:"slot_id"`
	PowerBankId      string          `json:"power_bank_id"`
	RentalId         string          `json:"rental_id,omitempty"`
	RentalCode       string          `json:"rental_code,omitempty"`
	RentalCompleted  bool            `json:"rental_completed"`
	IsReturnedOnTime bool            `json:"is_returned_on_time"`
	OverdueMinutes   int64           `json:"overdue_minutes"`
	UsageCharge      decimal.Decimal `json:"usage_charge"`
	LateFee          decimal.Decimal `json:"late_fee"`
	AmountCollected  decimal.Decimal `json:"amount_collected"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	PaymentStatus    PaymentStatus   `json:"payment_status,omitempty"`
}

// SlotSnapshot is one slot's reported state in a resync
type SlotSnapshot struct {
	SlotNumber       int        `json:"slot_number"`
	Status           SlotStatus `json:"status"`
	BatteryLevel     int        `json:"battery_level"`
	PowerBankSerial  string     `json:"power_bank_serial,omitempty"`
	PowerBankBattery int        `json:"power_bank_battery,omitempty"`
}

// StationSnapshot is a full inventory report from one station
type StationSnapshot struct {
	Device struct {
		SerialNumber string        `json:"serial_number"`
		Name         string        `json:"name"`
		Status       StationStatus `json:"status"`
		Latitude     float64       `json:"latitude"`
		Longitude    float64       `json:"longitude"`
	} `json:"device"`
	Slots []SlotSnapshot `json:"slots"`
}

// ResyncResult summarizes a resync
type ResyncResult struct {
	StationId        string   `json:"station_id"`
	SlotsUpserted    int      `json:"slots_upserted"`
	PowerBanksPlaced int      `json:"power_banks_placed"`
	Skipped          []string `json:"skipped,omitempty"`
}

// Allocation is a split of a required amount across points and wallet
type Allocation struct {
	Required       decimal.Decimal `json:"required"`
	PointsToUse    int64           `json:"points_to_use"`
	PointsAmount   decimal.Decimal `json:"points_amount"`
	WalletAmount   decimal.Decimal `json:"wallet_amount"`
	Shortfall      decimal.Decimal `json:"shortfall"`
	Sufficient     bool            `json:"sufficient"`
	SuggestedTopUp decimal.Decimal `json:"suggested_top_up"`
}

// OverdueProjection is the read-only live view of an overdue rental
type OverdueProjection struct {
	RentalId       string          `json:"rental_id"`
	OverdueMinutes int64           `json:"overdue_minutes"`
	ProjectedFee   decimal.Decimal `json:"projected_fee"`
}

// ActiveRentalView is the rental plus its live overdue projection
type ActiveRentalView struct {
	Rental  Rental             `json:"rental"`
	Overdue *OverdueProjection `json:"overdue,omitempty"`
}

// Analytics is the admin aggregate view
type Analytics struct {
	RentalsByStatus    map[RentalStatus]int    `json:"rentals_by_status"`
	PowerBanksByStatus map[PowerBankStatus]int `json:"power_banks_by_status"`
	StationsByStatus   map[StationStatus]int   `json:"stations_by_status"`
	RevenueCollected   decimal.Decimal         `json:"revenue_collected"`
	OutstandingDues    decimal.Decimal         `json:"outstanding_dues"`
	LateFeesBilled     decimal.Decimal         `json:"late_fees_billed"`
}
