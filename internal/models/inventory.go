package models

import "time"

type StationStatus string

const (
	StationOnline      StationStatus = "ONLINE"
	StationOffline     StationStatus = "OFFLINE"
	StationMaintenance StationStatus = "MAINTENANCE"
)

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "AVAILABLE"
	SlotOccupied    SlotStatus = "OCCUPIED"
	SlotMaintenance SlotStatus = "MAINTENANCE"
	SlotError       SlotStatus = "ERROR"
)

type PowerBankStatus string

const (
	PowerBankAvailable   PowerBankStatus = "AVAILABLE"
	PowerBankRented      PowerBankStatus = "RENTED"
	PowerBankMaintenance PowerBankStatus = "MAINTENANCE"
	PowerBankDamaged     PowerBankStatus = "DAMAGED"
)

func (s PowerBankStatus) Valid() bool {
	switch s {
	case PowerBankAvailable, PowerBankRented, PowerBankMaintenance, PowerBankDamaged:
		return true
	}
	return false
}

// Station is a physical kiosk
type Station struct {
	Id              string        `db:"id" json:"id"`
	SerialNumber    string        `db:"serial_number" json:"serial_number"`
	Name            string        `db:"name" json:"name"`
	Status          StationStatus `db:"status" json:"status"`
	Latitude        float64       `db:"latitude" json:"latitude"`
	Longitude       float64       `db:"longitude" json:"longitude"`
	LastHeartbeatAt *time.Time    `db:"last_heartbeat_at" json:"last_heartbeat_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// Slot is one charging bay within a station
type Slot struct {
	Id              string     `db:"id" json:"id"`
	StationId       string     `db:"station_id" json:"station_id"`
	SlotNumber      int        `db:"slot_number" json:"slot_number"`
	Status          SlotStatus `db:"status" json:"status"`
	BatteryLevel    int        `db:"battery_level" json:"battery_level"`
	CurrentRentalId string     `db:"current_rental_id" json:"current_rental_id,omitempty"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// PowerBank is a rentable battery unit. CurrentStationId is empty only while RENTED.
type PowerBank struct {
	Id               string          `db:"id" json:"id"`
	SerialNumber     string          `db:"serial_number" json:"serial_number"`
	Status           PowerBankStatus `db:"status" json:"status"`
	BatteryLevel     int             `db:"battery_level" json:"battery_level"`
	CurrentStationId string          `db:"current_station_id" json:"current_station_id,omitempty"`
	CurrentSlotId    string          `db:"current_slot_id" json:"current_slot_id,omitempty"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}
