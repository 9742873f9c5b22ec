package models

import "time"

// Drone is a fleet vehicle. Battery is an integer percentage in [0, 100];
// sub-percent consumption between ticks lives in the engine's accumulator
// tables, not here, so the persisted record stays free of tick-rate noise.
type Drone struct {
	ID              int64     `json:"id"`
	SerialNumber    string    `json:"serial_number"`
	Battery         int       `json:"battery"`
	State           string    `json:"state"` // "idle", "charging", "delivering", "returning", "maintenance"
	CurrentLocation Location  `json:"current_location"`
	BaseLocation    *Location `json:"base_location"` // immutable after creation; nil means the drone cannot be dispatched
	CapacityKg      float64   `json:"capacity_kg"`
	LastUpdateTime  time.Time `json:"last_update_time"`
}
