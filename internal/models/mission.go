package models

import "time"

// Mission is one drone's assignment to fulfil one order's pickup-and-delivery
// route. A drone carries at most one non-terminal mission at a time.
type Mission struct {
	ID               int64     `json:"id"`
	OrderID          int64     `json:"order_id"`
	DroneID          int64     `json:"drone_id"`
	Pickup           Location  `json:"pickup"`
	Delivery         Location  `json:"delivery"`
	Status           string    `json:"status"` // "assigned", "in_progress", "completed", "cancelled"
	DistanceKm       float64   `json:"distance_km"` // precomputed round trip: base -> pickup -> delivery -> base
	EstimatedMinutes int       `json:"estimated_minutes"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the mission has reached a final status. Terminal
// missions are immutable.
func (m *Mission) Terminal() bool {
	return m.Status == MissionStatusCompleted || m.Status == MissionStatusCancelled
}
