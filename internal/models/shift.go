package models

import "time"

// DriverShift is one open or closed work session of a driver.
type DriverShift struct {
	ID        string     `json:"id"`
	DriverID  string     `json:"driver_id"`
	IsActive  bool       `json:"is_active"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
