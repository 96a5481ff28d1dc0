package models

import "time"

// Availability is a host's offer for one window. Only the latest window per host
// is considered for matching.
type Availability struct {
	HostID      string    `json:"host_id" db:"host_id"`
	Available   bool      `json:"available" db:"available"`
	Capacity    int       `json:"capacity" db:"capacity"`
	WindowStart time.Time `json:"window_start" db:"window_start"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Eligible reports whether the record can host minCapacity guests.
func (a Availability) Eligible(minCapacity int) bool {
	return a.Available && a.Capacity >= minCapacity
}

// HostCandidate is a host account joined with its latest availability record.
type HostCandidate struct {
	Host         Account
	Availability Availability
}
