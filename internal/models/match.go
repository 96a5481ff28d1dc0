package models

import "time"

type MatchStatus string

const (
	MatchAwaiting  MatchStatus = "awaiting"
	MatchConfirmed MatchStatus = "confirmed"
	MatchExpired   MatchStatus = "expired"
)

// DefaultConfirmationWindow is how long both parties have to confirm a match.
const DefaultConfirmationWindow = 24 * time.Hour

// Match pairs one request with one host. Matches are never deleted.
type Match struct {
	ID               string      `json:"id" db:"id"`
	RequestID        string      `json:"request_id" db:"request_id"`
	HostID           string      `json:"host_id" db:"host_id"`
	HostConfirmed    bool        `json:"host_confirmed" db:"host_confirmed"`
	StudentConfirmed bool        `json:"student_confirmed" db:"student_confirmed"`
	Status           MatchStatus `json:"status" db:"status"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// BothConfirmed reports whether both acknowledgement flags are set.
func (m Match) BothConfirmed() bool {
	return m.HostConfirmed && m.StudentConfirmed
}

// ExpiresAt is the instant after which the sweep may expire an unconfirmed match.
func (m Match) ExpiresAt(window time.Duration) time.Time {
	return m.CreatedAt.Add(window)
}

// MatchDetails is a match with both parties and the originating request loaded.
type MatchDetails struct {
	Match   Match
	Request Request
	Host    Account
	Student Account
}

// Party identifies which side of a match is acting.
type Party string

const (
	PartyHost    Party = "host"
	PartyStudent Party = "student"
)
