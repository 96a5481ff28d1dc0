package models

import "time"

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestMatched   RequestStatus = "matched"
	RequestCancelled RequestStatus = "cancelled"
)

// Request is a student's ask for housing in a location.
type Request struct {
	ID        string        `json:"id" db:"id"`
	StudentID string        `json:"student_id" db:"student_id"`
	Location  string        `json:"location" db:"location"`
	NumGuests int           `json:"num_guests" db:"num_guests"`
	Status    RequestStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}
