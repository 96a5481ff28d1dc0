package models

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleHost    Role = "host"
)

func IsValidRole(role Role) bool {
	return role == RoleStudent || role == RoleHost
}

// Account is a registered student or host. Phone is the contact address used by
// the messaging channel and is unique across accounts.
type Account struct {
	ID           string    `json:"id" db:"id"`
	Role         Role      `json:"role" db:"role"`
	Name         string    `json:"name" db:"name"`
	Phone        string    `json:"phone" db:"phone"`
	PasswordHash string    `json:"-" db:"password_hash"`
	AboutMe      string    `json:"about_me" db:"about_me"`
	Preferences  string    `json:"preferences" db:"preferences"`
	Location     string    `json:"location" db:"location"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ProfilePatch carries the editable profile fields; nil means unchanged.
type ProfilePatch struct {
	Name        *string `json:"name"`
	AboutMe     *string `json:"about_me"`
	Preferences *string `json:"preferences"`
	Location    *string `json:"location"`
}
