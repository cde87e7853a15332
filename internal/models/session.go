package models

import "time"

// Session is an authenticated dashboard login.
type Session struct {
	Token     string    `json:"-"`
	UserID    int       `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone"`
	Language  string    `json:"language"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	ExpiresAt time.Time `json:"expires"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Recipient is an SMS target resolved from an active session.
type Recipient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}
