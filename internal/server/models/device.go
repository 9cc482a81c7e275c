package models

import "time"

// Device is an upload source registered during user initialization.
type Device struct {
	ID        string
	UserID    string
	Mac       string
	Name      string
	CreatedAt time.Time
}
