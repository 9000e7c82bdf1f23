package models

import "time"

// Office is a lost-and-found office. CreatedBy is the user who registered
// it and owns its photo.
type Office struct {
	ID          string
	District    string
	PhoneNumber string
	Address     string
	Description string
	CreatedBy   string
	PhotoID     *string
	CreatedAt   time.Time
}
