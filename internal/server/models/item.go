package models

import "time"

// FoundItem is an item handed in at an office. ReportedBy owns its photo.
type FoundItem struct {
	ID          string
	Name        string
	Category    string
	Description string
	OfficeID    string
	FoundPlace  string
	FoundDate   time.Time
	ReportedBy  string
	PhotoID     *string
	CreatedAt   time.Time
}
