// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. PhotoID points at the user's current
// AssetRecord, if any.
type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	Name         string
	Surname      string
	Mail         string
	Salutation   string
	Country      string
	PhotoID      *string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// UserPatch carries the profile fields a PATCH may change. Nil fields are
// left as they are.
type UserPatch struct {
	UserName   *string `json:"username,omitempty"`
	Name       *string `json:"name,omitempty"`
	Surname    *string `json:"surname,omitempty"`
	Mail       *string `json:"mail,omitempty"`
	Salutation *string `json:"salutation,omitempty"`
	Country    *string `json:"country,omitempty"`
}
