// Package common defines shared constants and sentinel errors used across
// the lostfound server and admin tooling. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Account errors.
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUsernameForbidden  = errors.New("username is reserved for administrators")

	// Auth errors. Every token failure collapses to ErrInvalidToken for callers.
	ErrInvalidToken = errors.New("invalid token")
	ErrNotAllowed   = errors.New("not allowed")

	// Asset lifecycle errors.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrUploadFailed           = errors.New("upload failed")
	ErrDeletionFailed         = errors.New("deletion failed")
	ErrAssetUnavailable       = errors.New("asset unavailable")
	ErrAssetNotFound          = errors.New("asset not found")
)
