// Package common contains shared constants and sentinel errors used across
// lostfound components.
package common

// AuthorizationHeaderName is the HTTP header (and gRPC metadata key, lowercased)
// that carries the bearer token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the exact, case-sensitive scheme prefix expected in the
// Authorization header.
const BearerPrefix = "Bearer "
