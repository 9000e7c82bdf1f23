// Package auth implements stateless request authentication and ownership
// based authorization.
//
// TokenService signs and verifies HS512 JWTs carrying a subject (the user
// id) and a role list. RequestAuthenticator turns an Authorization header
// into a Principal. Guard decides whether a Principal may mutate a resource
// owned by a given user. No server-side session state is kept; tokens live
// until they expire.
package auth
