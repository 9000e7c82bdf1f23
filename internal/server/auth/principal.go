package auth

import (
	"context"
	"slices"
)

// Principal is the verified identity behind one request.
type Principal struct {
	Subject string
	Roles   []Role
}

// HasRole reports whether p carries r.
func (p Principal) HasRole(r Role) bool {
	return slices.Contains(p.Roles, r)
}

// Elevated reports whether any of the principal's roles bypasses ownership.
func (p Principal) Elevated() bool {
	for _, r := range p.Roles {
		if r.elevated() {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
