package auth

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/lostfound/internal/common"
)

// Verifier is the part of TokenService the authenticator needs.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// RequestAuthenticator turns an Authorization header value into a Principal.
type RequestAuthenticator struct {
	tokens Verifier
}

// NewRequestAuthenticator returns an authenticator that verifies bearer
// tokens with tokens.
func NewRequestAuthenticator(tokens Verifier) *RequestAuthenticator {
	return &RequestAuthenticator{tokens: tokens}
}

// Authenticate requires the exact "Bearer " prefix. Any failure, whether a
// missing header, a wrong scheme or a rejected token, is common.ErrInvalidToken
// and nothing more.
func (a *RequestAuthenticator) Authenticate(ctx context.Context, header string) (Principal, error) {
	token, ok := strings.CutPrefix(header, common.BearerPrefix)
	if !ok || token == "" {
		return Principal{}, common.ErrInvalidToken
	}

	p, err := a.tokens.Verify(ctx, token)
	if err != nil {
		return Principal{}, common.ErrInvalidToken
	}

	return p, nil
}
