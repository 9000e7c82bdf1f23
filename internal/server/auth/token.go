package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/golang-jwt/jwt/v5"
)

// Rejection reasons. They are logged, never returned to clients.
const (
	ReasonMalformed    = "malformed"
	ReasonExpired      = "expired"
	ReasonUnsupported  = "unsupported"
	ReasonBadSignature = "bad_signature"
)

var errUnsupportedAlg = errors.New("unsupported signing algorithm")

// TokenError is returned by Verify. Every TokenError matches
// common.ErrInvalidToken; Reason tells the sub-cause apart for logs.
type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("invalid token (%s): %v", e.Reason, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// Is makes every TokenError match common.ErrInvalidToken.
func (e *TokenError) Is(target error) bool { return target == common.ErrInvalidToken }

// Claims is the JWT payload: sub, iat and exp from the registered set plus
// the role tags.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// TokenService issues and verifies signed tokens. The key is copied at
// construction and never changes afterwards.
type TokenService struct {
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	logger logging.Logger
}

// NewTokenService returns a TokenService signing with a copy of secretKey.
// Issued tokens expire after ttl.
func NewTokenService(secretKey []byte, ttl time.Duration, logger logging.Logger) *TokenService {
	key := make([]byte, len(secretKey))
	copy(key, secretKey)
	return &TokenService{
		key:    key,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With("module", "tokens"),
	}
}

// Issue signs a token for subject with the given roles, valid for the
// configured duration from now.
func (s *TokenService) Issue(subject string, roles []Role) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Roles: rolesToStrings(roles),
	})

	tokenString, err := token.SignedString(s.key)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify checks the signature, the expiry and that every required claim is
// present, then returns the principal the token speaks for.
func (s *TokenService) Verify(ctx context.Context, tokenString string) (Principal, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Principal{}, s.reject(ctx, classify(err), err)
	}

	p, err := principalFromClaims(claims)
	if err != nil {
		return Principal{}, s.reject(ctx, ReasonMalformed, err)
	}

	return p, nil
}

// Claims extracts subject and roles without checking the signature or
// expiry. Callers must have verified the token first.
func (s *TokenService) Claims(tokenString string) (Principal, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return Principal{}, &TokenError{Reason: ReasonMalformed, Err: err}
	}
	return principalFromClaims(claims)
}

func (s *TokenService) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
		return nil, fmt.Errorf("%w: %v", errUnsupportedAlg, t.Header["alg"])
	}
	return s.key, nil
}

func (s *TokenService) reject(ctx context.Context, reason string, err error) error {
	s.logger.Warn(ctx, "token rejected", "reason", reason, "error", err)
	return &TokenError{Reason: reason, Err: err}
}

func classify(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ReasonBadSignature
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonUnsupported
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ReasonMalformed
	default:
		return ReasonMalformed
	}
}

func principalFromClaims(c *Claims) (Principal, error) {
	if c.Subject == "" {
		return Principal{}, errors.New("missing sub claim")
	}
	if c.IssuedAt == nil {
		return Principal{}, errors.New("missing iat claim")
	}
	if c.ExpiresAt == nil {
		return Principal{}, errors.New("missing exp claim")
	}
	if c.Roles == nil {
		return Principal{}, errors.New("missing roles claim")
	}
	roles, err := rolesFromStrings(c.Roles)
	if err != nil {
		return Principal{}, err
	}
	return Principal{Subject: c.Subject, Roles: roles}, nil
}
