// Package credential mints and verifies the stateless credentials of the
// account core: access tokens, purpose tokens (password reset, account
// recovery), activation codes and one-time codes.
//
// Every purpose signs with its own key and carries its own audience, so a
// token minted for one purpose never verifies under another.
package credential

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/logger"
)

type Purpose string

const (
	PurposeAccess        Purpose = "access"
	PurposePasswordReset Purpose = "password-reset"
	PurposeRecovery      Purpose = "account-recovery"
)

// Claims is the payload of every token the issuer mints.
type Claims struct {
	AccountId domain.AccountId `json:"uid"`
	Username  domain.Username  `json:"username,omitempty"`
	Email     domain.Email     `json:"email,omitempty"`
	Role      domain.Role      `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IssuedAtTime returns the second-resolution issue time, zero if absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ClaimsFor builds the identifying claims of an account.
func ClaimsFor(a *domain.Account) Claims {
	return Claims{
		AccountId: a.Id,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
	}
}

// Keys holds one signing key per purpose.
type Keys struct {
	Access        string
	PasswordReset string
	Recovery      string
}

type Issuer struct {
	keys map[Purpose][]byte
	now  func() time.Time
}

type Option func(*Issuer)

// WithClock injects the clock used for issue times and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

func NewIssuer(keys Keys, opts ...Option) (*Issuer, error) {
	i := &Issuer{
		keys: map[Purpose][]byte{
			PurposeAccess:        []byte(keys.Access),
			PurposePasswordReset: []byte(keys.PasswordReset),
			PurposeRecovery:      []byte(keys.Recovery),
		},
		now: time.Now,
	}
	for p, k := range i.keys {
		if len(k) == 0 {
			return nil, fmt.Errorf("signing key for %q is empty", p)
		}
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueAccessToken mints a session token. The embedded issue time is what the
// session gate compares against the account watermark.
func (i *Issuer) IssueAccessToken(claims Claims, ttl time.Duration) (string, error) {
	return i.IssuePurposeToken(PurposeAccess, claims, ttl)
}

// IssuePurposeToken mints a token that only verifies under purpose.
func (i *Issuer) IssuePurposeToken(purpose Purpose, claims Claims, ttl time.Duration) (string, error) {
	key, ok := i.keys[purpose]
	if !ok {
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}

	now := i.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(claims.AccountId, 10),
		Audience:  jwt.ClaimStrings{string(purpose)},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		logger.Log.Error("failed to sign token", "purpose", purpose, "error", err)
		return "", fmt.Errorf("can't create token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, audience and expiry of a token minted for purpose.
func (i *Issuer) Verify(tokenStr string, purpose Purpose) (*Claims, error) {
	key, ok := i.keys[purpose]
	if !ok {
		return nil, fmt.Errorf("unknown token purpose %q", purpose)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(token *jwt.Token) (interface{}, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(purpose)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal_errors.ErrExpired
		}
		logger.Log.Debug("token verification failed", "purpose", purpose, "error", err)
		return nil, internal_errors.ErrInvalidToken
	}
	if !token.Valid || claims.AccountId == 0 || claims.IssuedAt == nil {
		return nil, internal_errors.ErrInvalidToken
	}
	return claims, nil
}
