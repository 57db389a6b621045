package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/linkup-dev/linkup/internal/credential"
	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/metrics"
)

type GateStorage interface {
	AccountByID(ctx context.Context, id domain.AccountId, opts ...domain.LookupOption) (domain.Account, error)
}

type TokenVerifier interface {
	Verify(token string, purpose credential.Purpose) (*credential.Claims, error)
}

// Gate resolves a bearer credential to an authorized identity.
type Gate struct {
	storage  GateStorage
	verifier TokenVerifier
}

func NewGate(storage GateStorage, verifier TokenVerifier) *Gate {
	return &Gate{storage: storage, verifier: verifier}
}

// Authorize runs the checks in a fixed order and returns the first failure.
// Identity is verified before anything about account state is revealed.
// An empty allowedRoles admits every role.
func (g *Gate) Authorize(ctx context.Context, bearer string, allowedRoles ...domain.Role) (domain.Identity, error) {
	identity, err := g.authorize(ctx, bearer, allowedRoles)
	if err != nil {
		var e *internal_errors.Error
		if errors.As(err, &e) {
			metrics.GateRejections.WithLabelValues(e.Code).Inc()
		}
		return domain.Identity{}, err
	}
	return identity, nil
}

func (g *Gate) authorize(ctx context.Context, bearer string, allowedRoles []domain.Role) (domain.Identity, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" || strings.Count(bearer, ".") != 2 {
		return domain.Identity{}, internal_errors.ErrIdentityUnresolvable
	}

	claims, err := g.verifier.Verify(bearer, credential.PurposeAccess)
	if err != nil {
		return domain.Identity{}, err
	}

	account, err := g.storage.AccountByID(ctx, claims.AccountId, domain.WithDeleted())
	if err != nil {
		if internal_errors.IsNotFound(err) {
			return domain.Identity{}, internal_errors.ErrNotRegistered
		}
		return domain.Identity{}, err
	}

	if account.Status != domain.StatusActive {
		return domain.Identity{}, internal_errors.ErrAccountInactive
	}
	if account.Availability != domain.Online {
		return domain.Identity{}, internal_errors.ErrNotLoggedIn
	}
	issuedAt := claims.IssuedAtTime()
	if account.ChangeAccountInfo != nil && issuedAt.Unix() < account.ChangeAccountInfo.Unix() {
		return domain.Identity{}, internal_errors.ErrTokenExpired
	}
	if !account.Confirmed {
		return domain.Identity{}, internal_errors.ErrEmailNotConfirmed
	}
	if account.Suspended() {
		return domain.Identity{}, internal_errors.ErrAccountSuspended
	}
	if len(allowedRoles) > 0 && !slices.Contains(allowedRoles, account.Role) {
		return domain.Identity{}, internal_errors.ErrForbidden
	}

	return domain.Identity{
		Id:       account.Id,
		Username: account.Username,
		Email:    account.Email,
		Role:     account.Role,
		IssuedAt: issuedAt,
	}, nil
}
