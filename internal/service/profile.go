package service

import (
	"context"
	"strings"

	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/metrics"
)

// Profile returns the full profile of the caller.
func (a *Accounts) Profile(ctx context.Context, identity domain.Identity) (domain.Profile, error) {
	return a.profile(ctx, identity.Id)
}

// PublicProfile returns the profile of target. Contact fields are only shown
// to the owner and to admins.
func (a *Accounts) PublicProfile(ctx context.Context, viewer domain.Identity, target domain.AccountId) (domain.Profile, error) {
	p, err := a.profile(ctx, target)
	if err != nil {
		return domain.Profile{}, err
	}
	if viewer.Id != target && !viewer.IsAdmin() {
		p.Redact()
	}
	return p, nil
}

func (a *Accounts) profile(ctx context.Context, id domain.AccountId) (domain.Profile, error) {
	account, err := a.storage.AccountByID(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	p := account.Profile()
	p.Connections, err = a.storage.CountConnections(ctx, id, domain.FollowAccepted)
	if err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// UpdateProfile changes the caller's own fields. Username and email must not
// belong to another account, and every field sent must differ from the stored value.
func (a *Accounts) UpdateProfile(ctx context.Context, identity domain.Identity, update domain.ProfileUpdate) (domain.Profile, error) {
	if update.Empty() {
		return domain.Profile{}, internal_errors.Validation("Please provide at least one field to update")
	}
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		update.Username = &username
	}
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		update.Email = &email
	}

	account, err := a.storage.AccountByID(ctx, identity.Id, domain.WithDeleted())
	if err != nil {
		return domain.Profile{}, err
	}
	if account.Deleted {
		return domain.Profile{}, internal_errors.ErrAccountSuspended
	}
	if field := update.Unchanged(&account); field != "" {
		return domain.Profile{}, internal_errors.Validation("Cannot update " + field + " with the same value")
	}

	updated, err := a.storage.UpdateProfile(ctx, identity.Id, update)
	if err != nil {
		return domain.Profile{}, err
	}
	if !updated {
		// soft-deleted since the read above
		return domain.Profile{}, internal_errors.ErrAccountSuspended
	}

	metrics.AccountTransitions.WithLabelValues("update_profile").Inc()
	logger.Log.Info("profile updated", "account_id", identity.Id)
	return a.profile(ctx, identity.Id)
}
