package service

import (
	"context"
	"errors"
	"time"

	"github.com/linkup-dev/linkup/internal/credential"
	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/metrics"
)

const compensationTimeout = 5 * time.Second

// SoftDelete deactivates the account and starts the recovery window. The
// recovery mail is awaited: if it cannot be sent the account is put back
// exactly as it was, also when the dispatcher panics.
func (a *Accounts) SoftDelete(ctx context.Context, identity domain.Identity) error {
	account, err := a.storage.AccountByID(ctx, identity.Id, domain.WithDeleted())
	if err != nil {
		return err
	}
	if account.Deleted {
		return internal_errors.ErrAlreadyDeleted
	}

	deadline := a.now().UTC().Add(a.cfg.RecoveryWindow)
	swapped, err := a.storage.SoftDelete(ctx, account.Id, deadline)
	if err != nil {
		return err
	}
	if !swapped {
		return internal_errors.ErrAlreadyDeleted
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		r := recover()
		a.restoreSoftDeleted(ctx, &account)
		if r != nil {
			panic(r)
		}
	}()

	token, err := a.issuer.IssuePurposeToken(credential.PurposeRecovery, credential.ClaimsFor(&account), a.cfg.RecoveryWindow)
	if err != nil {
		return err
	}

	msg := a.messages.AccountRecovery(account.Username, token, deadline)
	sendCtx, cancel := context.WithTimeout(ctx, a.notifyTimeout())
	defer cancel()
	err = a.notifier.Send(sendCtx, account.Email, msg.Subject, msg.Body)
	metrics.ObserveNotification("account_recovery", err)
	if err != nil {
		logger.Log.Warn("recovery mail failed, reverting soft-delete", "account_id", account.Id, "error", err)
		return internal_errors.ErrNotificationFails.Wrap(err)
	}

	committed = true
	metrics.AccountTransitions.WithLabelValues("soft_delete").Inc()
	logger.Log.Info("account soft-deleted", "account_id", account.Id, "deadline", deadline)
	return nil
}

func (a *Accounts) restoreSoftDeleted(ctx context.Context, prev *domain.Account) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	metrics.Compensations.Inc()
	if err := a.storage.RestoreSoftDeleted(ctx, prev.Id, prev.Status); err != nil {
		logger.Log.Error("failed to revert soft-delete", "account_id", prev.Id, "error", err)
	}
}

// Recover reactivates a soft-deleted account before its deadline.
func (a *Accounts) Recover(ctx context.Context, token string) error {
	claims, err := a.issuer.Verify(token, credential.PurposeRecovery)
	if err != nil {
		// the link lives exactly as long as the recovery window
		if errors.Is(err, internal_errors.ErrExpired) {
			return internal_errors.ErrRecoveryExpired
		}
		return err
	}
	account, err := a.storage.AccountByID(ctx, claims.AccountId, domain.WithDeleted())
	if err != nil {
		return err
	}
	if err := a.recoverable(&account); err != nil {
		return err
	}

	swapped, err := a.storage.Recover(ctx, account.Id, a.now().UTC())
	if err != nil {
		return err
	}
	if !swapped {
		// lost a race against another recovery or the deadline
		account, err = a.storage.AccountByID(ctx, claims.AccountId, domain.WithDeleted())
		if err != nil {
			return err
		}
		if err := a.recoverable(&account); err != nil {
			return err
		}
		return internal_errors.ErrRecoveryExpired
	}

	metrics.AccountTransitions.WithLabelValues("recover").Inc()
	logger.Log.Info("account recovered", "account_id", account.Id)
	return nil
}

func (a *Accounts) recoverable(account *domain.Account) error {
	if !account.Deleted {
		return internal_errors.ErrNotDeleted
	}
	if account.PermanentlyDeleted == nil || !a.now().Before(*account.PermanentlyDeleted) {
		return internal_errors.ErrRecoveryExpired
	}
	return nil
}
