package service

import (
	"context"

	"github.com/linkup-dev/linkup/internal/credential"
	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/metrics"
)

// ForgotPassword mails a short-lived password-reset link.
func (a *Accounts) ForgotPassword(ctx context.Context, email domain.Email) error {
	account, err := a.storage.AccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	token, err := a.issuer.IssuePurposeToken(credential.PurposePasswordReset, credential.ClaimsFor(&account), a.cfg.ResetTokenTTL)
	if err != nil {
		return err
	}
	a.dispatch(ctx, "password_reset", account.Email, a.messages.PasswordReset(account.Username, token, a.cfg.ResetTokenTTL))
	return nil
}

// ResetPassword sets a new password from a reset link. Existing sessions die
// with the watermark bump and the account has to log in again.
func (a *Accounts) ResetPassword(ctx context.Context, token string, password domain.Password) error {
	claims, err := a.issuer.Verify(token, credential.PurposePasswordReset)
	if err != nil {
		return err
	}
	account, err := a.storage.AccountByID(ctx, claims.AccountId)
	if err != nil {
		return err
	}
	passHash, err := a.newPasswordHash(&account, password)
	if err != nil {
		return err
	}
	if err := a.storage.UpdatePassword(ctx, account.Id, passHash, a.now().UTC(), true); err != nil {
		return err
	}
	metrics.AccountTransitions.WithLabelValues("reset_password").Inc()
	logger.Log.Info("password reset", "account_id", account.Id, "via", "token")
	return nil
}

// RequestPasswordOTP stores the hash of a fresh one-time code, superseding any
// previous one, and mails the plain code.
func (a *Accounts) RequestPasswordOTP(ctx context.Context, email domain.Email) error {
	account, err := a.storage.AccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	code, hash, err := credential.IssueOTP()
	if err != nil {
		return err
	}
	if err := a.storage.SetOTP(ctx, account.Id, hash, a.now().UTC().Add(a.cfg.OTPTTL)); err != nil {
		return err
	}
	a.dispatch(ctx, "password_otp", account.Email, a.messages.PasswordOTP(account.Username, code, a.cfg.OTPTTL))
	return nil
}

// ResetPasswordOTP consumes a one-time code. A wrong or expired code leaves the
// stored code untouched.
func (a *Accounts) ResetPasswordOTP(ctx context.Context, email domain.Email, otp string, password domain.Password) error {
	account, err := a.storage.AccountByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if !account.HasPendingOTP() {
		return internal_errors.ErrInvalidOTP
	}
	if !a.now().Before(*account.OTPExpires) {
		return internal_errors.ErrOTPExpired
	}
	if !credential.CompareSecret(*account.OTPHash, otp) {
		return internal_errors.ErrInvalidOTP
	}

	passHash, err := a.newPasswordHash(&account, password)
	if err != nil {
		return err
	}
	consumed, err := a.storage.ResetPasswordWithOTP(ctx, account.Id, *account.OTPHash, passHash, a.now().UTC())
	if err != nil {
		return err
	}
	if !consumed {
		// superseded or consumed by a concurrent request
		return internal_errors.ErrInvalidOTP
	}
	metrics.AccountTransitions.WithLabelValues("reset_password").Inc()
	logger.Log.Info("password reset", "account_id", account.Id, "via", "otp")
	return nil
}

// ChangePassword replaces the password of a logged-in account. Other sessions
// are cut off by the watermark; the account itself stays active.
func (a *Accounts) ChangePassword(ctx context.Context, identity domain.Identity, oldPassword, newPassword domain.Password) error {
	account, err := a.storage.AccountByID(ctx, identity.Id)
	if err != nil {
		return err
	}
	if !credential.CompareSecret(account.PassHash, oldPassword) {
		return internal_errors.ErrInvalidCredentials
	}
	passHash, err := a.newPasswordHash(&account, newPassword)
	if err != nil {
		return err
	}
	if err := a.storage.UpdatePassword(ctx, account.Id, passHash, a.now().UTC(), false); err != nil {
		return err
	}
	metrics.AccountTransitions.WithLabelValues("change_password").Inc()
	logger.Log.Info("password changed", "account_id", account.Id)
	return nil
}

func (a *Accounts) newPasswordHash(account *domain.Account, password domain.Password) (string, error) {
	if password == "" {
		return "", internal_errors.Validation("Password is required")
	}
	if credential.CompareSecret(account.PassHash, password) {
		return "", internal_errors.ErrSamePassword
	}
	return credential.HashSecret(password)
}
