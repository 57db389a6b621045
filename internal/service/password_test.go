package service

import (
	"context"
	"testing"
	"time"

	"github.com/linkup-dev/linkup/internal/credential"
	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePassword_InvalidatesIssuedTokens(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account, token := env.loggedIn(t, "alice")

	identity, err := env.gate.Authorize(ctx, token)
	require.NoError(t, err)

	env.clock.Advance(time.Second)
	require.NoError(t, env.accounts.ChangePassword(ctx, identity, testPassword, "brand-new-secret"))

	_, err = env.gate.Authorize(ctx, token)
	assert.ErrorIs(t, err, internal_errors.ErrTokenExpired)

	// a token minted in the same second as the change is honored
	session, err := env.accounts.Login(ctx, "alice", "brand-new-secret", false)
	require.NoError(t, err)
	_, err = env.gate.Authorize(ctx, session.Token)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusActive, env.account(t, account.Id).Status)
}

func TestChangePassword_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account, _ := env.loggedIn(t, "alice")

	err := env.accounts.ChangePassword(ctx, identityOf(account), "not-it", "whatever")
	assert.ErrorIs(t, err, internal_errors.ErrInvalidCredentials)

	err = env.accounts.ChangePassword(ctx, identityOf(account), testPassword, testPassword)
	assert.ErrorIs(t, err, internal_errors.ErrSamePassword)
	assert.Nil(t, env.account(t, account.Id).ChangeAccountInfo)
}

func TestResetPassword_Token(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account, session := env.loggedIn(t, "alice")

	require.NoError(t, env.accounts.ForgotPassword(ctx, "alice@mail.test"))
	token := linkToken(t, env.notifier.Last(t).Body, "/auth/reset-password/")

	err := env.accounts.ResetPassword(ctx, token, testPassword)
	assert.ErrorIs(t, err, internal_errors.ErrSamePassword)

	env.clock.Advance(time.Second)
	require.NoError(t, env.accounts.ResetPassword(ctx, token, "another-secret"))

	updated := env.account(t, account.Id)
	assert.Equal(t, domain.StatusNotActive, updated.Status)
	require.NotNil(t, updated.ChangeAccountInfo)
	assert.True(t, credential.CompareSecret(updated.PassHash, "another-secret"))

	// inactive is reported before the stale watermark
	_, err = env.gate.Authorize(ctx, session)
	assert.ErrorIs(t, err, internal_errors.ErrAccountInactive)

	_, err = env.accounts.Login(ctx, "alice", "another-secret", false)
	require.NoError(t, err)
	_, err = env.gate.Authorize(ctx, session)
	assert.ErrorIs(t, err, internal_errors.ErrTokenExpired)
}

func TestResetPassword_TokenPurposeAndExpiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account, accessToken := env.loggedIn(t, "alice")

	err := env.accounts.ResetPassword(ctx, accessToken, "another-secret")
	assert.ErrorIs(t, err, internal_errors.ErrInvalidToken)

	recovery, err := env.issuer.IssuePurposeToken(credential.PurposeRecovery, credential.ClaimsFor(&account), time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, env.accounts.ResetPassword(ctx, recovery, "another-secret"), internal_errors.ErrInvalidToken)

	require.NoError(t, env.accounts.ForgotPassword(ctx, "alice@mail.test"))
	token := linkToken(t, env.notifier.Last(t).Body, "/auth/reset-password/")
	env.clock.Advance(env.cfg.ResetTokenTTL + time.Second)
	assert.ErrorIs(t, env.accounts.ResetPassword(ctx, token, "another-secret"), internal_errors.ErrExpired)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	err := env.accounts.ForgotPassword(context.Background(), "nobody@mail.test")
	assert.ErrorIs(t, err, internal_errors.ErrAccountNotFound)
	assert.Zero(t, env.notifier.Count())
}

func TestResetPasswordOTP_Window(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account := env.confirmed(t, "alice")

	require.NoError(t, env.accounts.RequestPasswordOTP(ctx, "alice@mail.test"))
	code := otpFrom(t, env.notifier.Last(t).Body)
	stored := env.account(t, account.Id)
	require.True(t, stored.HasPendingOTP())
	assert.NotEqual(t, code, *stored.OTPHash)
	assert.Equal(t, env.clock.Now().Add(24*time.Hour), stored.OTPExpires.UTC())

	env.clock.Advance(time.Hour)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err := env.accounts.ResetPasswordOTP(ctx, "alice@mail.test", wrong, "another-secret")
	assert.ErrorIs(t, err, internal_errors.ErrInvalidOTP)
	assert.Equal(t, *stored.OTPHash, *env.account(t, account.Id).OTPHash)

	require.NoError(t, env.accounts.ResetPasswordOTP(ctx, "alice@mail.test", code, "another-secret"))
	updated := env.account(t, account.Id)
	assert.False(t, updated.HasPendingOTP())
	assert.Nil(t, updated.OTPExpires)
	assert.Equal(t, domain.StatusNotActive, updated.Status)
	assert.NotNil(t, updated.ChangeAccountInfo)

	// consumed
	err = env.accounts.ResetPasswordOTP(ctx, "alice@mail.test", code, "third-secret")
	assert.ErrorIs(t, err, internal_errors.ErrInvalidOTP)
}

func TestResetPasswordOTP_Expired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account := env.confirmed(t, "alice")

	require.NoError(t, env.accounts.RequestPasswordOTP(ctx, "alice@mail.test"))
	code := otpFrom(t, env.notifier.Last(t).Body)

	env.clock.Advance(25 * time.Hour)
	err := env.accounts.ResetPasswordOTP(ctx, "alice@mail.test", code, "another-secret")
	assert.ErrorIs(t, err, internal_errors.ErrOTPExpired)
	assert.True(t, internal_errors.IsKind(err, internal_errors.KindExpired))

	stored := env.account(t, account.Id)
	assert.True(t, stored.HasPendingOTP())
	assert.True(t, credential.CompareSecret(stored.PassHash, testPassword))
}

func TestResetPasswordOTP_NoPendingCode(t *testing.T) {
	env := newTestEnv(t)
	env.confirmed(t, "alice")
	err := env.accounts.ResetPasswordOTP(context.Background(), "alice@mail.test", "123456", "another-secret")
	assert.ErrorIs(t, err, internal_errors.ErrInvalidOTP)
}

func TestResetPasswordOTP_SamePassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	account := env.confirmed(t, "alice")

	require.NoError(t, env.accounts.RequestPasswordOTP(ctx, "alice@mail.test"))
	code := otpFrom(t, env.notifier.Last(t).Body)

	err := env.accounts.ResetPasswordOTP(ctx, "alice@mail.test", code, testPassword)
	assert.ErrorIs(t, err, internal_errors.ErrSamePassword)
	stored := env.account(t, account.Id)
	assert.True(t, stored.HasPendingOTP())
}
