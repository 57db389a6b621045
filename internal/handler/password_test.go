package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForgotPasswordHandler(t *testing.T) {
	var got string
	h := newTestHandler(&MockAccountService{
		MockForgotPassword: func(ctx context.Context, email domain.Email) error {
			got = email
			return nil
		},
	}, &MockFollowService{})

	rr := serve(t, http.MethodPost, "/auth/forgot", "/auth/forgot", h.ForgotPassword, []byte(`{"email":"jdoe@mail.test"}`), false)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "jdoe@mail.test", got)
}

func TestResetPasswordHandler(t *testing.T) {
	const pattern = "/auth/reset-password/{token}"

	t.Run("token from path", func(t *testing.T) {
		var gotToken, gotPassword string
		h := newTestHandler(&MockAccountService{
			MockResetPassword: func(ctx context.Context, token string, password domain.Password) error {
				gotToken, gotPassword = token, password
				return nil
			},
		}, &MockFollowService{})

		rr := serve(t, http.MethodPost, pattern, "/auth/reset-password/a.b.c", h.ResetPassword, []byte(`{"password":"newpassword"}`), false)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "a.b.c", gotToken)
		assert.Equal(t, "newpassword", gotPassword)
	})

	t.Run("expired token", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{
			MockResetPassword: func(ctx context.Context, token string, password domain.Password) error {
				return internal_errors.ErrExpired
			},
		}, &MockFollowService{})

		rr := serve(t, http.MethodPost, pattern, "/auth/reset-password/a.b.c", h.ResetPassword, []byte(`{"password":"newpassword"}`), false)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("same password", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{
			MockResetPassword: func(ctx context.Context, token string, password domain.Password) error {
				return internal_errors.ErrSamePassword
			},
		}, &MockFollowService{})

		rr := serve(t, http.MethodPost, pattern, "/auth/reset-password/a.b.c", h.ResetPassword, []byte(`{"password":"newpassword"}`), false)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "SAME_PASSWORD", decodeError(t, rr).Code)
	})
}

func TestPasswordOTPHandlers(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{}, &MockFollowService{})
		rr := serve(t, http.MethodPost, "/auth/otp", "/auth/otp", h.RequestPasswordOTP, []byte(`{"email":"jdoe@mail.test"}`), false)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("malformed code never reaches the service", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{
			MockResetPasswordOTP: func(ctx context.Context, email domain.Email, otp string, password domain.Password) error {
				t.Fatal("service must not be called")
				return nil
			},
		}, &MockFollowService{})

		rr := serve(t, http.MethodPost, "/auth/otp/reset", "/auth/otp/reset", h.ResetPasswordOTP,
			[]byte(`{"email":"jdoe@mail.test","otp":"12ab","password":"newpassword"}`), false)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("expired code", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{
			MockResetPasswordOTP: func(ctx context.Context, email domain.Email, otp string, password domain.Password) error {
				assert.Equal(t, "123456", otp)
				return internal_errors.ErrOTPExpired
			},
		}, &MockFollowService{})

		rr := serve(t, http.MethodPost, "/auth/otp/reset", "/auth/otp/reset", h.ResetPasswordOTP,
			[]byte(`{"email":"jdoe@mail.test","otp":"123456","password":"newpassword"}`), false)

		assert.Equal(t, http.StatusGone, rr.Code)
		assert.Equal(t, "OTP_EXPIRED", decodeError(t, rr).Code)
	})
}

func TestChangePasswordHandler(t *testing.T) {
	const route = "/user/password"
	body := []byte(`{"old_password":"password1","new_password":"password2"}`)

	t.Run("clears the session cookie", func(t *testing.T) {
		var got domain.Identity
		h := newTestHandler(&MockAccountService{
			MockChangePassword: func(ctx context.Context, identity domain.Identity, oldPassword, newPassword domain.Password) error {
				got = identity
				assert.Equal(t, "password1", oldPassword)
				assert.Equal(t, "password2", newPassword)
				return nil
			},
		}, &MockFollowService{})

		rr := serve(t, http.MethodPut, route, route, h.ChangePassword, body, true)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, caller.Id, got.Id)
		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})

	t.Run("wrong old password", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{
			MockChangePassword: func(ctx context.Context, identity domain.Identity, oldPassword, newPassword domain.Password) error {
				return internal_errors.ErrInvalidCredentials
			},
		}, &MockFollowService{})

		rr := serve(t, http.MethodPut, route, route, h.ChangePassword, body, true)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, rr.Result().Cookies())
	})
}
