package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linkup-dev/linkup/internal/middleware"
	"github.com/linkup-dev/linkup/internal/utils"
)

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password reset link sent")
}

type passwordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ResetPassword consumes the token from the reset link and deactivates every session.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed, please login again")
}

func (h *Handler) RequestPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.accounts.RequestPasswordOTP(r.Context(), req.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "One-time code sent")
}

type otpResetRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (h *Handler) ResetPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req otpResetRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.accounts.ResetPasswordOTP(r.Context(), req.Email, req.OTP, req.Password); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed, please login again")
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	// the current token predates the new watermark
	middleware.ClearSessionCookie(w, h.cfg.Public.SecureCookies)
	writeMessage(w, http.StatusOK, "Password changed, please login again")
}
