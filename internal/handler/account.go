package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linkup-dev/linkup/internal/domain"
	"github.com/linkup-dev/linkup/internal/middleware"
	"github.com/linkup-dev/linkup/internal/utils"
)

// DeleteAccount soft-deletes the caller. The recovery mail is sent before this returns.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.accounts.SoftDelete(r.Context(), id); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	middleware.ClearSessionCookie(w, h.cfg.Public.SecureCookies)
	writeMessage(w, http.StatusOK, "Your account is deactivated, check your mail to recover it")
}

func (h *Handler) RecoverAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Recover(r.Context(), chi.URLParam(r, "token")); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Your account is recovered, you can login now")
}

func (h *Handler) BlockAccount(w http.ResponseWriter, r *http.Request) {
	target, err := accountIdParam(r, "userId")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.accounts.Block(r.Context(), target); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "User blocked")
}

func (h *Handler) UnblockAccount(w http.ResponseWriter, r *http.Request) {
	target, err := accountIdParam(r, "userId")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.accounts.Unblock(r.Context(), target); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "User unblocked")
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, accounts)
}

func (h *Handler) OnlineAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.OnlineAccounts(r.Context())
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, accounts)
}

type presenceResponse struct {
	Connected []domain.AccountId `json:"connected"`
}

// Presence lists accounts with a live websocket on this instance.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, presenceResponse{Connected: h.presence.Online()})
}
