package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linkup-dev/linkup/internal/domain"
	"github.com/linkup-dev/linkup/internal/middleware"
	"github.com/linkup-dev/linkup/internal/service"
	"github.com/linkup-dev/linkup/internal/utils"
)

type registerRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required,max=64"`
	LastName  string `json:"last_name" validate:"required,max=64"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	Age       int    `json:"age" validate:"omitempty,gte=13,lte=150"`
	Gender    string `json:"gender" validate:"omitempty,oneof=male female"`
}

type registerResponse struct {
	Id domain.AccountId `json:"id"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	id, err := h.accounts.Register(r.Context(), service.Registration{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Age:       req.Age,
		Gender:    domain.Gender(req.Gender),
	})
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, registerResponse{Id: id})
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Activate(r.Context(), chi.URLParam(r, "code")); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Your account is confirmed, you can login now")
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) ResendActivation(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.accounts.ResendActivation(r.Context(), req.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Activation mail sent")
}

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

type loginResponse struct {
	Token   string                `json:"token"`
	Account domain.AccountSummary `json:"account"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Login, req.Password, req.Remember)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	middleware.SetSessionCookie(w, session.Token, session.TTL, h.cfg.Public.SecureCookies)
	utils.WriteJSON(w, http.StatusOK, loginResponse{Token: session.Token, Account: session.Account})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	session, err := h.accounts.Logout(r.Context(), id)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	middleware.ClearSessionCookie(w, h.cfg.Public.SecureCookies)
	utils.WriteJSON(w, http.StatusOK, loginResponse{Token: session.Token})
}
