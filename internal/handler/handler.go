package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linkup-dev/linkup/internal/config"
	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/middleware"
	"github.com/linkup-dev/linkup/internal/service"
	"github.com/linkup-dev/linkup/internal/utils"
)

// Presence reports which accounts hold a live connection.
type Presence interface {
	Online() []domain.AccountId
}

type Handler struct {
	accounts service.AccountService
	follows  service.FollowService
	presence Presence
	cfg      *config.Config
}

func New(accounts service.AccountService, follows service.FollowService, presence Presence, cfg *config.Config) *Handler {
	return &Handler{accounts: accounts, follows: follows, presence: presence, cfg: cfg}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type message struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	utils.WriteJSON(w, status, message{Message: msg})
}

// identity is only called on routes behind the auth middleware.
func identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id := middleware.GetIdentity(r)
	if id == nil {
		utils.WriteErrorAndStatusCode(w, internal_errors.ErrIdentityUnresolvable)
		return domain.Identity{}, false
	}
	return *id, true
}

func accountIdParam(r *http.Request, name string) (domain.AccountId, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, internal_errors.Validation("Invalid " + name + ": must be a positive integer")
	}
	return id, nil
}

func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, internal_errors.Validation("Invalid " + name + ": must be an integer")
	}
	return v, nil
}
