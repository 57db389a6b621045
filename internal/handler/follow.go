package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linkup-dev/linkup/internal/utils"
)

// RequestFollow asks {userId} to accept the caller as a follower.
func (h *Handler) RequestFollow(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	target, err := accountIdParam(r, "userId")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.follows.RequestFollow(r.Context(), id, target); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Follow request sent")
}

// AcceptFollow accepts the pending request {userId} sent to the caller.
func (h *Handler) AcceptFollow(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	requester, err := accountIdParam(r, "userId")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.follows.AcceptFollow(r.Context(), id, requester); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Follow request accepted")
}

func (h *Handler) RejectFollow(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	requester, err := accountIdParam(r, "userId")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	if err := h.follows.RejectFollow(r.Context(), id, requester); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Follow request rejected")
}

// Connections lists the follow sets of {userId}, or of the caller when the route has no userId.
func (h *Handler) Connections(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	owner := id.Id
	if chi.URLParam(r, "userId") != "" {
		var err error
		if owner, err = accountIdParam(r, "userId"); err != nil {
			utils.WriteErrorAndStatusCode(w, err)
			return
		}
	}
	page, err := intQuery(r, "page")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	size, err := intQuery(r, "size")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	connections, err := h.follows.Connections(r.Context(), id, owner, page, size)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, connections)
}
