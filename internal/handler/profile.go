package handler

import (
	"net/http"

	"github.com/linkup-dev/linkup/internal/domain"
	"github.com/linkup-dev/linkup/internal/utils"
)

type updateProfileRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=3,max=32,alphanum"`
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=64"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=64"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	Age       *int    `json:"age" validate:"omitempty,gte=13,lte=150"`
	Gender    *string `json:"gender" validate:"omitempty,oneof=male female"`
}

func (req updateProfileRequest) update() domain.ProfileUpdate {
	u := domain.ProfileUpdate{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Age:       req.Age,
	}
	if req.Gender != nil {
		g := domain.Gender(*req.Gender)
		u.Gender = &g
	}
	return u
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	profile, err := h.accounts.Profile(r.Context(), id)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, profile)
}

// PublicProfile shows {userId} to any logged-in account.
func (h *Handler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	target, err := accountIdParam(r, "userId")
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	profile, err := h.accounts.PublicProfile(r.Context(), id, target)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := utils.DecodeValidate(r.Body, &req); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	profile, err := h.accounts.UpdateProfile(r.Context(), id, req.update())
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, profile)
}
