package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileHandler(t *testing.T) {
	h := newTestHandler(&MockAccountService{
		MockProfile: func(ctx context.Context, identity domain.Identity) (domain.Profile, error) {
			assert.Equal(t, caller, identity)
			return domain.Profile{Id: caller.Id, Username: caller.Username, Email: caller.Email, Connections: 2}, nil
		},
	}, &MockFollowService{})

	rr := serve(t, http.MethodGet, "/user/profile", "/user/profile", h.Profile, nil, true)

	require.Equal(t, http.StatusOK, rr.Code)
	var got domain.Profile
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, caller.Email, got.Email)
	assert.Equal(t, 2, got.Connections)
}

func TestPublicProfileHandler(t *testing.T) {
	const pattern = "/users/{userId}/profile"

	t.Run("redacted by the service", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{
			MockPublicProfile: func(ctx context.Context, viewer domain.Identity, target domain.AccountId) (domain.Profile, error) {
				assert.Equal(t, caller.Id, viewer.Id)
				assert.Equal(t, domain.AccountId(7), target)
				return domain.Profile{Id: 7, Username: "other"}, nil
			},
		}, &MockFollowService{})

		rr := serve(t, http.MethodGet, pattern, "/users/7/profile", h.PublicProfile, nil, true)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), `"email"`)
		assert.NotContains(t, rr.Body.String(), `"phone"`)
	})

	t.Run("not found", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{
			MockPublicProfile: func(ctx context.Context, viewer domain.Identity, target domain.AccountId) (domain.Profile, error) {
				return domain.Profile{}, internal_errors.ErrAccountNotFound
			},
		}, &MockFollowService{})
		rr := serve(t, http.MethodGet, pattern, "/users/7/profile", h.PublicProfile, nil, true)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{}, &MockFollowService{})
		rr := serve(t, http.MethodGet, pattern, "/users/abc/profile", h.PublicProfile, nil, true)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUpdateProfileHandler(t *testing.T) {
	const pattern = "/user"

	t.Run("only sent fields are set", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{
			MockUpdateProfile: func(ctx context.Context, identity domain.Identity, update domain.ProfileUpdate) (domain.Profile, error) {
				require.NotNil(t, update.Username)
				assert.Equal(t, "newname", *update.Username)
				require.NotNil(t, update.Gender)
				assert.Equal(t, domain.GenderFemale, *update.Gender)
				assert.Nil(t, update.Email)
				assert.Nil(t, update.Age)
				return domain.Profile{Id: identity.Id, Username: "newname"}, nil
			},
		}, &MockFollowService{})

		body := []byte(`{"username":"newname","gender":"female"}`)
		rr := serve(t, http.MethodPatch, pattern, "/user", h.UpdateProfile, body, true)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"username":"newname"`)
	})

	t.Run("invalid fields", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{}, &MockFollowService{})
		for _, body := range []string{`{"email":"nope"}`, `{"age":3}`, `{"gender":"x"}`, `{"username":"a b"}`} {
			rr := serve(t, http.MethodPatch, pattern, "/user", h.UpdateProfile, []byte(body), true)
			assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		}
	})

	t.Run("taken username", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{
			MockUpdateProfile: func(ctx context.Context, identity domain.Identity, update domain.ProfileUpdate) (domain.Profile, error) {
				return domain.Profile{}, internal_errors.ErrUsernameTaken
			},
		}, &MockFollowService{})
		rr := serve(t, http.MethodPatch, pattern, "/user", h.UpdateProfile, []byte(`{"username":"taken"}`), true)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "USERNAME_TAKEN", decodeError(t, rr).Code)
	})
}
