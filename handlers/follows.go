package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"filmlog/models"
	"filmlog/services/follows"
	"filmlog/services/users"
)

type followsService interface {
	Follow(ctx context.Context, followerID, followedID string) (models.Follow, error)
	Unfollow(ctx context.Context, followerID, followedID string) error
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)
	Following(ctx context.Context, userID string) ([]models.Follow, error)
	Followers(ctx context.Context, userID string) ([]models.Follow, error)
}

type userLookup interface {
	GetByUsername(ctx context.Context, username string) (models.User, error)
}

var (
	_ followsService = (*follows.Service)(nil)
	_ userLookup     = (*users.Service)(nil)
)

type FollowsHandler struct {
	Service followsService
	Users   userLookup
}

func NewFollowsHandler(service followsService, lookup userLookup) *FollowsHandler {
	return &FollowsHandler{Service: service, Users: lookup}
}

// POST /api/users/{username}/follow
func (h *FollowsHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	target, ok := h.target(w, r)
	if !ok {
		return
	}
	f, err := h.Service.Follow(r.Context(), userID, target.ID)
	if err != nil {
		writeFollowError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// DELETE /api/users/{username}/follow
func (h *FollowsHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	target, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.Service.Unfollow(r.Context(), userID, target.ID); err != nil {
		writeFollowError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/users/{username}/following
func (h *FollowsHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.edges(w, r, h.Service.Following)
}

// GET /api/users/{username}/followers
func (h *FollowsHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.edges(w, r, h.Service.Followers)
}

func (h *FollowsHandler) edges(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) ([]models.Follow, error)) {
	target, ok := h.target(w, r)
	if !ok {
		return
	}
	out, err := fn(r.Context(), target.ID)
	if err != nil {
		writeFollowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *FollowsHandler) target(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, err := h.Users.GetByUsername(r.Context(), muxVar(r, "username"))
	if err != nil {
		writeUserError(w, err)
		return models.User{}, false
	}
	return user, true
}

func writeFollowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, follows.ErrSelfFollow), errors.Is(err, follows.ErrUserIDRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, follows.ErrAlreadyFollowing):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, follows.ErrNotFollowing), errors.Is(err, follows.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("[follows] request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
