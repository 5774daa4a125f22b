package handlers

import (
	"context"
	"log"
	"net/http"

	"filmlog/models"
	"filmlog/services/stats"
)

type statsService interface {
	Stats(ctx context.Context, userID string) (models.Stats, error)
}

var _ statsService = (*stats.Service)(nil)

type followChecker interface {
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)
}

type StatsHandler struct {
	Service statsService
	Users   userLookup
	Follows followChecker
}

func NewStatsHandler(service statsService, lookup userLookup, follows followChecker) *StatsHandler {
	return &StatsHandler{Service: service, Users: lookup, Follows: follows}
}

// Stats returns a user's statistics. Hidden users look missing to everyone
// but themselves; friends-only users are visible to the users they follow.
// GET /api/users/{username}/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	viewerID := UserIDFromContext(r.Context())
	user, err := h.Users.GetByUsername(r.Context(), muxVar(r, "username"))
	if err != nil {
		writeUserError(w, err)
		return
	}

	visible, err := h.visible(r.Context(), viewerID, user)
	if err != nil {
		log.Printf("[stats] visibility for %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !visible {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	st, err := h.Service.Stats(r.Context(), user.ID)
	if err != nil {
		log.Printf("[stats] %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *StatsHandler) visible(ctx context.Context, viewerID string, user models.User) (bool, error) {
	switch {
	case viewerID == user.ID:
		return true, nil
	case user.Hidden:
		return false, nil
	case !user.FriendsOnly:
		return true, nil
	case viewerID == "":
		return false, nil
	default:
		return h.Follows.IsFollowing(ctx, user.ID, viewerID)
	}
}
