package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"filmlog/models"
	"filmlog/services/users"
)

type usersService interface {
	Register(ctx context.Context, username, password string) (models.User, error)
	Login(ctx context.Context, username, password string) (string, models.User, error)
	IssueToken(user models.User) (string, error)
	Get(ctx context.Context, id string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	SetPrivacy(ctx context.Context, id string, p models.Privacy) (models.User, error)
	ChangePassword(ctx context.Context, id, current, next string) error
}

var _ usersService = (*users.Service)(nil)

type UsersHandler struct {
	Service usersService
}

func NewUsersHandler(service usersService) *UsersHandler {
	return &UsersHandler{Service: service}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// POST /api/auth/register
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Service.Register(r.Context(), body.Username, body.Password)
	if err != nil {
		writeUserError(w, err)
		return
	}
	token, err := h.Service.IssueToken(user)
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// POST /api/auth/login
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.Service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// GET /api/auth/me
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	user, err := h.Service.Get(r.Context(), userID)
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// PUT /api/auth/password
func (h *UsersHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Service.ChangePassword(r.Context(), userID, body.CurrentPassword, body.NewPassword); err != nil {
		writeUserError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/me/privacy
func (h *UsersHandler) SetPrivacy(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var body models.Privacy
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.Service.SetPrivacy(r.Context(), userID, body)
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GET /api/users/{username}
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username := muxVar(r, "username")
	user, err := h.Service.GetByUsername(r.Context(), username)
	if err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func writeUserError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, users.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, users.ErrUsernameTaken):
		status = http.StatusConflict
	case errors.Is(err, users.ErrUsernameInvalid), errors.Is(err, users.ErrPasswordTooShort):
		status = http.StatusBadRequest
	default:
		log.Printf("[users] request failed: %v", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
