package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/TryOnTech0/server-api/internal/middleware"
	"github.com/TryOnTech0/server-api/internal/response"
	"github.com/TryOnTech0/server-api/internal/user"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type credentialsRequest struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"correct-horse-battery"`
}

type logoutData struct {
	Revoked string `json:"revoked" example:"8c1f5e0a-6a3c-4c55-9a53-0f4d8a7c2b11"`
}

// Register godoc
//
//	@Summary		Register new user
//	@Description	Create an account with a username and password. Issues a JWT on success.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Registration details"
//	@Success		201		{object}	response.Envelope{data=Session}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	if !user.UsernamePattern.MatchString(req.Username) {
		response.BadRequest(w, "username must be 3-32 letters, digits, '.', '_' or '-'")
		return
	}
	if len(req.Password) < minPasswordLen || len(req.Password) > maxPasswordLen {
		response.BadRequest(w, "password must be between 8 and 128 characters")
		return
	}

	sess, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrUsernameTaken) {
		response.Conflict(w, "username already taken")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, sess)
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Exchange a username and password for a JWT.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Credentials"
//	@Success		200		{object}	response.Envelope{data=Session}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		response.BadRequest(w, "username and password are required")
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(w, "invalid username or password")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, sess)
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	Revoke the presented token. Later requests with it are rejected until it would have expired.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=logoutData}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	jti, _ := r.Context().Value(middleware.TokenIDKey).(string)
	exp, _ := r.Context().Value(middleware.TokenExpiryKey).(time.Time)
	if jti == "" {
		response.Unauthorized(w, "token cannot be revoked")
		return
	}

	if err := h.svc.Logout(r.Context(), jti, exp); err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, logoutData{Revoked: jti})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return req, false
	}
	return req, true
}
