package user

import (
	"net/http"
	"regexp"

	"github.com/TryOnTech0/server-api/internal/middleware"
	"github.com/TryOnTech0/server-api/internal/response"
)

// UsernamePattern is the accepted shape of a username.
var UsernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// Handler holds HTTP handlers for user-related endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type usernameCheckData struct {
	Username  string `json:"username"  example:"alice"`
	Available bool   `json:"available" example:"true"`
}

// GetMe godoc
//
//	@Summary		Get current user
//	@Description	Returns the profile of the currently authenticated user.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=User}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/users/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.svc.GetByID(r.Context(), userID)
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, u)
}

// CheckUsername godoc
//
//	@Summary		Check username availability
//	@Description	Reports whether a username is well-formed and not yet registered.
//	@Tags			users
//	@Produce		json
//	@Param			username	query		string	true	"Username to check"
//	@Success		200			{object}	response.Envelope{data=usernameCheckData}
//	@Failure		400			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/users/username-check [get]
func (h *Handler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if !UsernamePattern.MatchString(username) {
		response.BadRequest(w, "username must be 3-32 letters, digits, '.', '_' or '-'")
		return
	}

	available, err := h.svc.UsernameAvailable(r.Context(), username)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, usernameCheckData{Username: username, Available: available})
}
