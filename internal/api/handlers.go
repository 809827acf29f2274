package api

import (
	"net/http"
	"time"

	"github.com/starford/casedesk/internal/apperr"
	"github.com/starford/casedesk/internal/auth"
	"github.com/starford/casedesk/internal/chat"
	"github.com/starford/casedesk/internal/docservice"
	"github.com/starford/casedesk/internal/sse"
	"github.com/starford/casedesk/internal/store"
)

// Deps are the services behind the API.
type Deps struct {
	Auth          *auth.Service
	Store         *store.DB
	Documents     *docservice.Service
	Relay         *chat.Relay
	Broker        *sse.Broker
	SecureCookies bool
}

// Handler holds API route handlers.
type Handler struct {
	auth          *auth.Service
	db            *store.DB
	docs          *docservice.Service
	relay         *chat.Relay
	broker        *sse.Broker
	secureCookies bool
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		auth:          d.Auth,
		db:            d.Store,
		docs:          d.Documents,
		relay:         d.Relay,
		broker:        d.Broker,
		secureCookies: d.SecureCookies,
	}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.Registration
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, err, "register")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Login handles POST /api/auth/login. The token is returned in the body
// and set as the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, u, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err, "login")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LoginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: u})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), sessionToken(r)); err != nil {
		writeError(w, err, "logout")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.auth.Me(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err, "me")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Events handles GET /api/events, the caller's live record stream.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	h.broker.Serve(w, r, UserID(r.Context()))
}

// validated runs v.Validate and writes a 400 on failure.
func validated(w http.ResponseWriter, v interface{ Validate() error }) bool {
	if err := v.Validate(); err != nil {
		writeError(w, apperr.Validation(err), "validate")
		return false
	}
	return true
}
