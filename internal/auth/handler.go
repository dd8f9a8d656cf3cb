package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/worklane/worklane/internal/identity"
	"github.com/worklane/worklane/internal/session"
	"github.com/worklane/worklane/internal/shared"
)

// RefreshCookieName carries the refresh credential between login and refresh.
const RefreshCookieName = "worklane_refresh"

// Handler wires the HTTP endpoints for authentication and bypass flows.
type Handler struct {
	logger       *slog.Logger
	provider     identity.Provider
	sessions     *session.Manager
	bypass       *session.Controller
	validator    *validator.Validate
	cookieSecure bool
	refreshTTL   time.Duration
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, provider identity.Provider, sessions *session.Manager, bypass *session.Controller, cookieSecure bool, refreshTTL time.Duration) *Handler {
	return &Handler{
		logger:       logger,
		provider:     provider,
		sessions:     sessions,
		bypass:       bypass,
		validator:    validator.New(),
		cookieSecure: cookieSecure,
		refreshTTL:   refreshTTL,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Post("/logout", h.handleLogout)
	r.Get("/verify", h.handleVerify)
	r.Post("/bypass", h.handleBypass)
	r.Get("/bypass/verify", h.handleBypassVerify)
	r.Post("/bypass/revert", h.handleBypassRevert)
}

type loginRequest struct {
	Account  string `json:"accountId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "accountId and password are required")
		return
	}
	subject, err := h.provider.VerifyCredentials(r.Context(), req.Account, req.Password)
	if err != nil {
		// One generic message: never distinguish unknown account from wrong secret.
		shared.RespondError(w, http.StatusBadRequest, "invalid_credentials", "account or password is incorrect")
		return
	}
	creds, err := h.sessions.Issue(r.Context(), subject)
	if err != nil {
		h.logger.Error("issue session", slog.Any("error", err))
		shared.RespondError(w, http.StatusBadRequest, "login_failed", "could not establish a session")
		return
	}
	h.setRefreshCookie(w, creds.RefreshToken)
	shared.RespondJSON(w, http.StatusOK, tokenResponse{Token: creds.AccessToken, TokenType: creds.TokenType})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "refresh_failed", "missing refresh credential")
		return
	}
	token, err := h.sessions.Refresh(r.Context(), cookie.Value)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "refresh_failed", "refresh credential is no longer valid")
		return
	}
	shared.RespondJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "logout_failed", "no session to terminate")
		return
	}
	if err := h.sessions.RevokeByRefresh(r.Context(), cookie.Value); err != nil && !errors.Is(err, shared.ErrUnauthenticated) {
		h.logger.Warn("revoke session", slog.Any("error", err))
		shared.RespondError(w, http.StatusBadRequest, "logout_failed", "could not terminate the session")
		return
	}
	h.clearRefreshCookie(w)
	shared.RespondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if _, ok := shared.AuthFromContext(r.Context()); !ok {
		shared.RespondError(w, http.StatusUnauthorized, "unauthenticated", "token is missing, invalid, or expired")
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"statusCode": http.StatusOK, "message": "ok"})
}

type bypassRequest struct {
	Account string `json:"accountId" validate:"required"`
}

type bypassInfo struct {
	OriginalUser string `json:"originalUser"`
	ExpiresIn    int64  `json:"expiresIn"`
	IssuedAt     string `json:"issuedAt"`
}

func (h *Handler) handleBypass(w http.ResponseWriter, r *http.Request) {
	ac, ok := shared.AuthFromContext(r.Context())
	if !ok {
		shared.RespondError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	var req bypassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "accountId is required")
		return
	}
	token, imp, err := h.bypass.Begin(r.Context(), ac, req.Account)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrForbidden), errors.Is(err, shared.ErrAuditFailure):
			shared.RespondError(w, http.StatusForbidden, "forbidden", http.StatusText(http.StatusForbidden))
		case errors.Is(err, shared.ErrBypassActive):
			shared.RespondError(w, http.StatusBadRequest, "bypass_active", "session is already impersonating")
		default:
			shared.RespondError(w, http.StatusBadRequest, "bypass_failed", "could not start the bypass")
		}
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"bypassInfo": bypassInfo{
			OriginalUser: strconv.FormatInt(imp.OriginalSubjectID, 10),
			ExpiresIn:    int64(imp.ExpiresAt.Sub(imp.IssuedAt).Seconds()),
			IssuedAt:     imp.IssuedAt.Format(time.RFC3339),
		},
	})
}

func (h *Handler) handleBypassVerify(w http.ResponseWriter, r *http.Request) {
	ac, ok := shared.AuthFromContext(r.Context())
	if !ok {
		shared.RespondError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	imp, err := h.bypass.Status(r.Context(), ac)
	if err != nil {
		h.logger.Error("bypass status", slog.Any("error", err))
		shared.RespondError(w, http.StatusUnauthorized, "unauthenticated", "could not resolve the session")
		return
	}
	if imp == nil {
		shared.RespondJSON(w, http.StatusOK, map[string]any{"isBypass": false})
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"isBypass":     true,
		"originalUser": strconv.FormatInt(imp.OriginalSubjectID, 10),
		"currentUser":  strconv.FormatInt(imp.ActingSubjectID, 10),
	})
}

func (h *Handler) handleBypassRevert(w http.ResponseWriter, r *http.Request) {
	ac, ok := shared.AuthFromContext(r.Context())
	if !ok {
		shared.RespondError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	token, err := h.bypass.End(r.Context(), ac)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			shared.RespondError(w, http.StatusBadRequest, "no_bypass", "session is not impersonating")
			return
		}
		h.logger.Error("bypass revert", slog.Any("error", err))
		shared.RespondError(w, http.StatusBadRequest, "revert_failed", "could not revert the bypass")
		return
	}
	shared.RespondJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/auth",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
