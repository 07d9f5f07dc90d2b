package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rizvi-Faiz/sso-system/audit"
	"github.com/Rizvi-Faiz/sso-system/config"
	"github.com/Rizvi-Faiz/sso-system/identity"
	"github.com/Rizvi-Faiz/sso-system/middleware"
	"github.com/Rizvi-Faiz/sso-system/session"
	"github.com/Rizvi-Faiz/sso-system/token"
	"github.com/Rizvi-Faiz/sso-system/utils"
)

// RefreshCookieName is the cookie carrying the refresh token. HTTP-only and
// scoped to the auth endpoints so it is never exposed to scripts.
const RefreshCookieName = "refreshToken"

// refreshCookiePath limits where the browser sends the refresh token.
const refreshCookiePath = "/api/auth"

// TokenBroker is the slice of the token service the gateway depends on.
type TokenBroker interface {
	Issue(ctx context.Context, subjectID, email string) (*token.Pair, error)
	Rotate(ctx context.Context, refreshToken string) (*token.Pair, error)
	Revoke(ctx context.Context, subjectID string) error
	Identify(credential string) (*token.Identity, error)
}

// SessionReader reads server-side session state for the check endpoint.
type SessionReader interface {
	Get(ctx context.Context, subjectID string) (*session.Record, error)
}

// AuthHandler is the network-facing auth boundary: it translates identity
// assertions, refresh, check, and logout requests into token service and
// session store calls.
type AuthHandler struct {
	cfg      *config.Config
	verifier identity.Verifier
	tokens   TokenBroker
	sessions SessionReader
	recorder audit.Recorder
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	cfg *config.Config,
	verifier identity.Verifier,
	tokens TokenBroker,
	sessions SessionReader,
	recorder audit.Recorder,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		cfg:      cfg,
		verifier: verifier,
		tokens:   tokens,
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
	}
}

// verifyTokenRequest is the POST /api/auth/verify-token body
type verifyTokenRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// userPayload is the client-facing view of an authenticated principal
type userPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// authResponse is returned by verify-token and refresh
type authResponse struct {
	AccessToken string      `json:"accessToken"`
	User        userPayload `json:"user"`
}

// checkResponse is returned by the check endpoint
type checkResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *userPayload `json:"user,omitempty"`
}

// HandleVerifyToken handles POST /api/auth/verify-token.
// It verifies the provider-issued ID token, issues an access/refresh pair,
// and sets the refresh cookie.
func (h *AuthHandler) HandleVerifyToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req verifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "ID token is required", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		_ = utils.WriteBadRequest(w, "ID token is required", nil)
		return
	}

	subject, err := h.verifier.Check(ctx, req.IDToken)
	if err != nil {
		if errors.Is(err, identity.ErrUnavailable) {
			h.logger.Error("identity provider unreachable",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteServiceUnavailable(w, "Identity provider unavailable")
			return
		}
		h.logger.Warn("identity assertion rejected",
			zap.String("request_id", requestID))
		_ = utils.WriteUnauthorized(w, "Invalid or expired token")
		return
	}

	pair, err := h.tokens.Issue(ctx, subject.ID, subject.Email)
	if err != nil {
		h.logger.Error("failed to issue credential pair",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to establish session")
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	h.record(r, audit.ActionLogin, subject.ID, subject.Email)

	h.logger.Info("login succeeded",
		zap.String("request_id", requestID),
		zap.String("subject_id", subject.ID))

	_ = utils.WriteJSON(w, http.StatusOK, authResponse{
		AccessToken: pair.AccessToken,
		User:        userPayload{UserID: subject.ID, Email: subject.Email},
	})
}

// HandleRefresh handles POST /api/auth/refresh.
// It rotates the refresh token from the cookie into a fresh pair. On any
// verification failure the caller must restart login; the handler never
// retries with a different credential.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		_ = utils.WriteUnauthorized(w, "Refresh token is required")
		return
	}

	pair, err := h.tokens.Rotate(ctx, cookie.Value)
	if err != nil {
		if errors.Is(err, session.ErrStoreUnavailable) {
			h.logger.Error("session store unavailable during refresh",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, "Failed to refresh token")
			return
		}
		h.logger.Warn("refresh token rejected",
			zap.String("request_id", requestID))
		_ = utils.WriteUnauthorized(w, "Invalid refresh token")
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	h.record(r, audit.ActionRefresh, pair.Identity.SubjectID, pair.Identity.Email)

	_ = utils.WriteJSON(w, http.StatusOK, authResponse{
		AccessToken: pair.AccessToken,
		User:        userPayload{UserID: pair.Identity.SubjectID, Email: pair.Identity.Email},
	})
}

// HandleLogout handles POST /api/auth/logout.
// The cookie is cleared even when session deletion fails, so the client's
// view is never left inconsistent.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var ident *token.Identity
	if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		ident, _ = h.tokens.Identify(cookie.Value)
	}

	var revokeErr error
	if ident != nil {
		revokeErr = h.tokens.Revoke(ctx, ident.SubjectID)
	}

	h.clearRefreshCookie(w)

	if revokeErr != nil {
		h.logger.Error("failed to revoke session",
			zap.String("request_id", requestID),
			zap.Error(revokeErr))
		_ = utils.WriteInternalServerError(w, "Logout failed")
		return
	}

	if ident != nil {
		h.record(r, audit.ActionLogout, ident.SubjectID, ident.Email)
	}

	_ = utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// HandleCheck handles GET /api/auth/check.
// It reports whether a server-side session exists for the subject behind the
// refresh cookie. No new tokens are minted.
func (h *AuthHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		_ = utils.WriteJSON(w, http.StatusUnauthorized, checkResponse{Authenticated: false})
		return
	}

	ident, err := h.tokens.Identify(cookie.Value)
	if err != nil {
		_ = utils.WriteJSON(w, http.StatusUnauthorized, checkResponse{Authenticated: false})
		return
	}

	rec, err := h.sessions.Get(ctx, ident.SubjectID)
	if err != nil {
		h.logger.Error("session store unavailable during check",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to check authentication")
		return
	}
	if rec == nil {
		// Logged out or session TTL elapsed
		_ = utils.WriteJSON(w, http.StatusUnauthorized, checkResponse{Authenticated: false})
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, checkResponse{
		Authenticated: true,
		User:          &userPayload{UserID: rec.SubjectID, Email: rec.Email},
	})
}

// HandleProtected handles GET /api/auth/protected, a bearer-guarded example
// endpoint. The identity is attached by AuthMiddleware.
func (h *AuthHandler) HandleProtected(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentityFromContext(r.Context())
	if ident == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "You accessed a protected route",
		"user":    userPayload{UserID: ident.SubjectID, Email: ident.Email},
	})
}

// HandleEvents handles GET /api/auth/events, returning the caller's recent
// auth events from the audit trail.
func (h *AuthHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident := middleware.GetIdentityFromContext(ctx)
	if ident == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	events, err := h.recorder.ListBySubject(ctx, ident.SubjectID, 20)
	if err != nil {
		h.logger.Error("failed to list auth events", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to list auth events")
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

// setRefreshCookie sets the refresh cookie with the configured lifetime.
func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		MaxAge:   int(h.cfg.Auth.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// clearRefreshCookie expires the refresh cookie immediately.
func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// record writes an audit event, best-effort.
func (h *AuthHandler) record(r *http.Request, action audit.Action, subjectID, email string) {
	event := &audit.Event{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Email:     email,
		Action:    action,
		RemoteIP:  remoteIP(r),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.recorder.Record(r.Context(), event); err != nil {
		h.logger.Warn("failed to record auth event",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func remoteIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from X-Forwarded-For
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
