package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Rizvi-Faiz/sso-system/token"
	"github.com/Rizvi-Faiz/sso-system/utils"
)

// AccessValidator defines the interface for validating access tokens
type AccessValidator interface {
	// ValidateAccess validates an access token and returns its identity
	ValidateAccess(accessToken string) (*token.Identity, error)
}

// AuthMiddleware guards protected endpoints behind a bearer access token.
// It is a pure filter: it never mutates session state.
type AuthMiddleware struct {
	validator AccessValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator AccessValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer access token.
// On success the identity is attached to the request context; any failure
// short-circuits the request with 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		accessToken := extractBearerToken(r)
		if accessToken == "" {
			m.logger.Warn("missing bearer token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Access token is required")
			return
		}

		ident, err := m.validator.ValidateAccess(accessToken)
		if err != nil {
			m.logger.Warn("access token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx = WithIdentity(ctx, ident)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("subject_id", ident.SubjectID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Check if it starts with "Bearer "
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
