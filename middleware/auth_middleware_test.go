package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Rizvi-Faiz/sso-system/token"
)

// MockAccessValidator is a mock implementation of AccessValidator
type MockAccessValidator struct {
	mock.Mock
}

func (m *MockAccessValidator) ValidateAccess(accessToken string) (*token.Identity, error) {
	args := m.Called(accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.Identity), args.Error(1)
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid bearer token allows request", func(t *testing.T) {
		mockValidator := new(MockAccessValidator)
		mw := NewAuthMiddleware(mockValidator, logger)

		ident := &token.Identity{SubjectID: "u1", Email: "a@x.com"}
		mockValidator.On("ValidateAccess", "valid-token").Return(ident, nil)

		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			extracted := GetIdentityFromContext(r.Context())
			assert.NotNil(t, extracted)
			assert.Equal(t, "u1", extracted.SubjectID)
			assert.Equal(t, "a@x.com", extracted.Email)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("missing authorization header returns 401", func(t *testing.T) {
		mockValidator := new(MockAccessValidator)
		mw := NewAuthMiddleware(mockValidator, logger)

		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockValidator.AssertNotCalled(t, "ValidateAccess")
	})

	t.Run("malformed authorization header returns 401", func(t *testing.T) {
		mockValidator := new(MockAccessValidator)
		mw := NewAuthMiddleware(mockValidator, logger)

		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Token abc123")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockValidator.AssertNotCalled(t, "ValidateAccess")
	})

	t.Run("invalid token returns 401", func(t *testing.T) {
		mockValidator := new(MockAccessValidator)
		mw := NewAuthMiddleware(mockValidator, logger)

		mockValidator.On("ValidateAccess", "bad-token").Return(nil, token.ErrInvalidCredential)

		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockValidator.AssertExpectations(t)
	})

	t.Run("bearer scheme is case insensitive", func(t *testing.T) {
		mockValidator := new(MockAccessValidator)
		mw := NewAuthMiddleware(mockValidator, logger)

		ident := &token.Identity{SubjectID: "u1", Email: "a@x.com"}
		mockValidator.On("ValidateAccess", "valid-token").Return(ident, nil)

		handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
