package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/auth"
	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/iam"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, token string) (*auth.AuthenticatedPrincipal, error) {
	args := m.Called(ctx, token)
	p, _ := args.Get(0).(*auth.AuthenticatedPrincipal)
	return p, args.Error(1)
}

// principalEcho writes the resolved user id, or "anonymous".
var principalEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if !p.Authenticated() {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(p.UserID))
})

func TestAuthn(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		setup      func(m *mockResolver)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no header passes through",
			wantStatus: http.StatusOK,
			wantBody:   "anonymous",
		},
		{
			name:   "valid token",
			header: "Bearer good",
			setup: func(m *mockResolver) {
				m.On("Resolve", mock.Anything, "good").
					Return(&auth.AuthenticatedPrincipal{UserID: "u-1", Role: auth.RoleMedecin}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   "u-1",
		},
		{
			name:       "wrong scheme",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
			wantBody:   msgAuthenticationRequired,
		},
		{
			name:       "empty bearer",
			header:     "Bearer   ",
			wantStatus: http.StatusUnauthorized,
			wantBody:   msgAuthenticationRequired,
		},
		{
			name:   "revoked token",
			header: "bearer revoked",
			setup: func(m *mockResolver) {
				m.On("Resolve", mock.Anything, "revoked").Return(nil, auth.ErrTokenRevoked)
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   msgAuthenticationRequired,
		},
		{
			name:   "inactive account",
			header: "Bearer inactive",
			setup: func(m *mockResolver) {
				m.On("Resolve", mock.Anything, "inactive").Return(nil, iam.ErrInactiveUser)
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   msgAuthenticationRequired,
		},
		{
			name:   "store failure",
			header: "Bearer boom",
			setup: func(m *mockResolver) {
				m.On("Resolve", mock.Anything, "boom").Return(nil, errors.New("connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "authentication error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockResolver{}
			if tt.setup != nil {
				tt.setup(resolver)
			}
			handler := NewAuthnMiddleware(resolver, zerolog.Nop())(principalEcho)

			req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
			resolver.AssertExpectations(t)
		})
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := bearerToken("Bearer abc.def")
	require.True(t, ok)
	assert.Equal(t, "abc.def", token)

	_, ok = bearerToken("Bearer")
	assert.False(t, ok)
}
