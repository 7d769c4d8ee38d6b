package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/validation"
)

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(name string, body []byte) error {
	return m.Called(name, string(body)).Error(0)
}

func echoBody(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	_, _ = w.Write(b)
}

func TestValidateBody(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "passes body through", wantStatus: http.StatusOK, wantBody: `{"role":"ADMIN"}`},
		{name: "schema violation", err: &validation.Error{Path: "$.role", Message: "bad"}, wantStatus: http.StatusBadRequest, wantBody: "validation failed at '$.role': bad"},
		{name: "validator failure", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantBody: "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockValidator{}
			v.On("Validate", "user_role", `{"role":"ADMIN"}`).Return(tt.err)

			h := validateBody(v, "user_role", zerolog.Nop())(http.HandlerFunc(echoBody))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"role":"ADMIN"}`)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			v.AssertExpectations(t)
		})
	}
}

func TestValidateBody_TooLarge(t *testing.T) {
	v := &mockValidator{}
	h := validateBody(v, "login", zerolog.Nop())(http.HandlerFunc(echoBody))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", maxBodyBytes+1))))

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	v.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}
