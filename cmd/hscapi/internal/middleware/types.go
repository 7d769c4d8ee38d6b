package middleware

import (
	"encoding/json"
	"net/http"
)

// Response bodies for guard failures.
const (
	msgAuthenticationRequired = "authentication required"
	msgInsufficientPerms      = "insufficient permissions"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

// unauthenticated answers 401 with a Bearer challenge.
func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="hscapi"`)
	writeError(w, http.StatusUnauthorized, msgAuthenticationRequired)
}

func forbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, msgInsufficientPerms)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
