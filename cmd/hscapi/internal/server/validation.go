package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/horizonsante/hsc/cmd/hscapi/internal/services/validation"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type bodyValidator interface {
	Validate(name string, body []byte) error
}

// validateBody rejects requests whose JSON body does not match the named
// schema, then hands the buffered body to next.
func validateBody(v bodyValidator, schema string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				writeError(w, http.StatusBadRequest, ErrInvalidBody.Error())
				return
			}

			if err := v.Validate(schema, body); err != nil {
				var ve *validation.Error
				if errors.As(err, &ve) {
					writeError(w, http.StatusBadRequest, ve.Error())
					return
				}
				writeServiceError(w, logger, err)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
