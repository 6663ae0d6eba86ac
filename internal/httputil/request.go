package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/natours/natours-backend/internal/apperr"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads the request body into dst. Malformed, oversized or trailing
// input is a validation error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Validation("Request body must not be empty")
		case errors.As(err, &maxErr):
			return apperr.Validation("Request body is too large")
		default:
			return apperr.Wrap(apperr.ErrValidation, "Invalid JSON body", err)
		}
	}
	if dec.More() {
		return apperr.Validation("Request body must contain a single JSON object")
	}
	return nil
}
