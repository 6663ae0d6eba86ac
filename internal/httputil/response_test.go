package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/natours/natours-backend/internal/apperr"
	"github.com/natours/natours-backend/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   ErrorResponse
	}{
		{
			name:       "validation",
			err:        apperr.Validation("Please provide email and password"),
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrorResponse{Status: StatusFail, Message: "Please provide email and password"},
		},
		{
			name:       "forbidden",
			err:        apperr.Forbidden("You do not have permission to perform this action"),
			wantStatus: http.StatusForbidden,
			wantBody:   ErrorResponse{Status: StatusFail, Message: "You do not have permission to perform this action"},
		},
		{
			name:       "delivery",
			err:        apperr.Wrap(apperr.ErrDelivery, "There was an error sending the email. Try again later!", errors.New("smtp down")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   ErrorResponse{Status: StatusError, Message: "There was an error sending the email. Try again later!"},
		},
		{
			name:       "unknown error hides details",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   ErrorResponse{Status: StatusError, Message: genericMessage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, logging.Discard(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantBody, decodeError(t, rec))
		})
	}
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(rec, http.StatusOK, map[string]int{"results": 2}))

	assert.JSONEq(t, `{"status":"success","data":{"results":2}}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"email":"a@x.com"}`, false},
		{"empty", ``, true},
		{"malformed", `{"email":`, true},
		{"two objects", `{"email":"a"}{"email":"b"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), req, &p)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a@x.com", p.Email)
		})
	}
}
