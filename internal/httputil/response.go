// Package httputil holds the JSON envelope helpers shared by every handler.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/natours/natours-backend/internal/apperr"
	"github.com/sirupsen/logrus"
)

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"

	genericMessage = "Something went very wrong!"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess wraps data in the success envelope.
func WriteSuccess(w http.ResponseWriter, status int, data any) error {
	return WriteJSON(w, status, map[string]any{
		"status": StatusSuccess,
		"data":   data,
	})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError maps err onto the error taxonomy. Operational errors go to the
// client verbatim; anything else is logged and replaced by a generic message.
func WriteError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := apperr.Status(err)
	msg, ok := apperr.Message(err)
	if !ok || status >= http.StatusInternalServerError {
		if log != nil {
			log.WithError(err).Error("request failed")
		}
	}
	if !ok {
		msg = genericMessage
	}
	WriteErrorMessage(w, status, msg)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	body := ErrorResponse{Status: StatusFail, Message: message}
	if status >= http.StatusInternalServerError {
		body.Status = StatusError
	}
	_ = WriteJSON(w, status, body)
}
