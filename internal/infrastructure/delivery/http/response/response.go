// Package response writes the JSON envelope of the control API.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"mediafetch/internal/errs"
)

// Response is the envelope of every control API reply.
type Response struct {
	Message string    `json:"message"`
	Error   string    `json:"error"`
	Kind    errs.Kind `json:"kind,omitempty"`
	Data    any       `json:"data"`
}

// WriteJSON writes the envelope with the given status.
func WriteJSON(w http.ResponseWriter, status int, message string, data any, err error) {
	r := Response{
		Message: message,
		Data:    data,
	}

	if err != nil {
		r.Error = errs.Message(err)
		if classified, ok := errs.AsError(err); ok {
			r.Kind = classified.Kind
		}
	}

	bytes, err := json.Marshal(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(bytes)
}

func OK(w http.ResponseWriter, message string, res any, err error) {
	WriteJSON(w, http.StatusOK, message, res, err)
}

func Accepted(w http.ResponseWriter, message string, res any, err error) {
	WriteJSON(w, http.StatusAccepted, message, res, err)
}

func BadRequest(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusBadRequest, message, nil, err)
}

func UnprocessableEntity(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, http.StatusUnprocessableEntity, message, nil, err)
}

func InternalServerError(w http.ResponseWriter, message string, res any, err error) {
	WriteJSON(w, http.StatusInternalServerError, message, res, err)
}

// Error writes err with the status StatusOf picks for it.
func Error(w http.ResponseWriter, message string, err error) {
	WriteJSON(w, StatusOf(err), message, nil, err)
}

// StatusOf maps an error to an HTTP status.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errs.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, errs.ErrSessionNotFound), errors.Is(err, errs.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrFileMissing):
		return http.StatusGone
	case errors.Is(err, errs.ErrControllerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrRecordIDEmpty), errors.Is(err, errs.ErrPlayerCommand),
		errors.Is(err, errs.ErrInvalidHotkey):
		return http.StatusUnprocessableEntity
	}

	classified, ok := errs.AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch classified.Kind {
	case errs.KindInvalidRequest:
		return http.StatusUnprocessableEntity
	case errs.KindUnavailableSource:
		return http.StatusNotFound
	case errs.KindAgeRestricted, errs.KindGeoRestricted, errs.KindRequiresAuthentication:
		return http.StatusForbidden
	case errs.KindTimedOut:
		return http.StatusGatewayTimeout
	case errs.KindCancelled:
		return http.StatusConflict
	case errs.KindDependencyMissing:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
