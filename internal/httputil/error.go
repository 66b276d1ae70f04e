package httputil

import (
	"net/http"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/logger"
)

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// StatusFor maps an error code to the HTTP status returned to clients.
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeState, apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeProgression:
		// the result itself was stored, only the bracket update failed
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a JSON error body. Internal errors are logged and hidden from the client.
func Error(w http.ResponseWriter, log *logger.Logger, err error) {
	code := apperr.CodeOf(err)
	status := StatusFor(code)

	if status >= http.StatusInternalServerError {
		log.Error("internal server error", "error", err)
		WriteJSON(w, status, errorBody{Code: apperr.CodeInternal, Message: "Internal Server Error"})
		return
	}

	log.Warn("request error", "code", code, "error", err)
	WriteJSON(w, status, errorBody{Code: code, Message: apperr.MessageOf(err)})
}

func BadRequest(w http.ResponseWriter, log *logger.Logger, msg string, err error) {
	if err != nil {
		log.Warn("bad request", "message", msg, "error", err)
	} else {
		log.Warn("bad request", "message", msg)
	}
	WriteJSON(w, http.StatusBadRequest, errorBody{Code: apperr.CodeValidation, Message: msg})
}
