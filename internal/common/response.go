package common

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrorBody represents a consistent error payload returned by the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

var encodeFailure = []byte(`{"error":{"code":"INTERNAL","message":"response encoding failed"}}` + "\n")

// Respond writes v as JSON and logs encoding failures with the logger carried
// by r's context, as installed by the request logging middleware.
func Respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	logger := &log.Logger
	if r != nil {
		if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
			logger = l
		}
	}
	write(w, status, v, logger)
}

// JSON writes v as JSON. Encoding failures go to the process logger.
func JSON(w http.ResponseWriter, status int, v any) {
	write(w, status, v, &log.Logger)
}

// write encodes before touching the response so a failed encode still yields
// a well-formed 500.
func write(w http.ResponseWriter, status int, v any, logger *zerolog.Logger) {
	body, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		logger.Error().Err(err).Int("status", status).Msg("encode response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(encodeFailure)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
