package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wardenhq/warden/internal/apperr"
)

// Respond writes a JSON response with the given status code. A nil payload
// writes the status line only.
func Respond(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("response_encode_failed", "error", err)
	}
}

// RespondError normalizes err into the application error envelope and writes
// it with the kind's status code. The cause chain goes to the log, never to
// the client.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)
	if ae.HTTPStatus() >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"status", ae.HTTPStatus(),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	Respond(w, ae.HTTPStatus(), ae.Payload())
}
