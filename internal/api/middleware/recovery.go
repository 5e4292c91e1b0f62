package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"

	"github.com/wardenhq/warden/internal/api/helpers"
	"github.com/wardenhq/warden/internal/apperr"
)

// PanicRecovery captures handler panics, logs them with a stack, reports
// them to Sentry when a hub is bound, and answers with a generic 500.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic_recovered",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"req_id", GetRequestID(r.Context()),
					"stack", string(debug.Stack()),
				)

				if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
					hub.Recover(rec)
				}

				helpers.Respond(w, http.StatusInternalServerError,
					apperr.Internal("Internal server error").Payload())
			}
		}()
		next.ServeHTTP(w, r)
	})
}
