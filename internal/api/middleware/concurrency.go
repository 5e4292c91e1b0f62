package middleware

import (
	"net/http"

	"golang.org/x/sync/semaphore"

	"github.com/wardenhq/warden/internal/api/helpers"
	"github.com/wardenhq/warden/internal/apperr"
)

// ConcurrencyLimit caps in-flight requests at the worker's share of the
// connection budget, so a traffic spike queues at the edge instead of
// exhausting the pools. A limit of zero disables the cap.
func ConcurrencyLimit(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	sem := semaphore.NewWeighted(limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sem.Acquire(r.Context(), 1); err != nil {
				helpers.RespondError(w, r, apperr.Unavailable("Server is overloaded").WithCause(err))
				return
			}
			defer sem.Release(1)
			next.ServeHTTP(w, r)
		})
	}
}
