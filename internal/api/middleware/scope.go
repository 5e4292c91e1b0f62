package middleware

import (
	"net/http"

	"github.com/wardenhq/warden/internal/di"
)

// DependencyScope opens one container scope per request; scoped resources
// such as the database gateways are released when the request finishes.
func DependencyScope(container *di.Container) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := container.NewScope()
			defer scope.Close()

			next.ServeHTTP(w, r.WithContext(di.IntoContext(r.Context(), scope)))
		})
	}
}
