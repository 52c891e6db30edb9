package router

import (
	"net/http"
	"strconv"

	"github.com/shandysiswandi/gomfa/internal/pkg/config"
)

// middlewareMaintenance answers 503 for the routes in app.maintenance.endpoints.
// "*" blocks every route except /health, so probes keep working.
func middlewareMaintenance(cfg config.Config) Middleware {
	blocked := map[string]struct{}{}
	retryAfter := 0
	if cfg != nil {
		for _, endpoint := range cfg.GetArray("app.maintenance.endpoints") {
			blocked[endpoint] = struct{}{}
		}
		retryAfter = cfg.GetInt("app.maintenance.retry_after_seconds")
	}
	_, all := blocked["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			_, hit := blocked[route]
			if !hit && (!all || route == "/health") {
				next.ServeHTTP(w, r)
				return
			}

			if retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			}
			writeJSON(w, errorResponse{
				Message: "service is under maintenance",
				Error:   map[string]string{"reason": "MAINTENANCE"},
			}, http.StatusServiceUnavailable)
		})
	}
}
