package router

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shandysiswandi/gomfa/internal/pkg/session"
)

// middlewareAuthentication resolves the session cookie (or a Bearer token).
// Public endpoints run with or without a session; the rest require one.
func middlewareAuthentication(sessions session.Manager, cookie session.Cookie, publicEndpoints map[string]map[string]struct{}) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, public := publicEndpoints[r.Method][matchedRoutePath(r)]

			token := cookie.Read(r)
			if token == "" {
				if p := strings.Fields(r.Header.Get("Authorization")); len(p) == 2 && strings.EqualFold(p[0], "Bearer") {
					token = p[1]
				}
			}

			if token == "" || sessions == nil {
				if public {
					next.ServeHTTP(w, r)
					return
				}
				writeJSON(w, errorResponse{Message: "Authentication required", Error: map[string]string{"reason": "UNAUTHENTICATED"}}, http.StatusUnauthorized)
				return
			}

			sess, err := sessions.Validate(r.Context(), token)
			if err != nil {
				rejected := errors.Is(err, session.ErrInvalid) || errors.Is(err, session.ErrExpired)
				if !rejected {
					slog.ErrorContext(r.Context(), "failed to validate session", "error", err)
				}
				if public {
					next.ServeHTTP(w, r)
					return
				}

				// The store is unreachable; the cookie may still be good.
				if !rejected {
					writeJSON(w, errorResponse{Message: "Session store unavailable", Error: map[string]string{"reason": "UNAVAILABLE"}}, http.StatusServiceUnavailable)
					return
				}

				resp := errorResponse{Message: "Invalid session", Error: map[string]string{"reason": "UNAUTHENTICATED"}}
				if errors.Is(err, session.ErrExpired) {
					resp = errorResponse{Message: "Session expired", Error: map[string]string{"reason": "SESSION_EXPIRED"}}
				}
				http.SetCookie(w, cookie.Clear())
				writeJSON(w, resp, http.StatusUnauthorized)
				return
			}

			ctx := session.SetToken(session.SetAuth(r.Context(), sess), token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
