package router

import (
	"net/http"
	"regexp"

	"github.com/shandysiswandi/gomfa/internal/pkg/instrument"
	"github.com/shandysiswandi/gomfa/internal/pkg/uid"
)

const (
	// HeaderCorrelationID carries the id that ties logs, spans and broker messages together.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is accepted from proxies that only set this one.
	HeaderRequestID = "X-Request-ID"
)

// reCorrelationID keeps client supplied ids safe to log and to forward as a message header.
var reCorrelationID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

func middlewareCorrelationID(ids uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := r.Header.Get(HeaderCorrelationID)
			if !reCorrelationID.MatchString(cid) {
				cid = r.Header.Get(HeaderRequestID)
			}
			if !reCorrelationID.MatchString(cid) {
				cid = ids.Generate()
			}

			w.Header().Set(HeaderCorrelationID, cid)
			next.ServeHTTP(w, r.WithContext(instrument.SetCorrelationID(r.Context(), cid)))
		})
	}
}
