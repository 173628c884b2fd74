package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// AudienceFunc names the preview audience a request belongs to, such as
// "crawler" or "human".
type AudienceFunc func(*http.Request) string

// Middleware records request count and latency per chi route pattern,
// split by the audience audienceOf assigns. A nil audienceOf labels every
// request "unknown".
func Middleware(audienceOf AudienceFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			audience := unknownLabel
			if audienceOf != nil {
				if a := audienceOf(r); a != "" {
					audience = a
				}
			}

			ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			ObserveHTTPRequest(r.Method, routePattern(r), audience, ww.status, time.Since(start))
		})
	}
}

// routePattern reads the matched pattern after routing so /api/profile/{identifier}
// stays one series regardless of the identifier.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unknownLabel
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
