package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const unmatchedRoute = "unmatched"

// withMetrics records request count, latency and in-flight requests. The
// path label is the chi route pattern so ids never reach label values.
func (h *Handler) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := h.metrics.TrackInFlight()
		defer done()

		start := time.Now()
		mw := newResponseWriter(w)

		next.ServeHTTP(mw, r)

		path := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, path, strconv.Itoa(mw.Status()), time.Since(start).Seconds())
	})
}
