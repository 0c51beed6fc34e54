package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newBufferedHandler(t *testing.T, buf *bytes.Buffer) *Handler {
	h, _ := newMockedHandler(t)
	h.logger = &logger.Logger{Logger: zerolog.New(buf)}
	return h
}

func TestWithTraceID(t *testing.T) {
	const clientID = "0195a3e4-7b8c-7def-8123-456789abcdef"

	tests := []struct {
		name      string
		header    string
		wantReuse bool
	}{
		{name: "no header"},
		{name: "client uuid", header: clientID, wantReuse: true},
		{name: "not a uuid", header: "abc; injected=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newBufferedHandler(t, &buf)

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.FromRequest(r).Info().Msg("inside")
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(traceIDHeader, tt.header)
			}
			rr := httptest.NewRecorder()
			h.withTraceID(next).ServeHTTP(rr, req)

			traceID := rr.Header().Get(traceIDHeader)
			assert.True(t, utils.IsUUID(traceID))
			if tt.wantReuse {
				assert.Equal(t, clientID, traceID)
			} else {
				assert.NotEqual(t, tt.header, traceID)
			}
			assert.Contains(t, buf.String(), `"trace_id":"`+traceID+`"`)
		})
	}
}

func TestWithTraceID_UniquePerRequest(t *testing.T) {
	h := newBufferedHandler(t, &bytes.Buffer{})
	handler := h.withTraceID(okHandler())

	seen := make(map[string]struct{})
	for range 10 {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		seen[rr.Header().Get(traceIDHeader)] = struct{}{}
	}
	assert.Len(t, seen, 10)
}
