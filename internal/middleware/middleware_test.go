package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/pkg/uid"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, uid.IsValid(seen))
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	client := uid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", client)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, client, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "<script>", seen)
	assert.True(t, uid.IsValid(seen))
}

func TestRecovery(t *testing.T) {
	logger.SetOutput(io.Discard)
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestLoggingPreservesFlusher(t *testing.T) {
	logger.SetOutput(io.Discard)
	var flushable bool
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.True(t, flushable)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
