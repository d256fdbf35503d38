package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestLogger_RecordsStatusAndPreservesFlusher(t *testing.T) {
	var flushable bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	Logger(zap.NewNop())(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Result().StatusCode != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusTeapot)
	}
	if !flushable {
		t.Fatalf("logging writer hides http.Flusher from streaming handlers")
	}
}
