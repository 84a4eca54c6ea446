package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestRateLimitPerClient(t *testing.T) {
	h := RateLimit(rate.Limit(0.001), 2)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	hit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := hit("198.51.100.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
	}
	rec := hit("198.51.100.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Message == "" {
		t.Fatalf("429 body: %+v %v", body, err)
	}

	if rec := hit("198.51.100.2"); rec.Code != http.StatusOK {
		t.Fatalf("other client throttled: %d", rec.Code)
	}
}
