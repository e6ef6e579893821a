package httpapi

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestIndex(t *testing.T) {
	rr := doGET(t, newTestMux(Options{}), "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Fatalf("Content-Type=%q", got)
	}
	if !strings.Contains(rr.Body.String(), "GET  /sub?sub=<url>") {
		t.Fatalf("usage text missing /sub, got:\n%s", rr.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	rr := doGET(t, newTestMux(Options{}), "/healthz")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestRouting_UnknownPathAndMethod(t *testing.T) {
	mux := newTestMux(Options{})

	if rr := doGET(t, mux, "/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("GET /nope status=%d, want=404", rr.Code)
	}
	if rr := doGET(t, mux, "/api/convert"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/convert status=%d, want=405", rr.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/sub", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /sub status=%d, want=405", rr.Code)
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	mux := newTestMux(Options{RateLimit: rate.Every(time.Hour), RateBurst: 2})

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/sub", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send("10.0.0.1:1000"); rr.Code != http.StatusBadRequest {
			t.Fatalf("request %d status=%d, want=400 (missing sub)", i, rr.Code)
		}
	}
	rr := send("10.0.0.1:2000")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want=429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if e := decodeError(t, rr); e.Code != "RATE_LIMITED" {
		t.Fatalf("code=%q, want=RATE_LIMITED", e.Code)
	}

	if rr := send("10.0.0.2:1000"); rr.Code != http.StatusBadRequest {
		t.Fatalf("other client status=%d, want=400", rr.Code)
	}
	// Health checks are never limited.
	if rr := doGET(t, mux, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	mux := newTestMux(Options{RateLimit: rate.Inf})
	for i := 0; i < 30; i++ {
		if rr := doGET(t, mux, "/sub"); rr.Code != http.StatusBadRequest {
			t.Fatalf("request %d status=%d, want=400", i, rr.Code)
		}
	}
}

func TestClientLimiter_SweepsIdleClients(t *testing.T) {
	c := newClientLimiter(rate.Every(time.Hour), 1)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if !c.allow("a", t0) {
		t.Fatalf("first request must pass")
	}
	if c.allow("a", t0.Add(time.Second)) {
		t.Fatalf("second request within the window must be limited")
	}
	c.allow("b", t0.Add(limiterIdleTTL+limiterSweepEach+time.Minute))
	c.mu.Lock()
	_, kept := c.clients["a"]
	n := len(c.clients)
	c.mu.Unlock()
	if kept || n != 1 {
		t.Fatalf("idle client not swept: kept=%v clients=%d", kept, n)
	}
}

func TestHandler_GzipsConfig(t *testing.T) {
	up := newUpstream(t)
	defer up.Close()

	h := NewHandlerWithOptions(Options{Logger: quietLogger(), Now: func() time.Time { return testNow }})
	req := httptest.NewRequest(http.MethodGet, subPath(url.Values{}, up.URL+"/clash"), nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding=%q, want=gzip", got)
	}
	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if !strings.HasPrefix(string(body), "proxies:\n") {
		t.Fatalf("unexpected body prefix: %q", string(body[:min(len(body), 40)]))
	}
}
