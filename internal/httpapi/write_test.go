package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/John-Robertt/clash-override/internal/model"
)

func appErrorCount(stage, code string) uint64 {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	return metrics.appErrors[errKey{Stage: stage, Code: code}]
}

func TestWriteError_EnvelopeAndHeaders(t *testing.T) {
	metrics = newMetricsStore()

	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusUnprocessableEntity, model.AppError{
		Code:    "SUB_BASE64_DECODE_ERROR",
		Message: "订阅内容无法解码",
		Stage:   "parse_sub",
		URL:     "https://a.example/sub",
		Line:    3,
		Snippet: "not a subscription!",
	})

	if got, want := rr.Code, http.StatusUnprocessableEntity; got != want {
		t.Fatalf("status=%d, want=%d", got, want)
	}
	for k, want := range map[string]string{
		"Content-Type":  "application/json; charset=utf-8",
		"Cache-Control": "no-store",
	} {
		if got := rr.Header().Get(k); got != want {
			t.Fatalf("%s=%q, want=%q", k, got, want)
		}
	}

	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nbody=%q", err, rr.Body.String())
	}
	e := resp.Error
	if e.Code != "SUB_BASE64_DECODE_ERROR" || e.Stage != "parse_sub" || e.Line != 3 || e.URL != "https://a.example/sub" {
		t.Fatalf("error=%+v", e)
	}
	if e.Hint != "" {
		t.Fatalf("hint=%q, want empty", e.Hint)
	}
}

func TestWriteError_CountsAppError(t *testing.T) {
	metrics = newMetricsStore()

	for i := 0; i < 2; i++ {
		WriteError(httptest.NewRecorder(), http.StatusBadGateway, model.AppError{Code: "FETCH_FAILED", Stage: "fetch_sub"})
	}
	WriteError(httptest.NewRecorder(), http.StatusBadRequest, model.AppError{Code: "INVALID_ARGUMENT"})

	if got := appErrorCount("fetch_sub", "FETCH_FAILED"); got != 2 {
		t.Fatalf("fetch_sub/FETCH_FAILED=%d, want=2", got)
	}
	if got := appErrorCount("(unknown)", "INVALID_ARGUMENT"); got != 1 {
		t.Fatalf("(unknown)/INVALID_ARGUMENT=%d, want=1", got)
	}
	if got := appErrorCount("parse_sub", "FETCH_FAILED"); got != 0 {
		t.Fatalf("parse_sub/FETCH_FAILED=%d, want=0", got)
	}
}

func TestWriteText(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteText(rr, http.StatusOK, "ok\n")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if got, want := rr.Header().Get("Content-Type"), "text/plain; charset=utf-8"; got != want {
		t.Fatalf("Content-Type=%q, want=%q", got, want)
	}
	if got := rr.Header().Get("Cache-Control"); got != "" {
		t.Fatalf("Cache-Control=%q, want unset", got)
	}
}
