package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFrom_AttachesCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	ctx := WithRunID(context.Background(), "run-fixed")
	ctx = WithTest(ctx, "TestUserCanLogin")
	ctx = WithUser(ctx, "standard_user")
	From(ctx).Info("logging_in")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		"run_id": "run-fixed",
		"test":   "TestUserCanLogin",
		"user":   "standard_user",
		"msg":    "logging_in",
	} {
		if got, _ := line[key].(string); got != want {
			t.Fatalf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestWithRunID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRunID(context.Background(), "  ")
	id := RunIDFromContext(ctx)
	if !strings.HasPrefix(id, "run-") || len(id) <= len("run-") {
		t.Fatalf("expected generated run id, got %q", id)
	}
	if got := RunIDFromContext(context.Background()); got != "unknown" {
		t.Fatalf("expected unknown run id on bare context, got %q", got)
	}
}

func TestMiddleware_EchoesRequestID(t *testing.T) {
	var seen string
	h := Middleware("test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFromContext(r.Context()).RequestID
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-abc" {
		t.Fatalf("context request id = %q, want req-abc", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "req-abc" {
		t.Fatalf("response header = %q, want req-abc", got)
	}
}

func TestMiddleware_LogsStatusWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	h := Middleware("storefront")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

	id := rec.Header().Get(RequestIDHeader)
	if !strings.HasPrefix(id, "req-") {
		t.Fatalf("generated request id = %q", id)
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("access line is not JSON: %v (%q)", err, buf.String())
	}
	if line["msg"] != "http_access" || line["path"] != "/login" || line["request_id"] != id {
		t.Fatalf("unexpected access line: %v", line)
	}
	if status, _ := line["status"].(float64); status != http.StatusTeapot {
		t.Fatalf("status = %v, want %d", line["status"], http.StatusTeapot)
	}
}
