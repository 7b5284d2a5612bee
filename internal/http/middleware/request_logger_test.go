package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

func newBufferedLogger(buf *bytes.Buffer) *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewJSONHandler(buf, nil))}
}

func TestRequestLoggerRecordsOutcome(t *testing.T) {
	var buf bytes.Buffer
	mw := RequestLogger(newBufferedLogger(&buf))

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/twilio/audio/missing.mp3", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("middleware altered status: got %d", rr.Code)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["msg"] != "http request" {
		t.Errorf("unexpected message %v", line["msg"])
	}
	if line["status"] != float64(http.StatusNotFound) {
		t.Errorf("unexpected status %v", line["status"])
	}
	if line["path"] != "/twilio/audio/missing.mp3" {
		t.Errorf("unexpected path %v", line["path"])
	}
	if line["request_id"] != "req-123" {
		t.Errorf("expected inbound request id to be reused, got %v", line["request_id"])
	}
	if _, ok := line["duration_ms"]; !ok {
		t.Error("expected duration_ms field")
	}
}

func TestRequestLoggerDefaultsStatusOK(t *testing.T) {
	var buf bytes.Buffer
	mw := RequestLogger(newBufferedLogger(&buf))

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["status"] != float64(http.StatusOK) {
		t.Errorf("unexpected status %v", line["status"])
	}
	if id, _ := line["request_id"].(string); id == "" {
		t.Error("expected a generated request id")
	}
}
