package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/transcript"
)

type fakeDialer struct {
	sid        string
	err        error
	to         string
	from       string
	answerURL  string
	statusURL  string
	placeCalls int
}

func (f *fakeDialer) PlaceCall(ctx context.Context, toNumber, fromNumber, answerURL, statusCallbackURL string) (string, error) {
	f.placeCalls++
	f.to = toNumber
	f.from = fromNumber
	f.answerURL = answerURL
	f.statusURL = statusCallbackURL
	return f.sid, f.err
}

func TestHandlePlaceCall(t *testing.T) {
	dialer := &fakeDialer{sid: "CA_out_1"}
	recorder, err := transcript.NewRecorder(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	h := NewOutboundHandler(OutboundConfig{Dialer: dialer, Recorder: recorder, BaseURL: "https://bot.example.com"})

	req := httptest.NewRequest(http.MethodPost, "/outbound-call",
		strings.NewReader(`{"to_phone":"+15551234567"}`))
	rr := httptest.NewRecorder()
	h.HandlePlaceCall(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["call_sid"] != "CA_out_1" || resp["success"] != true {
		t.Fatalf("unexpected response %v", resp)
	}
	if dialer.to != "+15551234567" {
		t.Errorf("unexpected dial target %q", dialer.to)
	}
	if dialer.from != "" {
		t.Errorf("expected configured caller number fallback, got %q", dialer.from)
	}
	if dialer.answerURL != "https://bot.example.com/twilio/outbound-connect" {
		t.Errorf("unexpected answer URL %q", dialer.answerURL)
	}
	if dialer.statusURL != "https://bot.example.com/twilio/status" {
		t.Errorf("unexpected status URL %q", dialer.statusURL)
	}

	rec, err := recorder.Get("CA_out_1")
	if err != nil {
		t.Fatalf("expected transcript opened at placement: %v", err)
	}
	if rec.CustomerNumber != "+15551234567" {
		t.Errorf("transcript customer: got %q, want %q", rec.CustomerNumber, "+15551234567")
	}
	if rec.Status != transcript.StatusInProgress {
		t.Errorf("transcript status: got %q, want %q", rec.Status, transcript.StatusInProgress)
	}
}

func TestHandlePlaceCallThreadsFromNumber(t *testing.T) {
	dialer := &fakeDialer{sid: "CA_out_2"}
	h := NewOutboundHandler(OutboundConfig{Dialer: dialer, BaseURL: "https://bot.example.com"})

	req := httptest.NewRequest(http.MethodPost, "/outbound-call",
		strings.NewReader(`{"to_phone":"+15551234567","from_phone":"+19998887777"}`))
	rr := httptest.NewRecorder()
	h.HandlePlaceCall(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	if dialer.from != "+19998887777" {
		t.Fatalf("caller number not threaded through: got %q", dialer.from)
	}
	if dialer.to != "+15551234567" {
		t.Errorf("unexpected dial target %q", dialer.to)
	}
}

func TestHandlePlaceCallRejectsBadNumber(t *testing.T) {
	dialer := &fakeDialer{sid: "CA_out_1"}
	h := NewOutboundHandler(OutboundConfig{Dialer: dialer})

	for _, to := range []string{"", "5551234567", "+0123", "not-a-number"} {
		req := httptest.NewRequest(http.MethodPost, "/outbound-call",
			strings.NewReader(`{"to_phone":"`+to+`"}`))
		rr := httptest.NewRecorder()
		h.HandlePlaceCall(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("to=%q: expected 400, got %d", to, rr.Code)
		}
	}
	if dialer.placeCalls != 0 {
		t.Fatal("invalid numbers must never be dialed")
	}
}

func TestHandlePlaceCallRejectsBadFromNumber(t *testing.T) {
	dialer := &fakeDialer{sid: "CA_out_1"}
	h := NewOutboundHandler(OutboundConfig{Dialer: dialer})

	for _, from := range []string{"5551234567", "+0123", "not-a-number"} {
		req := httptest.NewRequest(http.MethodPost, "/outbound-call",
			strings.NewReader(`{"to_phone":"+15551234567","from_phone":"`+from+`"}`))
		rr := httptest.NewRecorder()
		h.HandlePlaceCall(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("from=%q: expected 400, got %d", from, rr.Code)
		}
	}
	if dialer.placeCalls != 0 {
		t.Fatal("invalid caller numbers must never be dialed")
	}
}

func TestHandlePlaceCallRejectsBadJSON(t *testing.T) {
	h := NewOutboundHandler(OutboundConfig{Dialer: &fakeDialer{}})
	req := httptest.NewRequest(http.MethodPost, "/outbound-call", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.HandlePlaceCall(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandlePlaceCallDialerFailure(t *testing.T) {
	recorder, err := transcript.NewRecorder(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	h := NewOutboundHandler(OutboundConfig{Dialer: &fakeDialer{err: errors.New("provider down")}, Recorder: recorder})
	req := httptest.NewRequest(http.MethodPost, "/outbound-call",
		strings.NewReader(`{"to_phone":"+15551234567"}`))
	rr := httptest.NewRecorder()
	h.HandlePlaceCall(rr, req)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if _, err := recorder.Get("CA_out_1"); err == nil {
		t.Fatal("no transcript should open when the dial is refused")
	}
}

func TestHandlePlaceCallWithoutDialer(t *testing.T) {
	h := NewOutboundHandler(OutboundConfig{})
	req := httptest.NewRequest(http.MethodPost, "/outbound-call",
		strings.NewReader(`{"to_phone":"+15551234567"}`))
	rr := httptest.NewRecorder()
	h.HandlePlaceCall(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestResolveBaseURLFallsBackToRequestHost(t *testing.T) {
	h := NewOutboundHandler(OutboundConfig{Dialer: &fakeDialer{sid: "CA_out_1"}})
	req := httptest.NewRequest(http.MethodPost, "http://bot.internal:8000/outbound-call",
		strings.NewReader(`{"to_phone":"+15551234567"}`))
	rr := httptest.NewRecorder()
	h.HandlePlaceCall(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}
