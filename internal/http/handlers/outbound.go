package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/transcript"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// CallDialer places outbound calls. An empty fromNumber means the dialer's
// configured caller number.
type CallDialer interface {
	PlaceCall(ctx context.Context, toNumber, fromNumber, answerURL, statusCallbackURL string) (string, error)
}

// OutboundHandler starts agent-initiated calls.
type OutboundHandler struct {
	dialer   CallDialer
	recorder *transcript.Recorder
	baseURL  string
	logger   *logging.Logger
}

type OutboundConfig struct {
	Dialer   CallDialer
	Recorder *transcript.Recorder
	// BaseURL is the public origin Twilio calls back on, e.g.
	// "https://bot.example.com". When empty the request host is used.
	BaseURL string
	Logger  *logging.Logger
}

func NewOutboundHandler(cfg OutboundConfig) *OutboundHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &OutboundHandler{
		dialer:   cfg.Dialer,
		recorder: cfg.Recorder,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		logger:   cfg.Logger,
	}
}

type outboundCallRequest struct {
	ToPhone   string `json:"to_phone"`
	FromPhone string `json:"from_phone"`
}

// HandlePlaceCall dials a customer and points the call at the greeting flow.
// from_phone is optional; when omitted the dialer uses its configured caller
// number. The transcript opens as soon as the provider accepts the call, so
// calls that ring out still leave a record.
func (h *OutboundHandler) HandlePlaceCall(w http.ResponseWriter, r *http.Request) {
	if h.dialer == nil {
		http.Error(w, "outbound calling not configured", http.StatusServiceUnavailable)
		return
	}
	var req outboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if !e164Pattern.MatchString(req.ToPhone) {
		http.Error(w, "to_phone must be E.164, e.g. +15551234567", http.StatusBadRequest)
		return
	}
	if req.FromPhone != "" && !e164Pattern.MatchString(req.FromPhone) {
		http.Error(w, "from_phone must be E.164, e.g. +15551234567", http.StatusBadRequest)
		return
	}

	base := h.resolveBaseURL(r)
	callSID, err := h.dialer.PlaceCall(r.Context(), req.ToPhone, req.FromPhone,
		base+"/twilio/outbound-connect", base+"/twilio/status")
	if err != nil {
		h.logger.Error("outbound call failed", "error", err)
		http.Error(w, "failed to place call", http.StatusBadGateway)
		return
	}
	if h.recorder != nil {
		if err := h.recorder.Start(callSID, req.ToPhone); err != nil {
			h.logger.Error("start transcript failed", "call_sid", callSID, "error", err)
		}
	}
	h.logger.Info("outbound call queued", "call_sid", callSID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"call_sid": callSID,
	})
}

func (h *OutboundHandler) resolveBaseURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "https"
	if r.TLS == nil && !strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}
