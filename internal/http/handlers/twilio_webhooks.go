package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/agent"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/livecall"
	observemetrics "github.com/Nilesh-Pandeyy/ai-sales-agent/internal/observability/metrics"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/pipeline"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/speech"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/transcript"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/twiml"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

// Twilio call statuses that mean the call is over.
var terminalCallStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

const retryPrompt = "I'm sorry, something went wrong on my end. Could you say that again?"

// VoiceWebhookHandler handles Twilio voice webhooks for the call lifecycle.
type VoiceWebhookHandler struct {
	sessions      *agent.Store
	pipeline      *pipeline.Pipeline
	recorder      *transcript.Recorder
	cache         *speech.Cache
	calls         *livecall.Store
	metrics       *observemetrics.VoiceMetrics
	logger        *logging.Logger
	gatherTimeout int
}

type VoiceWebhookConfig struct {
	Sessions *agent.Store
	Pipeline *pipeline.Pipeline
	Recorder *transcript.Recorder
	Cache    *speech.Cache
	Calls    *livecall.Store
	Metrics  *observemetrics.VoiceMetrics
	Logger   *logging.Logger
	// GatherTimeout is the seconds Twilio waits for speech before re-posting.
	GatherTimeout int
}

func NewVoiceWebhookHandler(cfg VoiceWebhookConfig) *VoiceWebhookHandler {
	if cfg.Sessions == nil {
		panic("handlers: session store cannot be nil")
	}
	if cfg.Pipeline == nil {
		panic("handlers: pipeline cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	gatherTimeout := cfg.GatherTimeout
	if gatherTimeout <= 0 {
		gatherTimeout = 5
	}
	return &VoiceWebhookHandler{
		sessions:      cfg.Sessions,
		pipeline:      cfg.Pipeline,
		recorder:      cfg.Recorder,
		cache:         cfg.Cache,
		calls:         cfg.Calls,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		gatherTimeout: gatherTimeout,
	}
}

// HandleInbound answers a new call with the greeting and starts listening.
func (h *VoiceWebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	callSID := r.FormValue("CallSid")
	if callSID == "" {
		h.metrics.ObserveInbound("inbound", "bad_request")
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}
	caller := r.FormValue("From")

	sess := h.sessions.GetOrCreate(callSID)
	if h.recorder != nil {
		if err := h.recorder.Start(callSID, caller); err != nil {
			h.logger.Error("failed to open transcript", "call_sid", callSID, "error", err)
		}
	}
	h.trackCallStarted(r.Context(), callSID, caller)
	h.metrics.ObserveInbound("inbound", "ok")
	h.metrics.SetActiveCalls(h.sessions.ActiveCount())
	h.logger.Info("inbound call", "call_sid", callSID, "from", caller)

	greeting, audioFile := h.pipeline.Greeting(r.Context(), sess)
	h.writeReplyTwiML(w, greeting, audioFile)
}

// HandleUserInput runs one conversation turn from Twilio's speech capture.
func (h *VoiceWebhookHandler) HandleUserInput(w http.ResponseWriter, r *http.Request) {
	callSID := r.FormValue("CallSid")
	if callSID == "" {
		h.metrics.ObserveInbound("user_input", "bad_request")
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}
	speechResult := r.FormValue("SpeechResult")

	sess := h.sessions.GetOrCreate(callSID)
	turn, err := h.pipeline.RunText(r.Context(), sess, speechResult)
	if err != nil {
		h.metrics.ObserveInbound("user_input", "error")
		h.logger.Error("turn failed", "call_sid", callSID, "error", err)
		h.writeReplyTwiML(w, retryPrompt, "")
		return
	}
	h.finishTurn(r.Context(), callSID, turn)
	h.metrics.ObserveInbound("user_input", "ok")
	h.writeReplyTwiML(w, turn.ReplyText, turn.AudioFile)
}

// HandleAudioWebhook runs one turn from raw recorded audio and answers in
// JSON, for callers that drive the bot outside Twilio's TwiML loop.
func (h *VoiceWebhookHandler) HandleAudioWebhook(w http.ResponseWriter, r *http.Request) {
	callSID := r.FormValue("CallSid")
	if callSID == "" {
		h.metrics.ObserveInbound("audio_webhook", "bad_request")
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}
	audio, err := base64.StdEncoding.DecodeString(r.FormValue("RecordingData"))
	if err != nil {
		h.metrics.ObserveInbound("audio_webhook", "bad_request")
		http.Error(w, "RecordingData must be base64", http.StatusBadRequest)
		return
	}

	sess := h.sessions.GetOrCreate(callSID)
	turn, runErr := h.pipeline.RunAudio(r.Context(), sess, audio)
	if runErr != nil {
		h.metrics.ObserveInbound("audio_webhook", "error")
		h.logger.Error("audio turn failed", "call_sid", callSID, "error", runErr)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       false,
			"response_text": retryPrompt,
		})
		return
	}
	h.finishTurn(r.Context(), callSID, turn)
	h.metrics.ObserveInbound("audio_webhook", "ok")
	if turn.ShortCircuited {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       false,
			"response_text": turn.ReplyText,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"transcript":     turn.UserText,
		"response_text":  turn.ReplyText,
		"response_audio": turn.AudioFile,
	})
}

// HandleAudio serves a cached synthesized artifact.
func (h *VoiceWebhookHandler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" || h.cache == nil || !h.cache.Exists(filename) {
		http.Error(w, "audio not found", http.StatusNotFound)
		return
	}
	data, err := h.cache.Read(filename)
	if err != nil {
		h.logger.Error("failed to read audio artifact", "file", filename, "error", err)
		http.Error(w, "audio not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(data)
}

// HandleStatus processes call lifecycle events. Terminal statuses tear the
// session down; everything else is just acknowledged. Duplicate and
// out-of-order deliveries are tolerated.
func (h *VoiceWebhookHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	callSID := r.FormValue("CallSid")
	if callSID == "" {
		h.metrics.ObserveInbound("status", "bad_request")
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}
	callStatus := r.FormValue("CallStatus")
	h.logger.Info("call status", "call_sid", callSID, "status", callStatus)

	if terminalCallStatuses[callStatus] {
		if sess, ok := h.sessions.Get(callSID); ok {
			sess.Terminate()
		}
		h.sessions.Remove(callSID)
		h.metrics.SetActiveCalls(h.sessions.ActiveCount())

		finalStatus := transcript.StatusFailed
		if callStatus == "completed" {
			finalStatus = transcript.StatusCompleted
		}
		if h.recorder != nil {
			if err := h.recorder.Finalize(r.Context(), callSID, finalStatus); err != nil {
				h.logger.Error("failed to finalize transcript", "call_sid", callSID, "error", err)
			}
		}
		if err := h.calls.End(r.Context(), callSID); err != nil {
			h.logger.Warn("failed to mark call ended", "call_sid", callSID, "error", err)
		}
	}
	h.metrics.ObserveInbound("status", "ok")
	if err := twiml.New().Write(w); err != nil {
		h.logger.Error("failed to write twiml", "error", err)
	}
}

// HandleOutboundConnect answers an outbound call the moment the callee picks
// up, with the same greeting flow as an inbound call.
func (h *VoiceWebhookHandler) HandleOutboundConnect(w http.ResponseWriter, r *http.Request) {
	callSID := r.FormValue("CallSid")
	if callSID == "" {
		h.metrics.ObserveInbound("outbound_connect", "bad_request")
		http.Error(w, "CallSid is required", http.StatusBadRequest)
		return
	}
	callee := r.FormValue("To")

	sess := h.sessions.GetOrCreate(callSID)
	if h.recorder != nil {
		if err := h.recorder.Start(callSID, callee); err != nil {
			h.logger.Error("failed to open transcript", "call_sid", callSID, "error", err)
		}
	}
	h.trackCallStarted(r.Context(), callSID, callee)
	h.metrics.ObserveInbound("outbound_connect", "ok")
	h.metrics.SetActiveCalls(h.sessions.ActiveCount())

	greeting, audioFile := h.pipeline.Greeting(r.Context(), sess)
	h.writeReplyTwiML(w, greeting, audioFile)
}

// finishTurn records a completed exchange. Short-circuited turns never touch
// the transcript.
func (h *VoiceWebhookHandler) finishTurn(ctx context.Context, callSID string, turn pipeline.Turn) {
	if turn.ShortCircuited {
		return
	}
	if h.recorder != nil {
		if err := h.recorder.Append(callSID, turn.UserText, turn.ReplyText); err != nil {
			h.logger.Error("failed to append transcript", "call_sid", callSID, "error", err)
		}
	}
	if err := h.calls.IncrementTurn(ctx, callSID); err != nil {
		h.logger.Warn("failed to bump turn count", "call_sid", callSID, "error", err)
	}
}

func (h *VoiceWebhookHandler) trackCallStarted(ctx context.Context, callSID, caller string) {
	now := time.Now().UTC()
	err := h.calls.Save(ctx, livecall.State{
		CallID:         callSID,
		CallerNumber:   caller,
		Status:         livecall.StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	})
	if err != nil {
		h.logger.Warn("failed to track live call", "call_sid", callSID, "error", err)
	}
}

// writeReplyTwiML speaks one reply and keeps listening. Cached audio plays
// through Play; without an artifact Twilio's own voice reads the text.
func (h *VoiceWebhookHandler) writeReplyTwiML(w http.ResponseWriter, text, audioFile string) {
	doc := twiml.New()
	if audioFile != "" {
		doc.Play("/twilio/audio/" + audioFile)
	} else {
		doc.Say(text)
	}
	doc.GatherSpeech("/twilio/user-input", h.gatherTimeout)
	if err := doc.Write(w); err != nil {
		h.logger.Error("failed to write twiml", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
