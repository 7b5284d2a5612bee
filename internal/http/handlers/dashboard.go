package handlers

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/agent"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/livecall"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/transcript"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

const recentCallsLimit = 10

// DashboardHandler serves the operational JSON feed.
type DashboardHandler struct {
	sessions *agent.Store
	recorder *transcript.Recorder
	calls    *livecall.Store
	logger   *logging.Logger
}

type DashboardConfig struct {
	Sessions *agent.Store
	Recorder *transcript.Recorder
	Calls    *livecall.Store
	Logger   *logging.Logger
}

func NewDashboardHandler(cfg DashboardConfig) *DashboardHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &DashboardHandler{
		sessions: cfg.Sessions,
		recorder: cfg.Recorder,
		calls:    cfg.Calls,
		logger:   cfg.Logger,
	}
}

// HandleStatus reports active call count and the most recent transcripts.
// With Redis configured the count covers all instances, otherwise it is this
// process's session store.
func (h *DashboardHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	active := h.sessions.ActiveCount()
	if h.calls != nil {
		if count, err := h.calls.ActiveCount(r.Context()); err == nil {
			active = count
		} else {
			h.logger.Warn("live call count unavailable, using local sessions", "error", err)
		}
	}

	recent := []transcript.CallSummary{}
	if h.recorder != nil {
		summaries, err := h.recorder.List(recentCallsLimit)
		if err != nil {
			h.logger.Error("failed to list transcripts", "error", err)
		} else {
			recent = summaries
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_calls": active,
		"recent_calls": recent,
	})
}

// HandleTranscript returns the full transcript of one call.
func (h *DashboardHandler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	callSID := chi.URLParam(r, "callSID")
	if callSID == "" || h.recorder == nil {
		http.Error(w, "transcript not found", http.StatusNotFound)
		return
	}
	record, err := h.recorder.Get(callSID)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.Error("failed to load transcript", "call_sid", callSID, "error", err)
		}
		http.Error(w, "transcript not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// HealthCheck reports process liveness.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
