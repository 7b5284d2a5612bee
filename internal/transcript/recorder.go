package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

// Call statuses as stored in a transcript record.
const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Entry is one completed exchange inside a call transcript.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Agent     string    `json:"agent"`
}

// Record is the durable transcript of one call.
type Record struct {
	StartTime      time.Time  `json:"start_time"`
	CustomerNumber string     `json:"customer_number"`
	Transcript     []Entry    `json:"transcript"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Status         string     `json:"status"`
}

// CallSummary is the listing view of one recorded call.
type CallSummary struct {
	CallSID        string     `json:"call_sid"`
	StartTime      time.Time  `json:"start_time"`
	CustomerNumber string     `json:"customer_number"`
	TurnCount      int        `json:"turn_count"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Status         string     `json:"status"`
}

type recordState struct {
	mu     sync.Mutex
	record *Record
}

// Recorder persists call transcripts as one JSON file per call. Every append
// rewrites the whole file, so the on-disk record is complete after each turn
// even if the process dies mid-call.
type Recorder struct {
	dir      string
	archiver *Archiver
	logger   *logging.Logger

	mu    sync.Mutex
	calls map[string]*recordState
}

// NewRecorder creates the transcript directory if needed.
func NewRecorder(dir string, archiver *Archiver, logger *logging.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transcript: create dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{
		dir:      dir,
		archiver: archiver,
		logger:   logger,
		calls:    make(map[string]*recordState),
	}, nil
}

func (r *Recorder) state(callSID string) *recordState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.calls[callSID]
	if !ok {
		st = &recordState{}
		r.calls[callSID] = st
	}
	return st
}

// Start opens a transcript for a call. Starting an already started call keeps
// the original record untouched.
func (r *Recorder) Start(callSID, customerNumber string) error {
	st := r.state(callSID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.record != nil {
		return nil
	}
	st.record = &Record{
		StartTime:      time.Now().UTC(),
		CustomerNumber: customerNumber,
		Transcript:     []Entry{},
		Status:         StatusInProgress,
	}
	return r.flushLocked(callSID, st)
}

// Append adds one exchange. A call that was never started gets a record with
// an unknown caller, so out-of-order webhook delivery never loses a turn.
func (r *Recorder) Append(callSID, userText, agentText string) error {
	st := r.state(callSID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.record == nil {
		st.record = &Record{
			StartTime:      time.Now().UTC(),
			CustomerNumber: "unknown",
			Transcript:     []Entry{},
			Status:         StatusInProgress,
		}
	}
	st.record.Transcript = append(st.record.Transcript, Entry{
		Timestamp: time.Now().UTC(),
		User:      userText,
		Agent:     agentText,
	})
	return r.flushLocked(callSID, st)
}

// Finalize stamps the end time and final status, flushes the file one last
// time, hands the record to the archiver if one is configured, and releases
// the in-memory buffer. Finalizing an unknown or already finalized call is a
// no-op.
func (r *Recorder) Finalize(ctx context.Context, callSID, status string) error {
	r.mu.Lock()
	st, ok := r.calls[callSID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.record == nil {
		return nil
	}
	now := time.Now().UTC()
	st.record.EndTime = &now
	st.record.Status = status
	if err := r.flushLocked(callSID, st); err != nil {
		return err
	}
	if r.archiver.Enabled() {
		if err := r.archiver.Archive(ctx, callSID, st.record); err != nil {
			r.logger.Warn("transcript: archive failed", "call_sid", callSID, "error", err)
		}
	}
	st.record = nil

	r.mu.Lock()
	delete(r.calls, callSID)
	r.mu.Unlock()
	return nil
}

// Get returns the transcript for one call, from memory while the call is live
// and from disk after it ended.
func (r *Recorder) Get(callSID string) (*Record, error) {
	r.mu.Lock()
	st, ok := r.calls[callSID]
	r.mu.Unlock()
	if ok {
		st.mu.Lock()
		rec := st.record
		st.mu.Unlock()
		if rec != nil {
			cp := *rec
			cp.Transcript = append([]Entry(nil), rec.Transcript...)
			return &cp, nil
		}
	}

	data, err := os.ReadFile(r.path(callSID))
	if err != nil {
		return nil, fmt.Errorf("transcript: read %s: %w", callSID, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("transcript: decode %s: %w", callSID, err)
	}
	return &rec, nil
}

// List returns summaries of recorded calls, most recent first, at most limit
// entries. A non-positive limit means no cap.
func (r *Recorder) List(limit int) ([]CallSummary, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("transcript: list dir: %w", err)
	}
	summaries := make([]CallSummary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		callSID := strings.TrimSuffix(name, ".json")
		rec, err := r.Get(callSID)
		if err != nil {
			r.logger.Warn("transcript: skipping unreadable record", "file", name, "error", err)
			continue
		}
		summaries = append(summaries, CallSummary{
			CallSID:        callSID,
			StartTime:      rec.StartTime,
			CustomerNumber: rec.CustomerNumber,
			TurnCount:      len(rec.Transcript),
			EndTime:        rec.EndTime,
			Status:         rec.Status,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (r *Recorder) path(callSID string) string {
	return filepath.Join(r.dir, filepath.Base(callSID)+".json")
}

// flushLocked rewrites the whole record through a temp file and rename.
// Callers must hold st.mu.
func (r *Recorder) flushLocked(callSID string, st *recordState) error {
	data, err := json.MarshalIndent(st.record, "", "  ")
	if err != nil {
		return fmt.Errorf("transcript: encode %s: %w", callSID, err)
	}
	tmp, err := os.CreateTemp(r.dir, ".tmp-transcript-*")
	if err != nil {
		return fmt.Errorf("transcript: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("transcript: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("transcript: close temp: %w", err)
	}
	if err := os.Rename(tmpName, r.path(callSID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("transcript: rename: %w", err)
	}
	return nil
}
