package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// stubGenerator returns scripted replies in order, then repeats the last one.
type stubGenerator struct {
	mu       sync.Mutex
	replies  []string
	requests []GenerateRequest
	err      error
	block    chan struct{}
}

func (g *stubGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "ok", nil
	}
	reply := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return reply, nil
}

func TestRespondAppendsTurn(t *testing.T) {
	gen := &stubGenerator{replies: []string{"Happy to help with a demo."}}
	sess := newSession("CA1", gen, Settings{MaxTokens: 50})

	reply, err := sess.Respond(context.Background(), "I need a demo")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if reply != "Happy to help with a demo." {
		t.Fatalf("unexpected reply %q", reply)
	}
	turns := sess.Turns()
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].User != "I need a demo" || turns[0].Agent != reply {
		t.Fatalf("unexpected turn %+v", turns[0])
	}
}

func TestRespondFeedsHistoryOldestFirst(t *testing.T) {
	gen := &stubGenerator{replies: []string{"first", "second", "third"}}
	sess := newSession("CA1", gen, Settings{MaxTokens: 50})

	ctx := context.Background()
	for _, input := range []string{"one", "two", "three"} {
		if _, err := sess.Respond(ctx, input); err != nil {
			t.Fatalf("respond %q: %v", input, err)
		}
	}

	last := gen.requests[len(gen.requests)-1]
	if last.UserText != "three" {
		t.Fatalf("expected newest utterance last, got %q", last.UserText)
	}
	want := []ChatMessage{
		{Role: ChatRoleUser, Content: "one"},
		{Role: ChatRoleAssistant, Content: "first"},
		{Role: ChatRoleUser, Content: "two"},
		{Role: ChatRoleAssistant, Content: "second"},
	}
	if len(last.History) != len(want) {
		t.Fatalf("expected %d history messages, got %d", len(want), len(last.History))
	}
	for i, msg := range want {
		if last.History[i] != msg {
			t.Fatalf("history[%d]: got %+v, want %+v", i, last.History[i], msg)
		}
	}
}

func TestRespondBoundsHistory(t *testing.T) {
	gen := &stubGenerator{}
	sess := newSession("CA1", gen, Settings{MaxTokens: 50, HistoryMaxTurns: 2})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := sess.Respond(ctx, fmt.Sprintf("utterance %d", i)); err != nil {
			t.Fatalf("respond: %v", err)
		}
	}
	last := gen.requests[len(gen.requests)-1]
	if len(last.History) != 4 {
		t.Fatalf("expected history capped at 2 turns (4 messages), got %d", len(last.History))
	}
	if last.History[0].Content != "utterance 2" {
		t.Fatalf("expected oldest retained turn to be utterance 2, got %q", last.History[0].Content)
	}
}

func TestRespondEnforcesTokenCeiling(t *testing.T) {
	gen := &stubGenerator{}
	sess := newSession("CA1", gen, Settings{MaxTokens: 5000})
	if _, err := sess.Respond(context.Background(), "hi"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got := gen.requests[0].MaxTokens; got != maxResponseTokens {
		t.Fatalf("expected max tokens clamped to %d, got %d", maxResponseTokens, got)
	}

	gen2 := &stubGenerator{}
	sess2 := newSession("CA2", gen2, Settings{})
	if _, err := sess2.Respond(context.Background(), "hi"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if got := gen2.requests[0].MaxTokens; got != maxResponseTokens {
		t.Fatalf("expected unset max tokens to default to ceiling, got %d", got)
	}
}

func TestRespondEmptyReplyIsValid(t *testing.T) {
	gen := &stubGenerator{replies: []string{""}}
	sess := newSession("CA1", gen, Settings{MaxTokens: 50})
	reply, err := sess.Respond(context.Background(), "hello")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if reply != "" {
		t.Fatalf("expected empty reply, got %q", reply)
	}
	if sess.TurnCount() != 1 {
		t.Fatalf("expected empty reply recorded as a turn")
	}
}

func TestRespondGeneratorFailurePropagates(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream down")}
	sess := newSession("CA1", gen, Settings{MaxTokens: 50})
	if _, err := sess.Respond(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from generator failure")
	}
	if sess.TurnCount() != 0 {
		t.Fatalf("failed turn must not be recorded")
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	sess := newSession("CA1", &stubGenerator{}, Settings{})
	sess.Terminate()
	if sess.Active() {
		t.Fatal("expected session inactive after terminate")
	}
	sess.Terminate()
	if sess.Active() {
		t.Fatal("expected second terminate to be a no-op")
	}
	if sess.TurnCount() != 0 {
		t.Fatal("terminate must not mutate history")
	}
}

func TestRecordTurnOnTerminatedSessionRejected(t *testing.T) {
	sess := newSession("CA1", &stubGenerator{}, Settings{})
	sess.Terminate()
	if err := sess.RecordTurn("hi", "hello"); !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}
	if _, err := sess.Respond(context.Background(), "hi"); !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive from respond, got %v", err)
	}
}

func TestHangupMidGenerationDiscardsResult(t *testing.T) {
	block := make(chan struct{})
	gen := &stubGenerator{replies: []string{"too late"}, block: block}
	sess := newSession("CA1", gen, Settings{MaxTokens: 50})

	done := make(chan error, 1)
	go func() {
		_, err := sess.Respond(context.Background(), "hello")
		done <- err
	}()

	sess.Terminate()
	close(block)

	if err := <-done; !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("expected in-flight result discarded, got %v", err)
	}
	if sess.TurnCount() != 0 {
		t.Fatal("expected no turn recorded after mid-flight hangup")
	}
}

func TestInitialGreeting(t *testing.T) {
	sess := newSession("CA1", &stubGenerator{}, Settings{Greeting: "Hi from the bot."})
	if got := sess.InitialGreeting(); got != "Hi from the bot." {
		t.Fatalf("unexpected greeting %q", got)
	}
	sess2 := newSession("CA2", &stubGenerator{}, Settings{})
	if got := sess2.InitialGreeting(); !strings.Contains(got, "Jivus AI") {
		t.Fatalf("expected default greeting, got %q", got)
	}
}
