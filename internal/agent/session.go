package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrSessionInactive is returned when a turn is attempted on a session whose
// call already ended.
var ErrSessionInactive = errors.New("agent: session is no longer active")

// maxResponseTokens is the hard ceiling on generated reply length. Settings
// may ask for fewer tokens but never more.
const maxResponseTokens = 100

const defaultGreeting = "Hello! Welcome to Jivus AI. How can I assist you today?"

const defaultSystemPrompt = `Act as a concise and efficient sales representative. Your key goals are:
1. Ask targeted, brief questions to understand customer needs
2. Listen more than you speak
3. Provide very brief, value-focused responses
4. Guide the conversation with short, impactful statements
5. Aim to speak no more than 15-20 words per response
6. Encourage the customer to share more about their requirements`

// Settings carries the per-pipeline generation parameters shared by sessions.
type Settings struct {
	SystemPrompt string
	Greeting     string
	Temperature  float64
	MaxTokens    int
	// HistoryMaxTurns bounds how many prior turns feed the generator.
	HistoryMaxTurns int
}

// Turn is one caller utterance and the agent's reply to it.
type Turn struct {
	User  string
	Agent string
}

// Session holds the per-call conversation state. A session starts active and
// transitions to terminated exactly once; the turn history only grows while
// the session is active.
type Session struct {
	CallID string

	generator Generator
	settings  Settings

	mu     sync.Mutex
	turns  []Turn
	active bool
}

func newSession(callID string, generator Generator, settings Settings) *Session {
	if settings.SystemPrompt == "" {
		settings.SystemPrompt = defaultSystemPrompt
	}
	return &Session{
		CallID:    callID,
		generator: generator,
		settings:  settings,
		active:    true,
	}
}

// Active reports whether the session can still take turns.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Terminate marks the session inactive. It is one-way and idempotent.
func (s *Session) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// RecordTurn appends one exchange to the turn history. Recording on a
// terminated session is a logic error.
func (s *Session) RecordTurn(userText, agentText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrSessionInactive
	}
	s.turns = append(s.turns, Turn{User: userText, Agent: agentText})
	return nil
}

// Turns returns a copy of the turn history.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// TurnCount returns the number of completed turns.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// InitialGreeting returns the opening line spoken when a call connects. It
// never fails: with no configured greeting the hardcoded default is used.
func (s *Session) InitialGreeting() string {
	if g := strings.TrimSpace(s.settings.Greeting); g != "" {
		return g
	}
	return defaultGreeting
}

// Respond drives the generation stage with the accumulated history and
// appends the resulting turn. The session lock is not held across the
// generator's network call; turns are appended in the order generation
// completes. If the call ends while generation is in flight the result is
// discarded and ErrSessionInactive is returned.
func (s *Session) Respond(ctx context.Context, userText string) (string, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return "", ErrSessionInactive
	}
	history := s.historyLocked()
	s.mu.Unlock()

	maxTokens := s.settings.MaxTokens
	if maxTokens <= 0 || maxTokens > maxResponseTokens {
		maxTokens = maxResponseTokens
	}

	reply, err := s.generator.Generate(ctx, GenerateRequest{
		System:      s.settings.SystemPrompt,
		History:     history,
		UserText:    userText,
		MaxTokens:   maxTokens,
		Temperature: s.settings.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("agent: generate reply: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return "", ErrSessionInactive
	}
	s.turns = append(s.turns, Turn{User: userText, Agent: reply})
	return reply, nil
}

// historyLocked converts the most recent turns to chat messages, oldest first.
// Callers must hold s.mu.
func (s *Session) historyLocked() []ChatMessage {
	start := 0
	if max := s.settings.HistoryMaxTurns; max > 0 && len(s.turns) > max {
		start = len(s.turns) - max
	}
	msgs := make([]ChatMessage, 0, 2*(len(s.turns)-start))
	for _, turn := range s.turns[start:] {
		msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: turn.User})
		msgs = append(msgs, ChatMessage{Role: ChatRoleAssistant, Content: turn.Agent})
	}
	return msgs
}
