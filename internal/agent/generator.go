package agent

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one message in the generation context window.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest carries everything the generation stage needs for one turn.
type GenerateRequest struct {
	// System is the instruction prepended to every request.
	System string
	// History is the prior conversation, oldest first.
	History []ChatMessage
	// UserText is the caller's newest utterance.
	UserText string
	// MaxTokens bounds the reply length. Telephony turnaround degrades fast
	// with long replies, so callers must always set a ceiling.
	MaxTokens   int
	Temperature float64
}

// Generator produces the agent's reply text for one caller utterance.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
