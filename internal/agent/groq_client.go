package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqModel   = "llama3-70b-8192"
	groqCallTimeout    = 10 * time.Second
)

// GroqClient generates replies via Groq's OpenAI-compatible chat completions
// API. Responses are requested as a stream and drained to the final text;
// nothing downstream needs partial output today, but the stream callback
// keeps the option open for low-latency playback later.
type GroqClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// GroqClientConfig configures the generation client.
type GroqClientConfig struct {
	// APIKey is the Groq API key (Bearer token).
	APIKey string
	// Model names the hosted model, e.g. "llama3-70b-8192".
	Model string
	// BaseURL overrides the Groq API base URL (for testing).
	BaseURL string
	// Timeout bounds one completion request end to end.
	Timeout time.Duration
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewGroqClient creates a client for the Groq chat completions API.
func NewGroqClient(cfg GroqClientConfig) (*GroqClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("groq client: API key required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGroqModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = groqCallTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &GroqClient{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type groqChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type groqStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Generate sends one completion request and returns the concatenated reply.
func (c *GroqClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var reply strings.Builder
	err := c.stream(ctx, req, func(delta string) {
		reply.WriteString(delta)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply.String()), nil
}

// stream runs one streamed completion, invoking fn for every content delta in
// arrival order.
func (c *GroqClient) stream(ctx context.Context, req GenerateRequest, fn func(delta string)) error {
	messages := make([]ChatMessage, 0, len(req.History)+2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, ChatMessage{Role: ChatRoleSystem, Content: req.System})
	}
	messages = append(messages, req.History...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: req.UserText})

	body, err := json.Marshal(groqChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("groq: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("groq: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("groq: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.logger.Error("groq: API error", "status", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("groq: API returned %d: %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk groqStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Warn("groq: skipping malformed stream chunk", "error", err)
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				fn(choice.Delta.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("groq: read stream: %w", err)
	}
	return nil
}
