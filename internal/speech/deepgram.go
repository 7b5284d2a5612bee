package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

const (
	defaultDeepgramBaseURL = "https://api.deepgram.com"
	deepgramCallTimeout    = 10 * time.Second
)

// Transcriber converts caller audio into text. An empty transcript with a nil
// error means the service heard nothing usable.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// DeepgramClient transcribes audio via the Deepgram pre-recorded API.
type DeepgramClient struct {
	apiKey     string
	model      string
	language   string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// DeepgramClientConfig configures the transcription client.
type DeepgramClientConfig struct {
	// APIKey is the Deepgram API key (Token auth).
	APIKey string
	// Model names the Deepgram model, e.g. "nova-2".
	Model string
	// Language is the BCP-47 language tag, e.g. "en-US".
	Language string
	// BaseURL overrides the Deepgram API base URL (for testing).
	BaseURL string
	// Timeout bounds one transcription request.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewDeepgramClient creates a client for the Deepgram transcription API.
func NewDeepgramClient(cfg DeepgramClientConfig) (*DeepgramClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("deepgram client: API key required")
	}
	model := cfg.Model
	if model == "" {
		model = "nova-2"
	}
	language := cfg.Language
	if language == "" {
		language = "en-US"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultDeepgramBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = deepgramCallTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &DeepgramClient{
		apiKey:     cfg.APIKey,
		model:      model,
		language:   language,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends audio bytes to Deepgram and returns the best transcript.
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}

	params := url.Values{}
	params.Set("model", c.model)
	params.Set("language", c.language)
	params.Set("punctuate", "true")

	endpoint := fmt.Sprintf("%s/v1/listen?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("deepgram: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("deepgram: API error", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("deepgram: API returned %d", resp.StatusCode)
	}

	var parsed deepgramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("deepgram: decode response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.Results.Channels[0].Alternatives[0].Transcript), nil
}
