package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

var twilioTracer = otel.Tracer("voicebot.internal.telephony")

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioClient places outbound voice calls through Twilio's REST API.
type TwilioClient struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// TwilioClientConfig configures the client. BaseURL is overridable for tests.
type TwilioClientConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewTwilioClient builds a client with sane defaults.
func NewTwilioClient(cfg TwilioClientConfig) (*TwilioClient, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("telephony: twilio credentials are required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioClient{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// PlaceCall dials toNumber from fromNumber and points the call at answerURL
// for TwiML. An empty fromNumber falls back to the configured caller number.
// statusCallbackURL receives lifecycle events; empty means none. Returns the
// provider's call SID.
func (c *TwilioClient) PlaceCall(ctx context.Context, toNumber, fromNumber, answerURL, statusCallbackURL string) (string, error) {
	if toNumber == "" {
		return "", fmt.Errorf("telephony: destination number is required")
	}
	if fromNumber == "" {
		fromNumber = c.fromNumber
	}
	if fromNumber == "" {
		return "", fmt.Errorf("telephony: caller number is not configured")
	}
	if answerURL == "" {
		return "", fmt.Errorf("telephony: answer URL is required")
	}

	ctx, span := twilioTracer.Start(ctx, "telephony.place_call")
	defer span.End()
	span.SetAttributes(attribute.String("voicebot.to", maskPhone(toNumber)))

	payload := url.Values{}
	payload.Set("To", toNumber)
	payload.Set("From", fromNumber)
	payload.Set("Url", answerURL)
	if statusCallbackURL != "" {
		payload.Set("StatusCallback", statusCallbackURL)
		payload.Set("StatusCallbackEvent", "completed")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return "", fmt.Errorf("telephony: build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("telephony: place call: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("telephony: place call failed: %s", formatTwilioError(resp.StatusCode, body))
		span.RecordError(err)
		return "", err
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("telephony: decode response: %w", err)
	}
	c.logger.Info("outbound call placed", "call_sid", parsed.SID, "to", maskPhone(toNumber), "status", parsed.Status)
	return parsed.SID, nil
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}

// maskPhone keeps only the last four digits for logs.
func maskPhone(number string) string {
	if len(number) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
