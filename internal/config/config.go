package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Groq response generation
	GroqAPIKey      string
	GroqModel       string
	GroqTemperature float64
	GroqMaxTokens   int
	GroqTimeout     time.Duration

	// Deepgram speech recognition
	DeepgramAPIKey   string
	DeepgramModel    string
	DeepgramLanguage string
	DeepgramTimeout  time.Duration

	// ElevenLabs speech synthesis
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
	ElevenLabsTimeout time.Duration

	// Twilio call signaling
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	AudioDir        string
	LogsDir         string
	HistoryMaxTurns int
	GatherTimeout   int

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	TranscriptBucket    string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8000"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
		GroqModel:       getEnv("GROQ_MODEL", "llama3-70b-8192"),
		GroqTemperature: getEnvAsFloat("GROQ_TEMPERATURE", 0.3),
		GroqMaxTokens:   getEnvAsInt("GROQ_MAX_TOKENS", 50),
		GroqTimeout:     getEnvAsDuration("GROQ_TIMEOUT", 10*time.Second),

		DeepgramAPIKey:   getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramModel:    getEnv("DEEPGRAM_MODEL", "nova-2"),
		DeepgramLanguage: getEnv("DEEPGRAM_LANGUAGE", "en-US"),
		DeepgramTimeout:  getEnvAsDuration("DEEPGRAM_TIMEOUT", 10*time.Second),

		ElevenLabsAPIKey:  getEnv("ELEVEN_LABS_API_KEY", ""),
		ElevenLabsVoiceID: getEnv("ELEVEN_LABS_VOICE_ID", "EXAVITQu4vr4xnSDxMaL"),
		ElevenLabsModelID: getEnv("ELEVEN_LABS_MODEL_ID", "eleven_turbo_v2"),
		ElevenLabsTimeout: getEnvAsDuration("ELEVEN_LABS_TIMEOUT", 10*time.Second),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		AudioDir:        getEnv("AUDIO_DIR", "audio_responses"),
		LogsDir:         getEnv("LOGS_DIR", "logs"),
		HistoryMaxTurns: getEnvAsInt("HISTORY_MAX_TURNS", 20),
		GatherTimeout:   getEnvAsInt("GATHER_TIMEOUT", 5),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		TranscriptBucket:    getEnv("TRANSCRIPT_BUCKET", ""),
	}
}

// Validate reports the credentials the service cannot run without. A non-nil
// error is fatal at startup.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.GroqAPIKey) == "" {
		missing = append(missing, "GROQ_API_KEY")
	}
	if strings.TrimSpace(c.DeepgramAPIKey) == "" {
		missing = append(missing, "DEEPGRAM_API_KEY")
	}
	if strings.TrimSpace(c.ElevenLabsAPIKey) == "" {
		missing = append(missing, "ELEVEN_LABS_API_KEY")
	}
	if strings.TrimSpace(c.TwilioAccountSID) == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if strings.TrimSpace(c.TwilioAuthToken) == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
