package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/http/handlers"
	httpmiddleware "github.com/Nilesh-Pandeyy/ai-sales-agent/internal/http/middleware"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	Voice          *handlers.VoiceWebhookHandler
	Outbound       *handlers.OutboundHandler
	Dashboard      *handlers.DashboardHandler
	MetricsHandler http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.HealthCheck)

	r.Route("/twilio", func(r chi.Router) {
		r.Post("/inbound", cfg.Voice.HandleInbound)
		r.Post("/user-input", cfg.Voice.HandleUserInput)
		r.Post("/audio-webhook", cfg.Voice.HandleAudioWebhook)
		r.Get("/audio/{filename}", cfg.Voice.HandleAudio)
		r.Post("/status", cfg.Voice.HandleStatus)
		r.Post("/outbound-connect", cfg.Voice.HandleOutboundConnect)
		r.Get("/outbound-connect", cfg.Voice.HandleOutboundConnect)
	})

	if cfg.Outbound != nil {
		r.Post("/outbound-call", cfg.Outbound.HandlePlaceCall)
	}
	if cfg.Dashboard != nil {
		r.Get("/status", cfg.Dashboard.HandleStatus)
		r.Get("/transcripts/{callSID}", cfg.Dashboard.HandleTranscript)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
