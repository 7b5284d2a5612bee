package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/cmd/mainconfig"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/agent"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/api/router"
	appconfig "github.com/Nilesh-Pandeyy/ai-sales-agent/internal/config"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/http/handlers"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/livecall"
	observemetrics "github.com/Nilesh-Pandeyy/ai-sales-agent/internal/observability/metrics"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/pipeline"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/speech"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/telephony"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/transcript"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting ai-sales-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	voiceMetrics := observemetrics.NewVoiceMetrics(registry)

	generator, err := agent.NewGroqClient(agent.GroqClientConfig{
		APIKey:  cfg.GroqAPIKey,
		Model:   cfg.GroqModel,
		Timeout: cfg.GroqTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build groq client", "error", err)
		os.Exit(1)
	}
	transcriber, err := speech.NewDeepgramClient(speech.DeepgramClientConfig{
		APIKey:   cfg.DeepgramAPIKey,
		Model:    cfg.DeepgramModel,
		Language: cfg.DeepgramLanguage,
		Timeout:  cfg.DeepgramTimeout,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to build deepgram client", "error", err)
		os.Exit(1)
	}
	synthesizer, err := speech.NewElevenLabsClient(speech.ElevenLabsClientConfig{
		APIKey:  cfg.ElevenLabsAPIKey,
		VoiceID: cfg.ElevenLabsVoiceID,
		ModelID: cfg.ElevenLabsModelID,
		Timeout: cfg.ElevenLabsTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build elevenlabs client", "error", err)
		os.Exit(1)
	}

	cache, err := speech.NewCache(cfg.AudioDir)
	if err != nil {
		logger.Error("failed to create audio cache", "error", err)
		os.Exit(1)
	}

	var archiver *transcript.Archiver
	if cfg.TranscriptBucket != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		archiver, err = transcript.NewArchiver(mainconfig.NewS3Client(awsCfg, cfg), cfg.TranscriptBucket)
		if err != nil {
			logger.Error("failed to build transcript archiver", "error", err)
			os.Exit(1)
		}
		logger.Info("transcript archival enabled", "bucket", cfg.TranscriptBucket)
	}

	recorder, err := transcript.NewRecorder(cfg.LogsDir, archiver, logger)
	if err != nil {
		logger.Error("failed to create transcript recorder", "error", err)
		os.Exit(1)
	}

	var calls *livecall.Store
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		calls = livecall.NewStore(redis.NewClient(opts))
		logger.Info("live call tracking enabled", "redis_addr", cfg.RedisAddr)
	}

	sessions := agent.NewStore(generator, agent.Settings{
		Temperature:     cfg.GroqTemperature,
		MaxTokens:       cfg.GroqMaxTokens,
		HistoryMaxTurns: cfg.HistoryMaxTurns,
	})

	turnPipeline := pipeline.New(pipeline.Config{
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Cache:       cache,
		STTTimeout:  cfg.DeepgramTimeout,
		GenTimeout:  cfg.GroqTimeout,
		TTSTimeout:  cfg.ElevenLabsTimeout,
		Metrics:     voiceMetrics,
		Logger:      logger,
	})

	voiceHandler := handlers.NewVoiceWebhookHandler(handlers.VoiceWebhookConfig{
		Sessions:      sessions,
		Pipeline:      turnPipeline,
		Recorder:      recorder,
		Cache:         cache,
		Calls:         calls,
		Metrics:       voiceMetrics,
		Logger:        logger,
		GatherTimeout: cfg.GatherTimeout,
	})

	dialer, err := telephony.NewTwilioClient(telephony.TwilioClientConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to build twilio client", "error", err)
		os.Exit(1)
	}
	if cfg.TwilioFromNumber == "" {
		logger.Warn("TWILIO_FROM_NUMBER not set, outbound calls must supply from_phone")
	}
	outboundHandler := handlers.NewOutboundHandler(handlers.OutboundConfig{
		Dialer:   dialer,
		Recorder: recorder,
		BaseURL:  cfg.PublicBaseURL,
		Logger:   logger,
	})

	dashboardHandler := handlers.NewDashboardHandler(handlers.DashboardConfig{
		Sessions: sessions,
		Recorder: recorder,
		Calls:    calls,
		Logger:   logger,
	})

	r := router.New(&router.Config{
		Logger:         logger,
		Voice:          voiceHandler,
		Outbound:       outboundHandler,
		Dashboard:      dashboardHandler,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
