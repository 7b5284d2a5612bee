package pipeline

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/agent"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/observability/metrics"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/internal/speech"
	"github.com/Nilesh-Pandeyy/ai-sales-agent/pkg/logging"
)

// FallbackReply is spoken when transcription yields nothing. Dead air is
// worse than an apology.
const FallbackReply = "I'm sorry, I couldn't understand that. Could you please try again?"

const (
	defaultStageTimeout = 10 * time.Second

	stageTranscribe = "transcribe"
	stageGenerate   = "generate"
	stageSynthesize = "synthesize"
)

// Turn is the outcome of one caller utterance.
type Turn struct {
	// UserText is the transcript the reply was generated from. Empty when
	// the turn short-circuited on a failed or empty transcription.
	UserText string
	// ReplyText is what the caller hears.
	ReplyText string
	// AudioFile names the cached synthesized artifact. Empty means synthesis
	// was unavailable and the telephony provider must speak ReplyText itself.
	AudioFile string
	// ShortCircuited marks a turn that never reached generation; it must not
	// be recorded in the transcript.
	ShortCircuited bool
}

// Pipeline runs the speech-to-text, response-generation, and text-to-speech
// stages for one caller utterance, with a fallback policy at each stage.
type Pipeline struct {
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	cache       *speech.Cache

	sttTimeout time.Duration
	genTimeout time.Duration
	ttsTimeout time.Duration

	metrics *metrics.VoiceMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// Config configures the turn pipeline.
type Config struct {
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Cache       *speech.Cache

	STTTimeout time.Duration
	GenTimeout time.Duration
	TTSTimeout time.Duration

	Metrics *metrics.VoiceMetrics
	Logger  *logging.Logger
}

// New creates a turn pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Cache == nil {
		panic("pipeline: audio cache cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	orDefault := func(d time.Duration) time.Duration {
		if d <= 0 {
			return defaultStageTimeout
		}
		return d
	}
	return &Pipeline{
		transcriber: cfg.Transcriber,
		synthesizer: cfg.Synthesizer,
		cache:       cfg.Cache,
		sttTimeout:  orDefault(cfg.STTTimeout),
		genTimeout:  orDefault(cfg.GenTimeout),
		ttsTimeout:  orDefault(cfg.TTSTimeout),
		metrics:     cfg.Metrics,
		logger:      logger,
		tracer:      otel.Tracer("voicebot.internal.pipeline"),
	}
}

// RunAudio processes one utterance delivered as raw audio: transcribe first,
// then generate and synthesize. A failed or empty transcription short-circuits
// to the fixed apology, delivered like any other reply.
func (p *Pipeline) RunAudio(ctx context.Context, sess *agent.Session, audio []byte) (Turn, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run_audio")
	defer span.End()

	transcript, err := p.transcribe(ctx, audio)
	if err != nil {
		p.logger.Warn("pipeline: transcription failed, falling back",
			"error", err, "call_sid", sess.CallID)
		span.RecordError(err)
		p.metrics.ObserveStageFallback(stageTranscribe)
		return p.shortCircuit(ctx, sess.CallID), nil
	}
	if strings.TrimSpace(transcript) == "" {
		p.metrics.ObserveStageFallback(stageTranscribe)
		return p.shortCircuit(ctx, sess.CallID), nil
	}
	return p.respond(ctx, sess, transcript)
}

// RunText processes one utterance already transcribed by the telephony
// provider's speech capture.
func (p *Pipeline) RunText(ctx context.Context, sess *agent.Session, userText string) (Turn, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run_text")
	defer span.End()

	if strings.TrimSpace(userText) == "" {
		p.metrics.ObserveStageFallback(stageTranscribe)
		return p.shortCircuit(ctx, sess.CallID), nil
	}
	return p.respond(ctx, sess, userText)
}

func (p *Pipeline) transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.sttTimeout)
	defer cancel()

	start := time.Now()
	transcript, err := p.transcriber.Transcribe(ctx, audio)
	p.metrics.ObserveStageLatency(stageTranscribe, time.Since(start).Seconds())
	return transcript, err
}

// respond runs generation and synthesis for a confirmed transcript.
// Generation failure is fatal to the turn; synthesis failure degrades to a
// text-only reply.
func (p *Pipeline) respond(ctx context.Context, sess *agent.Session, userText string) (Turn, error) {
	genCtx, cancel := context.WithTimeout(ctx, p.genTimeout)
	defer cancel()

	start := time.Now()
	reply, err := sess.Respond(genCtx, userText)
	p.metrics.ObserveStageLatency(stageGenerate, time.Since(start).Seconds())
	if err != nil {
		p.metrics.ObserveTurn("generation_failed")
		return Turn{}, err
	}

	turn := Turn{UserText: userText, ReplyText: reply}
	turn.AudioFile = p.synthesizeCached(ctx, sess.CallID, reply)
	p.metrics.ObserveTurn("ok")
	return turn, nil
}

// Greeting returns the session's opening line together with its synthesized
// artifact. Fingerprints are keyed per call, so the greeting is synthesized
// once per call and later deliveries of the same webhook reuse the cached file.
func (p *Pipeline) Greeting(ctx context.Context, sess *agent.Session) (string, string) {
	text := sess.InitialGreeting()
	return text, p.synthesizeCached(ctx, sess.CallID, text)
}

func (p *Pipeline) shortCircuit(ctx context.Context, callSID string) Turn {
	p.metrics.ObserveTurn("no_transcript")
	return Turn{
		ReplyText:      FallbackReply,
		AudioFile:      p.synthesizeCached(ctx, callSID, FallbackReply),
		ShortCircuited: true,
	}
}

// synthesizeCached returns the artifact filename for (callSID, text),
// synthesizing only on a cache miss. Any synthesis failure returns an empty
// filename: the reply still reaches the caller as text spoken by the
// provider's own engine.
func (p *Pipeline) synthesizeCached(ctx context.Context, callSID, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	filename := p.cache.Filename(callSID, text)
	if p.cache.Exists(filename) {
		p.metrics.ObserveCache(true)
		return filename
	}
	p.metrics.ObserveCache(false)

	if p.synthesizer == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, p.ttsTimeout)
	defer cancel()

	start := time.Now()
	audio, err := p.synthesizer.Synthesize(ctx, text)
	p.metrics.ObserveStageLatency(stageSynthesize, time.Since(start).Seconds())
	if err != nil || len(audio) == 0 {
		p.logger.Warn("pipeline: synthesis failed, replying with text only",
			"error", err, "call_sid", callSID)
		p.metrics.ObserveStageFallback(stageSynthesize)
		return ""
	}
	if err := p.cache.Put(filename, audio); err != nil {
		p.logger.Warn("pipeline: failed to persist audio artifact",
			"error", err, "call_sid", callSID)
		return ""
	}
	return filename
}
