package metrics

import "github.com/prometheus/client_golang/prometheus"

// VoiceMetrics exposes counters/histograms for the call-handling flow.
type VoiceMetrics struct {
	inboundTotal  *prometheus.CounterVec
	turnsTotal    *prometheus.CounterVec
	stageLatency  *prometheus.HistogramVec
	stageFallback *prometheus.CounterVec
	cacheTotal    *prometheus.CounterVec
	activeCalls   prometheus.Gauge
}

func NewVoiceMetrics(reg prometheus.Registerer) *VoiceMetrics {
	m := &VoiceMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebot",
			Subsystem: "telephony",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound Twilio webhooks",
		}, []string{"event_type", "status"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebot",
			Subsystem: "pipeline",
			Name:      "turns_total",
			Help:      "Total conversation turns by outcome",
		}, []string{"outcome"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicebot",
			Subsystem: "pipeline",
			Name:      "stage_latency_seconds",
			Help:      "Latency of each pipeline stage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebot",
			Subsystem: "pipeline",
			Name:      "stage_fallback_total",
			Help:      "Total stage failures recovered via fallback",
		}, []string{"stage"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicebot",
			Subsystem: "synthesis",
			Name:      "cache_total",
			Help:      "Synthesized-audio cache lookups",
		}, []string{"result"}),
		activeCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voicebot",
			Subsystem: "telephony",
			Name:      "active_calls",
			Help:      "Number of calls with a live conversation session",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.turnsTotal, m.stageLatency, m.stageFallback, m.cacheTotal, m.activeCalls)
	return m
}

func (m *VoiceMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *VoiceMetrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
}

func (m *VoiceMetrics) ObserveStageLatency(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(seconds)
}

func (m *VoiceMetrics) ObserveStageFallback(stage string) {
	if m == nil {
		return
	}
	m.stageFallback.WithLabelValues(stage).Inc()
}

func (m *VoiceMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

func (m *VoiceMetrics) SetActiveCalls(n int) {
	if m == nil {
		return
	}
	m.activeCalls.Set(float64(n))
}
