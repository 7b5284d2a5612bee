package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestVoiceMetricsRegisterAndObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewVoiceMetrics(reg)

	m.ObserveInbound("call_started", "ok")
	m.ObserveInbound("call_started", "ok")
	m.ObserveTurn("ok")
	m.ObserveStageLatency("generate", 0.42)
	m.ObserveStageFallback("tts")
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.SetActiveCalls(3)

	if got := testutil.ToFloat64(m.inboundTotal.WithLabelValues("call_started", "ok")); got != 2 {
		t.Fatalf("inbound counter: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.cacheTotal.WithLabelValues("hit")); got != 1 {
		t.Fatalf("cache hit counter: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.activeCalls); got != 3 {
		t.Fatalf("active calls gauge: got %v, want 3", got)
	}
}

func TestNilReceiverSafe(t *testing.T) {
	var m *VoiceMetrics
	m.ObserveInbound("call_started", "ok")
	m.ObserveTurn("ok")
	m.ObserveStageLatency("stt", 0.1)
	m.ObserveStageFallback("stt")
	m.ObserveCache(false)
	m.SetActiveCalls(0)
}
