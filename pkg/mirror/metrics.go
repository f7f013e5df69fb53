package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "respview",
			Subsystem: "mirror",
			Name:      "active_sessions",
			Help:      "Number of registered mirror sessions",
		},
	)

	sessionStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "respview",
			Subsystem: "mirror",
			Name:      "session_starts_total",
			Help:      "Session start attempts by result",
		},
		[]string{"result"},
	)

	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "respview",
			Subsystem: "mirror",
			Name:      "ticks_total",
			Help:      "Capture ticks by outcome (ran or skipped)",
		},
		[]string{"outcome"},
	)

	capturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "respview",
			Subsystem: "mirror",
			Name:      "captures_total",
			Help:      "Per-device frame captures by result",
		},
		[]string{"result"},
	)

	captureDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "respview",
			Subsystem: "mirror",
			Name:      "capture_duration_seconds",
			Help:      "Time from device turn start to frame published",
			Buckets:   prometheus.ExponentialBuckets(0.025, 2, 9), // 25ms to ~6.4s
		},
	)

	frameBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "respview",
			Subsystem: "mirror",
			Name:      "frame_bytes",
			Help:      "Size of captured JPEG frames",
			Buckets:   prometheus.ExponentialBuckets(4096, 2, 10),
		},
	)

	inputEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "respview",
			Subsystem: "mirror",
			Name:      "input_events_total",
			Help:      "Forwarded input and reload commands by kind and result",
		},
		[]string{"kind", "result"},
	)

	teardownFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "respview",
			Subsystem: "mirror",
			Name:      "teardown_failures_total",
			Help:      "Teardown steps that returned an error",
		},
		[]string{"step"},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
