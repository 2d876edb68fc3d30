package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors for the capture and turn
// pipeline. They are advisory observability, never part of the correctness
// contract.
type Metrics struct {
	CapturesStarted  prometheus.Counter
	CapturesRejected prometheus.Counter
	CapturesFailed   prometheus.Counter
	ActiveCaptures   prometheus.Gauge
	CaptureBytes     prometheus.Counter

	ConversionFailures prometheus.Counter
	RemoteCallFailures *prometheus.CounterVec
	Turns              *prometheus.CounterVec
	TurnDuration       prometheus.Histogram

	PlaybackRejected prometheus.Counter
}

// New registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CapturesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "alina_captures_started_total",
			Help: "Total number of capture sessions started",
		}),
		CapturesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "alina_captures_rejected_total",
			Help: "Total number of capture requests rejected by the admission gate",
		}),
		CapturesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "alina_captures_failed_total",
			Help: "Total number of capture sessions that failed during streaming or decode",
		}),
		ActiveCaptures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alina_active_captures",
			Help: "Current number of capture sessions holding an admission slot",
		}),
		CaptureBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "alina_capture_bytes_total",
			Help: "Total number of compressed voice bytes received across captures",
		}),
		ConversionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "alina_conversion_failures_total",
			Help: "Total number of failed ffmpeg conversions",
		}),
		RemoteCallFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alina_remote_call_failures_total",
			Help: "Total number of failed remote service calls by stage",
		}, []string{"stage"}),
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alina_turns_total",
			Help: "Total number of conversation turns by result",
		}, []string{"result"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "alina_turn_duration_seconds",
			Help:    "Wall-clock duration of conversation turns",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		PlaybackRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "alina_playback_rejected_total",
			Help: "Total number of playback attempts rejected because the session was not ready",
		}),
	}
}
