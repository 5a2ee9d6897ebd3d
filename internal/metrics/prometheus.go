// Package metrics exposes session counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session contains all Prometheus metrics of one session manager.
type Session struct {
	// Connection lifecycle
	ConnectAttempts prometheus.Counter
	ConnectFailures prometheus.Counter
	Connected       prometheus.Gauge

	// Event channel
	EventsEmitted *prometheus.CounterVec
	EventsQueued  prometheus.Gauge

	// Outbound audio
	FramesSent             prometheus.Counter
	FramesFailed           prometheus.Counter
	OutboundPendingSamples prometheus.Gauge

	// Inbound audio
	FramesDecoded prometheus.Counter
	ActiveTracks  prometheus.Gauge
}

// New creates session metrics registered with reg. A nil reg yields working
// metrics that are not exported anywhere.
func New(reg prometheus.Registerer) *Session {
	f := promauto.With(reg)
	return &Session{
		ConnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_connect_attempts_total",
			Help: "Total number of room connection attempts",
		}),
		ConnectFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_connect_failures_total",
			Help: "Total number of failed room connection attempts",
		}),
		Connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicelink_connected",
			Help: "1 while a room connection is established",
		}),
		EventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicelink_events_emitted_total",
			Help: "Events queued for the host, by kind",
		}, []string{"kind"}),
		EventsQueued: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicelink_events_queued",
			Help: "Events waiting for the next poll",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_outbound_frames_sent_total",
			Help: "10ms microphone frames handed to the local track",
		}),
		FramesFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_outbound_frames_failed_total",
			Help: "10ms microphone frames the local track rejected",
		}),
		OutboundPendingSamples: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicelink_outbound_pending_samples",
			Help: "Microphone samples buffered short of a full frame",
		}),
		FramesDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "voicelink_inbound_frames_decoded_total",
			Help: "Decoded remote audio frames delivered to the host",
		}),
		ActiveTracks: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicelink_inbound_active_tracks",
			Help: "Remote audio tracks currently being decoded",
		}),
	}
}
