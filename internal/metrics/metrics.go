// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting boardsync runtime metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Internal state (source of truth for the JSON snapshot)
var (
	connects          int64
	reconnects        int64
	handshakeFailures int64
	framesRouted      int64
	sendsOK           int64
	sendsFailed       int64
	pollsOK           int64
	pollsFailed       int64
	markReads         int64
	lastPoll          int64
)

const counterInc int64 = 1

// Prometheus collectors
var (
	promConnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boardsync_connects_total",
			Help: "Total successful channel handshakes",
		},
	)
	promReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boardsync_reconnects_total",
			Help: "Total automatic reconnection attempts",
		},
	)
	promHandshakeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boardsync_handshake_failures_total",
			Help: "Total rejected or failed channel handshakes",
		},
	)
	promFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardsync_frames_total",
			Help: "Total inbound frames routed, by event category",
		},
		[]string{"event"},
	)
	promSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardsync_sends_total",
			Help: "Total acknowledged message sends",
		},
		[]string{"status"},
	)
	promPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardsync_poll_refreshes_total",
			Help: "Total notification poll refreshes",
		},
		[]string{"status"},
	)
	promMarkReads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boardsync_mark_read_total",
			Help: "Total optimistic mark-read operations",
		},
	)
	promInviteResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boardsync_invitation_responses_total",
			Help: "Total invitation accept/reject operations",
		},
		[]string{"action"},
	)
	promConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "boardsync_channel_connected",
			Help: "1 when the push channel is live, 0 otherwise",
		},
	)
	promUnread = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "boardsync_unread_notifications",
			Help: "Current unread notification count",
		},
	)
	promSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "boardsync_send_duration_seconds",
			Help: "Duration of acknowledged message sends",
			Buckets: []float64{
				0.01,
				0.05,
				0.1,
				0.25,
				0.5,
				1,
				2,
				5,
				10,
			},
		},
	)
	promLastPoll = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "boardsync_last_poll_timestamp_seconds",
			Help: "Unix timestamp of the last successful poll refresh",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promConnects,
		promReconnects,
		promHandshakeFailures,
		promFrames,
		promSends,
		promPolls,
		promMarkReads,
		promInviteResponses,
		promConnected,
		promUnread,
		promSendDuration,
		promLastPoll,
	)
}

// IncConnect increments the counter for successful handshakes.
func IncConnect() {
	atomic.AddInt64(&connects, counterInc)
	promConnects.Inc()
}

// IncReconnect increments the counter for automatic reconnection attempts.
func IncReconnect() {
	atomic.AddInt64(&reconnects, counterInc)
	promReconnects.Inc()
}

// IncHandshakeFailure increments the counter for rejected handshakes.
func IncHandshakeFailure() {
	atomic.AddInt64(&handshakeFailures, counterInc)
	promHandshakeFailures.Inc()
}

// IncFrame increments the counter for routed inbound frames.
func IncFrame(event string) {
	atomic.AddInt64(&framesRouted, counterInc)
	promFrames.WithLabelValues(event).Inc()
}

// IncSendSuccess increments the counter for acknowledged sends.
func IncSendSuccess() {
	atomic.AddInt64(&sendsOK, counterInc)
	promSends.WithLabelValues("success").Inc()
}

// IncSendFailure increments the counter for failed sends.
func IncSendFailure() {
	atomic.AddInt64(&sendsFailed, counterInc)
	promSends.WithLabelValues("failure").Inc()
}

// IncPollSuccess increments the counter for successful poll refreshes.
func IncPollSuccess() {
	atomic.AddInt64(&pollsOK, counterInc)
	promPolls.WithLabelValues("success").Inc()
}

// IncPollFailure increments the counter for failed poll refreshes.
func IncPollFailure() {
	atomic.AddInt64(&pollsFailed, counterInc)
	promPolls.WithLabelValues("failure").Inc()
}

// IncMarkRead increments the counter for optimistic mark-read operations.
func IncMarkRead() {
	atomic.AddInt64(&markReads, counterInc)
	promMarkReads.Inc()
}

// IncInvitationResponse records an invitation accept or reject.
// action: "accept" | "reject"
func IncInvitationResponse(action string) {
	promInviteResponses.WithLabelValues(action).Inc()
}

// SetConnected updates the channel liveness gauge.
func SetConnected(live bool) {
	if live {
		promConnected.Set(1)
		return
	}
	promConnected.Set(0)
}

// SetUnread updates the unread notification gauge.
func SetUnread(n int) {
	promUnread.Set(float64(n))
}

// ObserveSendDuration records the duration (in seconds) of an acknowledged
// send in the Prometheus histogram.
func ObserveSendDuration(seconds float64) {
	promSendDuration.Observe(seconds)
}

// SetLastPoll stores the provided time as the last successful poll timestamp
// and updates the corresponding Prometheus gauge.
func SetLastPoll(t time.Time) {
	atomic.StoreInt64(&lastPoll, t.Unix())
	promLastPoll.Set(float64(t.Unix()))
}

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	Connects          int64  `json:"connects"`
	Reconnects        int64  `json:"reconnects"`
	HandshakeFailures int64  `json:"handshake_failures"`
	FramesRouted      int64  `json:"frames_routed"`
	SendsOK           int64  `json:"sends_ok"`
	SendsFailed       int64  `json:"sends_failed"`
	PollsOK           int64  `json:"polls_ok"`
	PollsFailed       int64  `json:"polls_failed"`
	MarkReads         int64  `json:"mark_reads"`
	LastPoll          int64  `json:"last_poll_timestamp"`
	LastPollHuman     string `json:"last_poll_human"`
}

// GetSnapshot returns a StatsSnapshot with the current values of all
// internal counters and timestamps.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastPoll)
	return StatsSnapshot{
		Connects:          atomic.LoadInt64(&connects),
		Reconnects:        atomic.LoadInt64(&reconnects),
		HandshakeFailures: atomic.LoadInt64(&handshakeFailures),
		FramesRouted:      atomic.LoadInt64(&framesRouted),
		SendsOK:           atomic.LoadInt64(&sendsOK),
		SendsFailed:       atomic.LoadInt64(&sendsFailed),
		PollsOK:           atomic.LoadInt64(&pollsOK),
		PollsFailed:       atomic.LoadInt64(&pollsFailed),
		MarkReads:         atomic.LoadInt64(&markReads),
		LastPoll:          ts,
		LastPollHuman:     time.Unix(ts, 0).Format(time.RFC3339),
	}
}

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler returns an HTTP handler that serves the current metrics as
// a JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}
