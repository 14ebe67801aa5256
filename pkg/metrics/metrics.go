package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Agent metrics
	AgentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "caephub_agents_total",
			Help: "Total number of registered agents",
		},
	)

	// Message metrics
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caephub_messages_total",
			Help: "Total number of messages sent, by delivery kind",
		},
		[]string{"kind"}, // direct, broadcast
	)

	MessageContentBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caephub_message_content_bytes",
			Help:    "Size in bytes of stored message content",
			Buckets: prometheus.ExponentialBuckets(16, 4, 8),
		},
	)

	// Blob metrics
	BlobsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "caephub_blobs_total",
			Help: "Total number of distinct content-addressed blobs stored",
		},
	)

	BlobCodecGainPct = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caephub_blob_codec_gain_pct",
			Help:    "Size reduction percentage achieved by a codec invocation",
			Buckets: []float64{0, 5, 10, 25, 50, 75, 90},
		},
		[]string{"codec"},
	)

	// Task metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "caephub_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	TaskDoneGateFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caephub_task_done_gate_failures_total",
			Help: "Total number of update_task calls rejected by the done gate, by reason",
		},
		[]string{"reason"},
	)

	// Claim metrics
	ClaimsGrantedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "caephub_claims_granted_total",
			Help: "Total number of task claims granted",
		},
	)

	ClaimsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "caephub_claims_expired_total",
			Help: "Total number of claims observed expired on read",
		},
	)

	ClaimConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "caephub_claim_conflicts_total",
			Help: "Total number of claim attempts rejected because the task was already held",
		},
	)

	PollEmptyTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "caephub_poll_empty_total",
			Help: "Total number of poll_and_claim calls that found no eligible task",
		},
	)

	// Idempotency metrics
	IdempotencyHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "caephub_idempotency_hits_total",
			Help: "Total number of tool calls served from the idempotency cache",
		},
	)

	IdempotencyRecordsPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "caephub_idempotency_records_purged_total",
			Help: "Total number of idempotency records removed once past retention",
		},
	)

	// Raft / engine metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "caephub_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	EngineApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caephub_engine_apply_duration_seconds",
			Help:    "Time taken for an Engine.Apply call, by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Tool dispatch metrics
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caephub_tool_calls_total",
			Help: "Total number of tool invocations by tool and outcome",
		},
		[]string{"tool", "outcome"}, // outcome: success, error
	)

	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caephub_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds, by tool",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)

func init() {
	prometheus.MustRegister(AgentsTotal)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(MessageContentBytes)
	prometheus.MustRegister(BlobsTotal)
	prometheus.MustRegister(BlobCodecGainPct)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TaskDoneGateFailuresTotal)
	prometheus.MustRegister(ClaimsGrantedTotal)
	prometheus.MustRegister(ClaimsExpiredTotal)
	prometheus.MustRegister(ClaimConflictsTotal)
	prometheus.MustRegister(PollEmptyTotal)
	prometheus.MustRegister(IdempotencyHitsTotal)
	prometheus.MustRegister(IdempotencyRecordsPurgedTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(EngineApplyDuration)
	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(ToolCallDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
