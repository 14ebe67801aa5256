/*
Package metrics provides Prometheus metrics collection and exposition for
caephub. It holds no health-check state; pkg/api's health handlers query
the engine and store directly.

# Architecture

	┌──────────────────── METRICS SYSTEM ───────────────────────┐
	│                                                             │
	│  ┌─────────────────────────────────────────────┐          │
	│  │           Metric Registry                     │          │
	│  │  - Registered once via init()                │          │
	│  │  - prometheus.MustRegister per metric         │          │
	│  └──────────────────┬──────────────────────────┘          │
	│                     │                                       │
	│  ┌──────────────────▼──────────────────────────┐          │
	│  │              Collector                        │          │
	│  │  - Polls engine.Store() every 15s            │          │
	│  │  - Refreshes gauges (agents, tasks, leader)  │          │
	│  └──────────────────┬──────────────────────────┘          │
	│                     │                                       │
	│  ┌──────────────────▼──────────────────────────┐          │
	│  │              HTTP Exposition                  │          │
	│  │  - metrics.Handler() mounted at /metrics     │          │
	│  └───────────────────────────────────────────────┘          │
	└─────────────────────────────────────────────────────────┘

# Metric Catalogue

caephub_agents_total:
  - Type: Gauge
  - Description: Currently registered agents

caephub_messages_total{kind}:
  - Type: Counter
  - kind: direct, broadcast

caephub_blob_codec_gain_pct{codec}:
  - Type: Histogram
  - Description: Size reduction percentage achieved per codec invocation

caephub_tasks_total{status}:
  - Type: Gauge
  - status: pending, in_progress, blocked, done, cancelled

caephub_task_done_gate_failures_total{reason}:
  - Type: Counter
  - reason: confidence, verification, evidence, verifier_required

caephub_claims_granted_total / caephub_claims_expired_total / caephub_claim_conflicts_total:
  - Type: Counter

caephub_poll_empty_total:
  - Type: Counter
  - Description: poll_and_claim calls that found nothing to claim

caephub_idempotency_hits_total / caephub_idempotency_records_purged_total:
  - Type: Counter

caephub_raft_is_leader:
  - Type: Gauge
  - Description: 1 if this node holds Raft leadership, else 0

caephub_tool_calls_total{tool, outcome} / caephub_tool_call_duration_seconds{tool}:
  - Type: Counter / Histogram
  - Description: every dispatched tool call, success or error

# Timer

Timer wraps time.Now() and exposes ObserveDuration/ObserveDurationVec for the
common "measure this call, record it to a histogram" pattern used throughout
pkg/hub.
*/
package metrics
