/*
Package storage provides BoltDB-backed persistence for every entity the hub's
engine FSM applies: agents, messages, protocol blobs, tasks, claims, artifact
links, idempotency records, poll backoff state, and the activity audit trail.

# Architecture

caephub uses BoltDB (bbolt) for embedded, transactional storage:

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            BoltStore                        │          │
	│  │  - File: <dataDir>/caephub.db               │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Bucket Structure                │          │
	│  │  ┌────────────────────────────────────┐     │          │
	│  │  │ agents          (Agent ID)         │     │          │
	│  │  │ messages        (monotonic Msg ID) │     │          │
	│  │  │ message_reads   (agent\x00msgID)   │     │          │
	│  │  │ blobs           (content hash)     │     │          │
	│  │  │ tasks           (monotonic Task ID)│     │          │
	│  │  │ claims          (Task ID)          │     │          │
	│  │  │ task_artifact_links (taskID\x00id) │     │          │
	│  │  │ idempotency     (agent\x00tool\x00key) │ │          │
	│  │  │ poll_backoff    (Agent ID)         │     │          │
	│  │  │ activity        (monotonic seq)    │     │          │
	│  │  └────────────────────────────────────┘     │          │
	│  └────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────┘

Monotonic Message and Task IDs come from each bucket's own NextSequence(),
so ID order always tracks insertion order even under concurrent writers —
though in practice every write is serialized through the Raft engine's FSM,
so there never are concurrent writers.

Reads (List*, Get*) bypass the engine and hit the store directly with
db.View; they never need consensus because the engine is single-node.
Writes go through engine.Engine.Apply, which runs them inside the Raft
log-apply path, with two exceptions that write to the store directly:
NextMessageID/NextTaskID sequence allocation, and the hub's per-call
AppendActivity record.

# Why BoltDB

No separate database process, no network round-trip for reads, and native
Go transactions that the Raft FSM's Apply/Snapshot/Restore cycle maps onto
directly: Persist walks every bucket into a JSON snapshot, Restore replays
it bucket by bucket.
*/
package storage
