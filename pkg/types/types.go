package types

import "time"

// RuntimeMode constrains where an agent (or a task it claims) is allowed
// to execute.
type RuntimeMode string

const (
	RuntimeModeRepo     RuntimeMode = "repo"
	RuntimeModeIsolated RuntimeMode = "isolated"
	RuntimeModeAny      RuntimeMode = "any"
)

// RuntimeProfile describes the execution environment an agent runs in.
type RuntimeProfile struct {
	Mode   RuntimeMode
	Source string
}

// Compatible reports whether a task whose execution_mode is want can run
// under this profile: "any" matches anything, otherwise modes must be equal.
func (p RuntimeProfile) Compatible(want RuntimeMode) bool {
	if want == RuntimeModeAny || p.Mode == RuntimeModeAny {
		return true
	}
	return p.Mode == want
}

// Agent is an external autonomous process registered with the hub.
type Agent struct {
	ID             string
	RuntimeProfile RuntimeProfile
	Labels         map[string]string
	RegisteredAt   time.Time
	LastHeartbeat  time.Time
}

// Message is a single entry in the append-only message log.
type Message struct {
	ID        int64
	FromAgent string
	ToAgent   string // empty means broadcast
	Content   string
	Metadata  string
	TraceID   string
	SpanID    string
	CreatedAt int64 // ms epoch
	Broadcast bool
}

// ProtocolBlob is a content-addressed, possibly codec-encoded payload.
type ProtocolBlob struct {
	Hash      string
	Value     []byte
	CreatedAt int64
}

// BlobRefEnvelope is the small structured form embedded in message content
// to reference a ProtocolBlob instead of inlining large payloads.
type BlobRefEnvelope struct {
	Type          string `json:"type"`
	Hash          string `json:"hash"`
	DeclaredChars int    `json:"declared_chars"`
}

// BlobRefType is the fixed type marker carried by every blob-ref envelope.
const BlobRefType = "caep-blob-ref"

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether s is a terminal task status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusCancelled
}

// TaskPriority ranks tasks for claim scheduling, critical highest.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// Rank returns a higher-is-better ordering weight for priority comparisons.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// ConsistencyMode governs whether a task's done transition requires an
// independent verifier.
type ConsistencyMode string

const (
	ConsistencyRelaxed ConsistencyMode = "relaxed"
	ConsistencyStrict  ConsistencyMode = "strict"
)

// Task is a unit of work agents claim and execute.
type Task struct {
	ID                 int64
	Title              string
	Description        string
	CreatedBy          string
	AssignedTo         string
	Status             TaskStatus
	Priority           TaskPriority
	Namespace          string
	DependsOn          []int64
	ExecutionMode      RuntimeMode
	ConsistencyMode    ConsistencyMode
	Confidence         float64
	VerificationPassed bool
	VerifiedBy         string
	EvidenceRefs       []string
	CreatedAt          int64
	UpdatedAt          int64
}

// Claim is a time-bounded exclusive assignment of a Task to an Agent.
type Claim struct {
	TaskID         int64
	AgentID        string
	Token          string
	LeaseExpiresAt int64 // ms epoch
	ClaimedAt      int64
}

// Live reports whether the claim's lease has not yet expired at nowMs.
func (c Claim) Live(nowMs int64) bool {
	return c.LeaseExpiresAt > nowMs
}

// TaskArtifactLink records that an artifact has been attached to a task.
// SizeBytes and Digest are populated once the artifact byte transport
// (owned outside this module) finalizes the upload; until then Ready is
// false and the handoff assembler reports the attachment as not-yet-ready.
type TaskArtifactLink struct {
	TaskID     int64
	ArtifactID string
	AttachedBy string
	AttachedAt int64
	SizeBytes  int64
	Digest     string
	Ready      bool
}

// ArtifactAccessGrant records that an agent may read an artifact, the
// side effect attach_task_artifact performs against the artifact ACL
// collaborator for the task's current assignee.
type ArtifactAccessGrant struct {
	ArtifactID string
	AgentID    string
	GrantedAt  int64
}

// IdempotencyRecord is the first-result cache entry for (agent, tool, key).
// A failing call is cached exactly like a succeeding one, so a retry of a
// call that errored the first time replays the same error instead of
// re-running the handler; IsError distinguishes which case Result holds.
type IdempotencyRecord struct {
	AgentID  string
	Tool     string
	Key      string
	Result   []byte // serialized result, success or error
	IsError  bool
	StoredAt int64
}

// PollBackoffState tracks consecutive empty polls for one agent, used to
// derive the jittered retry_after_ms hint returned by poll_and_claim.
type PollBackoffState struct {
	AgentID               string
	ConsecutiveEmptyPolls int
	UpdatedAt             int64
}

// ActivityRecord is the minimal shape handed to the (external) activity-log
// sink after every tool call.
type ActivityRecord struct {
	ID        string
	AgentID   string
	Tool      string
	Success   bool
	ErrorCode string
	At        int64
}
