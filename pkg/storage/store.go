package storage

import (
	"github.com/cuemby/caephub/pkg/types"
)

// Store defines the interface for the hub's durable state: every entity the
// rest of the packages read and write goes through here. BoltStore is the
// only implementation; reads bypass the Raft engine and hit the store
// directly, writes are called from inside an engine.Apply except for the
// Next*ID sequence allocators and the hub's AppendActivity record.
type Store interface {
	// Agents
	UpsertAgent(agent *types.Agent) error
	GetAgent(id string) (*types.Agent, error)
	ListAgents() ([]*types.Agent, error)

	// Messages
	NextMessageID() (int64, error)
	AppendMessage(msg *types.Message) error
	GetMessage(id int64) (*types.Message, error)
	ListMessages() ([]*types.Message, error)
	MarkMessageRead(agentID string, messageID int64, at int64) error
	IsMessageRead(agentID string, messageID int64) (bool, error)

	// Protocol blobs
	PutBlob(hash string, value []byte, createdAt int64) (created bool, err error)
	GetBlob(hash string) (*types.ProtocolBlob, error)

	// Tasks
	NextTaskID() (int64, error)
	CreateTask(task *types.Task) error
	GetTask(id int64) (*types.Task, error)
	ListTasks() ([]*types.Task, error)
	UpdateTask(task *types.Task) error

	// Claims (upsert-only; a release is recorded as an already-expired claim
	// rather than deleted, so history survives for audit)
	PutClaim(claim *types.Claim) error
	GetClaim(taskID int64) (*types.Claim, error)
	ListClaims() ([]*types.Claim, error)

	// Task artifact links
	AttachArtifact(link *types.TaskArtifactLink) error
	ListArtifactsForTask(taskID int64) ([]*types.TaskArtifactLink, error)

	// Artifact ACL (backed by the same store per the hub's collaborator
	// design note; a separate service could implement this remotely)
	GrantArtifactAccess(grant *types.ArtifactAccessGrant) error
	HasArtifactAccess(artifactID, agentID string) (bool, error)

	// Idempotency
	GetIdempotency(agentID, tool, key string) (*types.IdempotencyRecord, error)
	PutIdempotency(record *types.IdempotencyRecord) error
	PurgeIdempotencyBefore(cutoff int64) (int, error)

	// Poll backoff
	GetPollBackoff(agentID string) (*types.PollBackoffState, error)
	PutPollBackoff(state *types.PollBackoffState) error

	// Activity (persisted audit trail; pkg/events.Broker is the live,
	// non-persistent fan-out of the same occurrences)
	AppendActivity(record *types.ActivityRecord) error
	ListRecentActivity(limit int) ([]*types.ActivityRecord, error)

	// Utility
	Close() error
}
