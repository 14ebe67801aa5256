package engine

import (
	"encoding/json"

	"github.com/cuemby/caephub/pkg/types"
)

// Op names a mutation the FSM knows how to apply. Every write to the hub's
// state passes through the engine as one of these, so that the write is
// serialized through the Raft log exactly once (the withTransaction
// primitive described in the hub's design notes).
type Op string

const (
	OpUpsertAgent      Op = "upsert_agent"
	OpAppendMessage    Op = "append_message"
	OpMarkMessageRead  Op = "mark_message_read"
	OpPutBlob          Op = "put_blob"
	OpCreateTask       Op = "create_task"
	OpUpdateTask       Op = "update_task"
	OpPutClaim         Op = "put_claim"
	OpAttachArtifact   Op = "attach_artifact"
	OpGrantArtifactACL Op = "grant_artifact_acl"
	OpPutIdempotency   Op = "put_idempotency"
	OpPutPollBackoff   Op = "put_poll_backoff"
	OpAppendActivity   Op = "append_activity"
	OpPurgeIdempotency Op = "purge_idempotency"
)

// Command is a single state-change operation placed in the Raft log.
type Command struct {
	Op   Op              `json:"op"`
	Data json.RawMessage `json:"data"`
}

// NewCommand marshals payload into a Command for the given op.
func NewCommand(op Op, payload interface{}) (Command, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, err
	}
	return Command{Op: op, Data: data}, nil
}

func cmdToBytes(cmd Command) ([]byte, error) {
	return json.Marshal(cmd)
}

type markMessageReadPayload struct {
	AgentID   string `json:"agent_id"`
	MessageID int64  `json:"message_id"`
	At        int64  `json:"at"`
}

type putBlobPayload struct {
	Hash      string `json:"hash"`
	Value     []byte `json:"value"`
	CreatedAt int64  `json:"created_at"`
}

type purgeIdempotencyPayload struct {
	Cutoff int64 `json:"cutoff"`
}

// NewMarkMessageReadCommand builds the command that records agentID having
// read messageID at at (ms epoch).
func NewMarkMessageReadCommand(agentID string, messageID int64, at int64) (Command, error) {
	return NewCommand(OpMarkMessageRead, markMessageReadPayload{AgentID: agentID, MessageID: messageID, At: at})
}

// NewPutBlobCommand builds the command that inserts-or-reuses a blob keyed
// by hash; the FSM's response Value is a bool reporting whether it was
// newly created.
func NewPutBlobCommand(hash string, value []byte, createdAt int64) (Command, error) {
	return NewCommand(OpPutBlob, putBlobPayload{Hash: hash, Value: value, CreatedAt: createdAt})
}

// NewPurgeIdempotencyCommand builds the command that deletes idempotency
// records stored before cutoff (ms epoch); the FSM's response Value is the
// number of records purged.
func NewPurgeIdempotencyCommand(cutoff int64) (Command, error) {
	return NewCommand(OpPurgeIdempotency, purgeIdempotencyPayload{Cutoff: cutoff})
}

// NewGrantArtifactACLCommand builds the command recording that agentID may
// read artifactID, the side effect attach_task_artifact performs against
// the artifact ACL collaborator.
func NewGrantArtifactACLCommand(grant types.ArtifactAccessGrant) (Command, error) {
	return NewCommand(OpGrantArtifactACL, grant)
}
