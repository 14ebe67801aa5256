package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/caephub/pkg/storage"
	"github.com/cuemby/caephub/pkg/types"
	"github.com/hashicorp/raft"
)

// hubFSM implements the Raft finite state machine that applies every
// committed command to the underlying store. It never generates IDs or
// timestamps itself: callers resolve those (via Engine.NextMessageID,
// NextTaskID, or their own clock) before building the Command, the same way
// the rest of the hub treats the FSM as a dumb, deterministic applier.
type hubFSM struct {
	mu    sync.RWMutex
	store storage.Store
}

func newHubFSM(store storage.Store) *hubFSM {
	return &hubFSM{store: store}
}

// applyResult is what every Apply branch returns: either a value the caller
// cares about (e.g. PutBlob's created bool) or an error.
type applyResult struct {
	Value interface{}
	Err   error
}

// Apply applies a single committed Raft log entry to the FSM.
func (f *hubFSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return applyResult{Err: fmt.Errorf("unmarshal command: %w", err)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case OpUpsertAgent:
		var agent types.Agent
		if err := json.Unmarshal(cmd.Data, &agent); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.UpsertAgent(&agent)}

	case OpAppendMessage:
		var msg types.Message
		if err := json.Unmarshal(cmd.Data, &msg); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.AppendMessage(&msg)}

	case OpMarkMessageRead:
		var payload markMessageReadPayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.MarkMessageRead(payload.AgentID, payload.MessageID, payload.At)}

	case OpPutBlob:
		var payload putBlobPayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return applyResult{Err: err}
		}
		created, err := f.store.PutBlob(payload.Hash, payload.Value, payload.CreatedAt)
		return applyResult{Value: created, Err: err}

	case OpCreateTask:
		var task types.Task
		if err := json.Unmarshal(cmd.Data, &task); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.CreateTask(&task)}

	case OpUpdateTask:
		var task types.Task
		if err := json.Unmarshal(cmd.Data, &task); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.UpdateTask(&task)}

	case OpPutClaim:
		var claim types.Claim
		if err := json.Unmarshal(cmd.Data, &claim); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.PutClaim(&claim)}

	case OpAttachArtifact:
		var link types.TaskArtifactLink
		if err := json.Unmarshal(cmd.Data, &link); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.AttachArtifact(&link)}

	case OpGrantArtifactACL:
		var grant types.ArtifactAccessGrant
		if err := json.Unmarshal(cmd.Data, &grant); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.GrantArtifactAccess(&grant)}

	case OpPutIdempotency:
		var record types.IdempotencyRecord
		if err := json.Unmarshal(cmd.Data, &record); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.PutIdempotency(&record)}

	case OpPutPollBackoff:
		var state types.PollBackoffState
		if err := json.Unmarshal(cmd.Data, &state); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.PutPollBackoff(&state)}

	case OpAppendActivity:
		var record types.ActivityRecord
		if err := json.Unmarshal(cmd.Data, &record); err != nil {
			return applyResult{Err: err}
		}
		return applyResult{Err: f.store.AppendActivity(&record)}

	case OpPurgeIdempotency:
		var payload purgeIdempotencyPayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return applyResult{Err: err}
		}
		purged, err := f.store.PurgeIdempotencyBefore(payload.Cutoff)
		return applyResult{Value: purged, Err: err}

	default:
		return applyResult{Err: fmt.Errorf("unknown command: %s", cmd.Op)}
	}
}

// Snapshot creates a point-in-time snapshot of the FSM's state.
func (f *hubFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	agents, err := f.store.ListAgents()
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	messages, err := f.store.ListMessages()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	tasks, err := f.store.ListTasks()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	claims, err := f.store.ListClaims()
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}

	return &hubSnapshot{
		Agents:   agents,
		Messages: messages,
		Tasks:    tasks,
		Claims:   claims,
	}, nil
}

// Restore restores the FSM from a snapshot taken by Snapshot.
func (f *hubFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snapshot hubSnapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, agent := range snapshot.Agents {
		if err := f.store.UpsertAgent(agent); err != nil {
			return fmt.Errorf("restore agent: %w", err)
		}
	}
	for _, msg := range snapshot.Messages {
		if err := f.store.AppendMessage(msg); err != nil {
			return fmt.Errorf("restore message: %w", err)
		}
	}
	for _, task := range snapshot.Tasks {
		if err := f.store.CreateTask(task); err != nil {
			return fmt.Errorf("restore task: %w", err)
		}
	}
	for _, claim := range snapshot.Claims {
		if err := f.store.PutClaim(claim); err != nil {
			return fmt.Errorf("restore claim: %w", err)
		}
	}

	return nil
}

// hubSnapshot is the serialized form of the FSM's state, covering the
// entities whose reconstruction order matters (agents before messages,
// tasks before claims). Blobs, artifact links, idempotency records, poll
// backoff state, and activity are append/keyed and recovered incrementally
// as their owning writes replay.
type hubSnapshot struct {
	Agents   []*types.Agent
	Messages []*types.Message
	Tasks    []*types.Task
	Claims   []*types.Claim
}

// Persist writes the snapshot to sink.
func (s *hubSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release releases any resources held by the snapshot. None are held.
func (s *hubSnapshot) Release() {}
