// Package engine realizes the hub's single-writer transactional database on
// top of a single-node hashicorp/raft instance: Engine.Apply is the
// withTransaction(fn) primitive every mutation passes through, and reads
// bypass Raft to hit the storage layer directly.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/caephub/pkg/log"
	"github.com/cuemby/caephub/pkg/storage"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Config controls how the engine bootstraps its single-node Raft instance.
type Config struct {
	NodeID  string
	DataDir string
}

// Engine wraps a single-node Raft instance and the store it commits to. The
// hub never runs multi-node Raft (geographic replication is out of scope);
// Raft is used here purely to get an ordered, durable, crash-safe log of
// mutations with a built-in snapshot/restore cycle, instead of hand-rolling
// a mutex-guarded write path.
type Engine struct {
	raft  *raft.Raft
	fsm   *hubFSM
	store storage.Store
}

// New creates the on-disk Raft log/stable/snapshot stores, wires them to a
// fresh FSM over store, and bootstraps a single-node cluster.
func New(cfg Config, store storage.Store) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	fsm := newHubFSM(store)

	_, transport := raft.NewInmemTransport(raft.ServerAddress(cfg.NodeID))

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("creating raft log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("creating raft stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("creating raft instance: %w", err)
	}

	hasState, err := raft.HasExistingState(logStore, stableStore, snapshots)
	if err != nil {
		return nil, fmt.Errorf("checking existing raft state: %w", err)
	}
	if !hasState {
		future := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{ID: raftCfg.LocalID, Address: transport.LocalAddr()}},
		})
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("bootstrapping raft cluster: %w", err)
		}
	}

	e := &Engine{raft: r, fsm: fsm, store: store}
	if err := e.awaitLeadership(10 * time.Second); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) awaitLeadership(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.raft.State() == raft.Leader {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("engine: timed out waiting to become leader")
}

// IsLeader reports whether this (single) node currently holds leadership.
// In steady state this is always true once New has returned successfully;
// exposed for the health endpoint.
func (e *Engine) IsLeader() bool {
	return e.raft.State() == raft.Leader
}

// Apply commits cmd through the Raft log and returns whatever the FSM
// produced, or an error if the apply itself failed (timeout, not leader) or
// the FSM rejected the command.
func (e *Engine) Apply(cmd Command, timeout time.Duration) (interface{}, error) {
	data, err := cmdToBytes(cmd)
	if err != nil {
		return nil, err
	}

	future := e.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("engine: apply failed: %w", err)
	}

	resp := future.Response()
	result, ok := resp.(applyResult)
	if !ok {
		return nil, fmt.Errorf("engine: unexpected FSM response type %T", resp)
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return result.Value, nil
}

// NextMessageID allocates the next monotonic message ID directly from the
// store, bypassing the log the same way an id gets minted before the
// command that will reference it is ever constructed.
func (e *Engine) NextMessageID() (int64, error) {
	return e.store.NextMessageID()
}

// NextTaskID allocates the next monotonic task ID directly from the store.
func (e *Engine) NextTaskID() (int64, error) {
	return e.store.NextTaskID()
}

// Store exposes the read path. All reads bypass Raft consensus entirely.
func (e *Engine) Store() storage.Store {
	return e.store
}

// Shutdown releases the Raft instance and the underlying store.
func (e *Engine) Shutdown() error {
	if err := e.raft.Shutdown().Error(); err != nil {
		log.Error("engine shutdown: raft shutdown failed")
		return err
	}
	return e.store.Close()
}
