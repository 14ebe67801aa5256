// Package directory is the hub's agent registry: registering a runtime
// profile, recording heartbeats, and listing who is currently known to the
// hub. It is the thinnest of the domain packages, mirroring the way the
// teacher's manager wraps a single entity (CreateNode/UpdateNode/GetNode)
// around the engine.
package directory

import (
	"fmt"
	"time"

	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/types"
)

const applyTimeout = 5 * time.Second

// Directory manages agent registration over an Engine.
type Directory struct {
	eng *engine.Engine
}

// New creates a Directory over eng.
func New(eng *engine.Engine) *Directory {
	return &Directory{eng: eng}
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	AgentID        string
	RuntimeProfile types.RuntimeProfile
	Labels         map[string]string
}

// Register upserts an agent's runtime profile and labels, setting both
// RegisteredAt and LastHeartbeat to now. Calling Register again for an
// already-known agent id refreshes its profile and labels and keeps its
// original RegisteredAt, so only LastHeartbeat moves. Register and update are
// collapsed into one idempotent upsert rather than a separate pair.
func (d *Directory) Register(req RegisterRequest) (*types.Agent, error) {
	if req.AgentID == "" {
		return nil, fmt.Errorf("directory: agent id is required")
	}

	now := time.Now()
	agent := &types.Agent{
		ID:             req.AgentID,
		RuntimeProfile: req.RuntimeProfile,
		Labels:         req.Labels,
		RegisteredAt:   now,
		LastHeartbeat:  now,
	}

	if existing, err := d.Get(req.AgentID); err == nil && existing != nil {
		agent.RegisteredAt = existing.RegisteredAt
	}

	cmd, err := engine.NewCommand(engine.OpUpsertAgent, agent)
	if err != nil {
		return nil, err
	}
	if _, err := d.eng.Apply(cmd, applyTimeout); err != nil {
		return nil, err
	}
	return agent, nil
}

// Heartbeat refreshes an already-registered agent's LastHeartbeat. It
// returns an error if the agent has never registered.
func (d *Directory) Heartbeat(agentID string) error {
	agent, err := d.Get(agentID)
	if err != nil {
		return fmt.Errorf("directory: unknown agent %q: %w", agentID, err)
	}

	agent.LastHeartbeat = time.Now()

	cmd, err := engine.NewCommand(engine.OpUpsertAgent, agent)
	if err != nil {
		return err
	}
	_, err = d.eng.Apply(cmd, applyTimeout)
	return err
}

// Touch is the heartbeat side effect every tool call runs against its
// acting agent: it bumps LastHeartbeat for an already-known agent, or
// silently registers one with a zero-value runtime profile if this is
// its first contact with the hub — tool calls never fail merely because
// the caller skipped an explicit register step.
func (d *Directory) Touch(agentID string) (*types.Agent, error) {
	if agentID == "" {
		return nil, fmt.Errorf("directory: agent id is required")
	}

	if err := d.Heartbeat(agentID); err == nil {
		return d.Get(agentID)
	}

	return d.Register(RegisterRequest{AgentID: agentID})
}

// Get returns the agent registered under id, or nil if it has never
// registered.
func (d *Directory) Get(id string) (*types.Agent, error) {
	agent, err := d.eng.Store().GetAgent(id)
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// List returns every registered agent.
func (d *Directory) List() ([]*types.Agent, error) {
	return d.eng.Store().ListAgents()
}
