package directory

import (
	"testing"

	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/storage"
	"github.com/cuemby/caephub/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)

	e, err := engine.New(engine.Config{NodeID: "node-1", DataDir: t.TempDir()}, store)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })

	return New(e)
}

func TestRegisterCreatesAgent(t *testing.T) {
	d := newTestDirectory(t)

	agent, err := d.Register(RegisterRequest{
		AgentID:        "agent-1",
		RuntimeProfile: types.RuntimeProfile{Mode: types.RuntimeModeRepo, Source: "repo-a"},
		Labels:         map[string]string{"team": "infra"},
	})
	require.NoError(t, err)
	assert.Equal(t, "agent-1", agent.ID)
	assert.False(t, agent.RegisteredAt.IsZero())
	assert.Equal(t, agent.RegisteredAt, agent.LastHeartbeat)

	fetched, err := d.Get("agent-1")
	require.NoError(t, err)
	assert.Equal(t, types.RuntimeModeRepo, fetched.RuntimeProfile.Mode)
	assert.Equal(t, "infra", fetched.Labels["team"])
}

func TestRegisterPreservesOriginalRegisteredAt(t *testing.T) {
	d := newTestDirectory(t)

	first, err := d.Register(RegisterRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	second, err := d.Register(RegisterRequest{AgentID: "agent-1", Labels: map[string]string{"updated": "true"}})
	require.NoError(t, err)

	assert.Equal(t, first.RegisteredAt, second.RegisteredAt)
	assert.Equal(t, "true", second.Labels["updated"])
}

func TestHeartbeatUpdatesLastHeartbeat(t *testing.T) {
	d := newTestDirectory(t)

	registered, err := d.Register(RegisterRequest{AgentID: "agent-1"})
	require.NoError(t, err)

	err = d.Heartbeat("agent-1")
	require.NoError(t, err)

	fetched, err := d.Get("agent-1")
	require.NoError(t, err)
	assert.True(t, !fetched.LastHeartbeat.Before(registered.LastHeartbeat))
}

func TestHeartbeatUnknownAgentFails(t *testing.T) {
	d := newTestDirectory(t)

	err := d.Heartbeat("ghost")
	assert.Error(t, err)
}

func TestListReturnsAllRegisteredAgents(t *testing.T) {
	d := newTestDirectory(t)

	_, err := d.Register(RegisterRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	_, err = d.Register(RegisterRequest{AgentID: "agent-2"})
	require.NoError(t, err)

	agents, err := d.List()
	require.NoError(t, err)
	assert.Len(t, agents, 2)
}

func TestRegisterRequiresAgentID(t *testing.T) {
	d := newTestDirectory(t)

	_, err := d.Register(RegisterRequest{})
	assert.Error(t, err)
}

func TestTouchRegistersUnknownAgent(t *testing.T) {
	d := newTestDirectory(t)

	agent, err := d.Touch("agent-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", agent.ID)
}

func TestTouchPreservesProfileOnKnownAgent(t *testing.T) {
	d := newTestDirectory(t)

	_, err := d.Register(RegisterRequest{AgentID: "agent-1", RuntimeProfile: types.RuntimeProfile{Mode: types.RuntimeModeIsolated}})
	require.NoError(t, err)

	agent, err := d.Touch("agent-1")
	require.NoError(t, err)
	assert.Equal(t, types.RuntimeModeIsolated, agent.RuntimeProfile.Mode)
}
