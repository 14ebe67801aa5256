package engine

import (
	"testing"
	"time"

	"github.com/cuemby/caephub/pkg/storage"
	"github.com/cuemby/caephub/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)

	e, err := New(Config{NodeID: "node-1", DataDir: t.TempDir()}, store)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })
	return e
}

func TestEngineBecomesLeader(t *testing.T) {
	e := newTestEngine(t)
	assert.True(t, e.IsLeader())
}

func TestEngineApplyUpsertAgent(t *testing.T) {
	e := newTestEngine(t)

	cmd, err := NewCommand(OpUpsertAgent, &types.Agent{ID: "agent-1"})
	require.NoError(t, err)

	_, err = e.Apply(cmd, 2*time.Second)
	require.NoError(t, err)

	agent, err := e.Store().GetAgent("agent-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", agent.ID)
}

func TestEngineApplyPutBlobReturnsCreatedFlag(t *testing.T) {
	e := newTestEngine(t)

	cmd, err := NewPutBlobCommand("hash-1", []byte("payload"), 1000)
	require.NoError(t, err)

	value, err := e.Apply(cmd, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, true, value)

	value, err = e.Apply(cmd, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, false, value)
}

func TestEngineApplyUnknownOpFails(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Apply(Command{Op: "not_a_real_op"}, 2*time.Second)
	assert.Error(t, err)
}

func TestEngineNextIDsAreMonotonic(t *testing.T) {
	e := newTestEngine(t)

	m1, err := e.NextMessageID()
	require.NoError(t, err)
	m2, err := e.NextMessageID()
	require.NoError(t, err)
	assert.Equal(t, m1+1, m2)

	t1, err := e.NextTaskID()
	require.NoError(t, err)
	t2, err := e.NextTaskID()
	require.NoError(t, err)
	assert.Equal(t, t1+1, t2)
}
