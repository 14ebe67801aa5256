package storage

import (
	"testing"

	"github.com/cuemby/caephub/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAgentUpsertAndGet(t *testing.T) {
	store := newTestStore(t)

	agent := &types.Agent{ID: "agent-1", Labels: map[string]string{"role": "worker"}}
	require.NoError(t, store.UpsertAgent(agent))

	got, err := store.GetAgent("agent-1")
	require.NoError(t, err)
	assert.Equal(t, "worker", got.Labels["role"])
}

func TestMessageSequenceIsMonotonic(t *testing.T) {
	store := newTestStore(t)

	first, err := store.NextMessageID()
	require.NoError(t, err)
	second, err := store.NextMessageID()
	require.NoError(t, err)

	assert.Equal(t, first+1, second)
}

func TestMessageReadMarksArePerAgent(t *testing.T) {
	store := newTestStore(t)

	read, err := store.IsMessageRead("agent-1", 5)
	require.NoError(t, err)
	assert.False(t, read)

	require.NoError(t, store.MarkMessageRead("agent-1", 5, 1000))

	read, err = store.IsMessageRead("agent-1", 5)
	require.NoError(t, err)
	assert.True(t, read)

	read, err = store.IsMessageRead("agent-2", 5)
	require.NoError(t, err)
	assert.False(t, read)
}

func TestPutBlobDedupesByHash(t *testing.T) {
	store := newTestStore(t)

	created, err := store.PutBlob("hash-1", []byte("value"), 1000)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.PutBlob("hash-1", []byte("value"), 2000)
	require.NoError(t, err)
	assert.False(t, created)

	blob, err := store.GetBlob("hash-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), blob.CreatedAt)
}

func TestTaskCreateListUpdate(t *testing.T) {
	store := newTestStore(t)

	id, err := store.NextTaskID()
	require.NoError(t, err)

	task := &types.Task{ID: id, Title: "do thing", Status: types.TaskStatusPending}
	require.NoError(t, store.CreateTask(task))

	tasks, err := store.ListTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task.Status = types.TaskStatusDone
	require.NoError(t, store.UpdateTask(task))

	got, err := store.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusDone, got.Status)
}

func TestClaimRoundTrip(t *testing.T) {
	store := newTestStore(t)

	claim := &types.Claim{TaskID: 1, AgentID: "agent-1", Token: "tok", LeaseExpiresAt: 5000}
	require.NoError(t, store.PutClaim(claim))

	got, err := store.GetClaim(1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "agent-1", got.AgentID)

	none, err := store.GetClaim(999)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestArtifactLinksScopedToTask(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AttachArtifact(&types.TaskArtifactLink{TaskID: 1, ArtifactID: "a1"}))
	require.NoError(t, store.AttachArtifact(&types.TaskArtifactLink{TaskID: 1, ArtifactID: "a2"}))
	require.NoError(t, store.AttachArtifact(&types.TaskArtifactLink{TaskID: 2, ArtifactID: "a3"}))

	links, err := store.ListArtifactsForTask(1)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestIdempotencyPurgeBefore(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.PutIdempotency(&types.IdempotencyRecord{
		AgentID: "a1", Tool: "send_message", Key: "k1", StoredAt: 1000,
	}))
	require.NoError(t, store.PutIdempotency(&types.IdempotencyRecord{
		AgentID: "a1", Tool: "send_message", Key: "k2", StoredAt: 9000,
	}))

	purged, err := store.PurgeIdempotencyBefore(5000)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	rec, err := store.GetIdempotency("a1", "send_message", "k1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = store.GetIdempotency("a1", "send_message", "k2")
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestRecentActivityNewestFirst(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendActivity(&types.ActivityRecord{Tool: "poll_and_claim", At: int64(i)}))
	}

	records, err := store.ListRecentActivity(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].At)
	assert.Equal(t, int64(1), records[1].At)
}
