package claims

import (
	"testing"

	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/config"
	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/storage"
	"github.com/cuemby/caephub/pkg/tasks"
	"github.com/cuemby/caephub/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) (*Scheduler, *tasks.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)

	e, err := engine.New(engine.Config{NodeID: "node-1", DataDir: t.TempDir()}, store)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })

	taskStore := tasks.New(e, config.Default())
	return New(e, taskStore), taskStore
}

var anyProfile = types.RuntimeProfile{Mode: types.RuntimeModeAny}

func TestClaimGrantsExclusiveAssignment(t *testing.T) {
	s, taskStore := newTestScheduler(t)

	task, _, cErr := taskStore.Create(tasks.CreateRequest{Title: "t"})
	require.Nil(t, cErr)

	claim, cErr := s.Claim(task.ID, "a1", anyProfile, 300)
	require.Nil(t, cErr)
	assert.Equal(t, "a1", claim.AgentID)

	updated, err := taskStore.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusInProgress, updated.Status)
	assert.Equal(t, "a1", updated.AssignedTo)
}

func TestClaimRejectsAlreadyClaimedTask(t *testing.T) {
	s, taskStore := newTestScheduler(t)

	task, _, cErr := taskStore.Create(tasks.CreateRequest{Title: "t"})
	require.Nil(t, cErr)

	_, cErr = s.Claim(task.ID, "a1", anyProfile, 300)
	require.Nil(t, cErr)

	_, cErr = s.Claim(task.ID, "a2", anyProfile, 300)
	require.NotNil(t, cErr)
	assert.Equal(t, codes.ClaimConflict, cErr.Code)
}

func TestClaimRejectsProfileMismatch(t *testing.T) {
	s, taskStore := newTestScheduler(t)

	task, _, cErr := taskStore.Create(tasks.CreateRequest{Title: "t", ExecutionMode: types.RuntimeModeRepo})
	require.Nil(t, cErr)

	isolated := types.RuntimeProfile{Mode: types.RuntimeModeIsolated}
	_, cErr = s.Claim(task.ID, "a1", isolated, 300)
	require.NotNil(t, cErr)
	assert.Equal(t, codes.ProfileMismatch, cErr.Code)
}

func TestRenewExtendsLiveClaim(t *testing.T) {
	s, taskStore := newTestScheduler(t)

	task, _, cErr := taskStore.Create(tasks.CreateRequest{Title: "t"})
	require.Nil(t, cErr)

	claim, cErr := s.Claim(task.ID, "a1", anyProfile, 10)
	require.Nil(t, cErr)

	renewed, cErr := s.Renew(task.ID, "a1", 600)
	require.Nil(t, cErr)
	assert.Greater(t, renewed.LeaseExpiresAt, claim.LeaseExpiresAt)
}

func TestRenewRejectsWrongAgent(t *testing.T) {
	s, taskStore := newTestScheduler(t)

	task, _, cErr := taskStore.Create(tasks.CreateRequest{Title: "t"})
	require.Nil(t, cErr)

	_, cErr = s.Claim(task.ID, "a1", anyProfile, 300)
	require.Nil(t, cErr)

	_, cErr = s.Renew(task.ID, "a2", 300)
	require.NotNil(t, cErr)
	assert.Equal(t, codes.ClaimExpired, cErr.Code)
}

func TestReleasePreservesClaimOnFailedTransition(t *testing.T) {
	s, taskStore := newTestScheduler(t)

	task, _, cErr := taskStore.Create(tasks.CreateRequest{Title: "t"})
	require.Nil(t, cErr)

	_, cErr = s.Claim(task.ID, "a1", anyProfile, 300)
	require.Nil(t, cErr)

	_, cErr = s.Release(ReleaseRequest{TaskID: task.ID, AgentID: "a1", NextStatus: types.TaskStatusDone})
	require.NotNil(t, cErr)
	assert.Equal(t, codes.DoneGateFailed, cErr.Code)

	live, err := s.ListLive()
	require.NoError(t, err)
	require.Len(t, live, 1)
}

func TestReleaseSucceedsAndDropsClaim(t *testing.T) {
	s, taskStore := newTestScheduler(t)

	task, _, cErr := taskStore.Create(tasks.CreateRequest{Title: "t", CreatedBy: "a0"})
	require.Nil(t, cErr)

	_, cErr = s.Claim(task.ID, "a1", anyProfile, 300)
	require.Nil(t, cErr)

	confidence := 0.95
	verified := true
	evidence := []string{"ev"}
	updated, cErr := s.Release(ReleaseRequest{
		TaskID:             task.ID,
		AgentID:            "a1",
		NextStatus:         types.TaskStatusDone,
		Confidence:         &confidence,
		VerificationPassed: &verified,
		EvidenceRefs:       &evidence,
	})
	require.Nil(t, cErr)
	assert.Equal(t, types.TaskStatusDone, updated.Status)

	live, err := s.ListLive()
	require.NoError(t, err)
	assert.Len(t, live, 0)
}

func TestPollAndClaimPrefersReadyAndHigherPriority(t *testing.T) {
	s, taskStore := newTestScheduler(t)

	b, _, cErr := taskStore.Create(tasks.CreateRequest{Title: "B", Priority: types.PriorityMedium})
	require.Nil(t, cErr)
	_, _, cErr = taskStore.Create(tasks.CreateRequest{Title: "C", Priority: types.PriorityCritical, DependsOn: []int64{b.ID}})
	require.Nil(t, cErr)
	d, _, cErr := taskStore.Create(tasks.CreateRequest{Title: "D", Priority: types.PriorityHigh})
	require.Nil(t, cErr)

	result, cErr := s.PollAndClaim("a2", anyProfile, 300)
	require.Nil(t, cErr)
	require.NotNil(t, result.Task)
	assert.Equal(t, d.ID, result.Task.ID, "D is ready and higher priority than B")

	confidence := 0.95
	verified := true
	evidence := []string{"ev"}
	_, cErr = s.Release(ReleaseRequest{
		TaskID:             d.ID,
		AgentID:            "a2",
		NextStatus:         types.TaskStatusDone,
		Confidence:         &confidence,
		VerificationPassed: &verified,
		EvidenceRefs:       &evidence,
	})
	require.Nil(t, cErr)

	result, cErr = s.PollAndClaim("a2", anyProfile, 300)
	require.Nil(t, cErr)
	require.NotNil(t, result.Task)
	assert.Equal(t, b.ID, result.Task.ID, "B is ready, C is blocked on B")
}

func TestPollAndClaimSkipsProfileMismatchedTask(t *testing.T) {
	s, taskStore := newTestScheduler(t)

	_, _, cErr := taskStore.Create(tasks.CreateRequest{Title: "t", ExecutionMode: types.RuntimeModeRepo})
	require.Nil(t, cErr)

	isolated := types.RuntimeProfile{Mode: types.RuntimeModeIsolated}
	result, cErr := s.PollAndClaim("a1", isolated, 300)
	require.Nil(t, cErr)
	assert.Nil(t, result.Task)
	assert.GreaterOrEqual(t, result.RetryAfterMs, 200)
}

func TestPollAndClaimReturnsBackoffWhenNothingToClaim(t *testing.T) {
	s, _ := newTestScheduler(t)

	result, cErr := s.PollAndClaim("a1", anyProfile, 300)
	require.Nil(t, cErr)
	assert.Nil(t, result.Task)
	assert.GreaterOrEqual(t, result.RetryAfterMs, 200)
	assert.LessOrEqual(t, result.RetryAfterMs, 12000)
}
