package hub

import (
	"testing"

	"github.com/cuemby/caephub/pkg/codec"
	"github.com/cuemby/caephub/pkg/config"
	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/events"
	"github.com/cuemby/caephub/pkg/storage"
	"github.com/cuemby/caephub/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)

	e, err := engine.New(engine.Config{NodeID: "node-1", DataDir: t.TempDir()}, store)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })

	cfg := config.Default()
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	h := New(e, cfg, broker, nil)
	return h
}

func TestSendBlobMessageRoundTrip(t *testing.T) {
	h := newTestHub(t)

	resp := h.SendBlobMessage(SendBlobMessageRequest{
		From:            "agent-a",
		To:              "agent-b",
		Payload:         `{"plan": "rewrite the retry loop", "steps": [1, 2, 3]}`,
		CompressionMode: codec.ModeAuto,
	})
	require.True(t, resp["success"].(bool))

	read := h.ReadMessages(ReadMessagesRequest{Agent: "agent-b", ResolveBlobRefs: true})
	require.True(t, read["success"].(bool))

	msgs := read["messages"].([]interface{})
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]interface{})
	blobRef, ok := msg["blob_ref"].(map[string]interface{})
	require.True(t, ok)
	assert.True(t, blobRef["resolved"].(bool))
	assert.Equal(t, `{"plan": "rewrite the retry loop", "steps": [1, 2, 3]}`, msg["resolved_content"])
}

func TestReadMessagesRejectsFullModeWhilePolling(t *testing.T) {
	h := newTestHub(t)

	resp := h.ReadMessages(ReadMessagesRequest{Agent: "agent-a", Polling: true, ResponseMode: "full"})
	assert.False(t, resp["success"].(bool))
	assert.Equal(t, "FULL_MODE_FORBIDDEN_IN_POLLING", resp["error_code"])
}

func TestReadMessagesAllowsCompactModeWhilePolling(t *testing.T) {
	h := newTestHub(t)

	h.SendMessage(SendMessageRequest{From: "agent-a", To: "agent-b", Content: "status?"})

	resp := h.ReadMessages(ReadMessagesRequest{Agent: "agent-b", Polling: true, ResponseMode: "compact"})
	require.True(t, resp["success"].(bool))
}

func TestReadMessagesDefaultsToCompactModeWhilePolling(t *testing.T) {
	h := newTestHub(t)

	h.SendMessage(SendMessageRequest{From: "agent-a", To: "agent-b", Content: "status?"})

	resp := h.ReadMessages(ReadMessagesRequest{Agent: "agent-b", Polling: true})
	require.True(t, resp["success"].(bool))
}

func TestListTasksPaginatesByCursor(t *testing.T) {
	h := newTestHub(t)

	for i := 0; i < 3; i++ {
		h.CreateTask(CreateTaskRequest{Title: "t", CreatedBy: "agent-a"})
	}

	page1 := h.ListTasks(ListTasksRequest{Agent: "agent-a", Limit: 2})
	require.True(t, page1["success"].(bool))
	tasks1 := page1["tasks"].([]interface{})
	require.Len(t, tasks1, 2)
	assert.True(t, page1["has_more"].(bool))
	cursor := page1["next_cursor"].(string)
	require.NotEmpty(t, cursor)

	page2 := h.ListTasks(ListTasksRequest{Agent: "agent-a", Limit: 2, Cursor: cursor})
	require.True(t, page2["success"].(bool))
	tasks2 := page2["tasks"].([]interface{})
	require.Len(t, tasks2, 1)
	assert.False(t, page2["has_more"].(bool))
}

func TestPollAndClaimPrefersDependencyReadyTask(t *testing.T) {
	h := newTestHub(t)

	setup := h.CreateTask(CreateTaskRequest{
		Title: "setup", CreatedBy: "agent-a", Priority: types.PriorityLow,
	})
	require.True(t, setup["success"].(bool))
	setupID := int64(setup["task"].(result)["id"].(float64))

	// Move setup out of the pending pool without marking it done, so
	// "do the work" stays blocked on an unfinished dependency.
	blocked := types.TaskStatusBlocked
	setupBlocked := h.UpdateTask(UpdateTaskRequest{TaskID: setupID, UpdatedBy: "agent-a", Status: &blocked})
	require.True(t, setupBlocked["success"].(bool))

	dependent := h.CreateTask(CreateTaskRequest{
		Title: "do the work", CreatedBy: "agent-a",
		Priority: types.PriorityCritical, DependsOn: []int64{setupID},
	})
	require.True(t, dependent["success"].(bool))

	ready := h.CreateTask(CreateTaskRequest{
		Title: "unblocked low priority", CreatedBy: "agent-a",
		Priority: types.PriorityLow,
	})
	require.True(t, ready["success"].(bool))
	readyID := int64(ready["task"].(result)["id"].(float64))

	poll := h.PollAndClaim(PollAndClaimRequest{Agent: "agent-b", RuntimeProfile: types.RuntimeProfile{Mode: types.RuntimeModeAny}})
	require.True(t, poll["success"].(bool))
	task := poll["task"].(result)
	assert.Equal(t, readyID, int64(task["id"].(float64)))
}

func TestReleaseTaskClaimStrictDoneRequiresVerifier(t *testing.T) {
	h := newTestHub(t)

	created := h.CreateTask(CreateTaskRequest{
		Title: "ship it", CreatedBy: "agent-a",
		Priority: types.PriorityCritical,
	})
	require.True(t, created["success"].(bool))
	taskID := int64(created["task"].(result)["id"].(float64))

	claimed := h.ClaimTask(ClaimTaskRequest{TaskID: taskID, Agent: "agent-b", RuntimeProfile: types.RuntimeProfile{Mode: types.RuntimeModeAny}})
	require.True(t, claimed["success"].(bool))

	done := types.TaskStatusDone
	confidence := 0.99
	verified := true
	evidence := []string{"build-log.txt"}

	release := h.ReleaseTaskClaim(ReleaseTaskClaimRequest{
		TaskID: taskID, Agent: "agent-b", NextStatus: done,
		Confidence: &confidence, VerificationPassed: &verified, EvidenceRefs: &evidence,
	})
	assert.False(t, release["success"].(bool))
	assert.Equal(t, "VERIFIER_REQUIRED", release["error_code"])

	verifier := "agent-c"
	release = h.ReleaseTaskClaim(ReleaseTaskClaimRequest{
		TaskID: taskID, Agent: "agent-b", NextStatus: done,
		Confidence: &confidence, VerificationPassed: &verified, VerifiedBy: &verifier, EvidenceRefs: &evidence,
	})
	require.True(t, release["success"].(bool))
}

func TestCreateTaskIsIdempotent(t *testing.T) {
	h := newTestHub(t)

	first := h.CreateTask(CreateTaskRequest{Title: "only once", CreatedBy: "agent-a", IdempotencyKey: "key-1"})
	second := h.CreateTask(CreateTaskRequest{Title: "only once", CreatedBy: "agent-a", IdempotencyKey: "key-1"})

	require.True(t, first["success"].(bool))
	require.True(t, second["success"].(bool))
	assert.Equal(t, first["task"].(result)["id"], second["task"].(result)["id"])

	all, err := h.tasks.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestClaimTaskRejectsProfileMismatch(t *testing.T) {
	h := newTestHub(t)

	created := h.CreateTask(CreateTaskRequest{
		Title: "repo only", CreatedBy: "agent-a", ExecutionMode: types.RuntimeModeRepo,
	})
	require.True(t, created["success"].(bool))
	taskID := int64(created["task"].(result)["id"].(float64))

	claim := h.ClaimTask(ClaimTaskRequest{
		TaskID: taskID, Agent: "agent-b", RuntimeProfile: types.RuntimeProfile{Mode: types.RuntimeModeIsolated},
	})
	assert.False(t, claim["success"].(bool))
	assert.Equal(t, "PROFILE_MISMATCH", claim["error_code"])
}

func TestGetTaskHandoffAnnotatesAccessAndDownloads(t *testing.T) {
	h := newTestHub(t)

	created := h.CreateTask(CreateTaskRequest{Title: "handoff me", CreatedBy: "agent-a"})
	require.True(t, created["success"].(bool))
	taskID := int64(created["task"].(result)["id"].(float64))

	claimed := h.ClaimTask(ClaimTaskRequest{TaskID: taskID, Agent: "agent-b", RuntimeProfile: types.RuntimeProfile{Mode: types.RuntimeModeAny}})
	require.True(t, claimed["success"].(bool))

	attach := h.AttachTaskArtifact(AttachTaskArtifactRequest{
		TaskID: taskID, ArtifactID: "artifact-1", AttachedBy: "agent-b", Ready: true, SizeBytes: 512,
	})
	require.True(t, attach["success"].(bool))

	handoff := h.GetTaskHandoff(GetTaskHandoffRequest{TaskID: taskID, Agent: "agent-b", IncludeDownloads: true})
	require.True(t, handoff["success"].(bool))

	artifactRows := handoff["artifacts"].([]interface{})
	require.Len(t, artifactRows, 1)
	assert.True(t, artifactRows[0].(result)["has_access"].(bool))

	downloads := handoff["artifact_downloads"].([]interface{})
	require.Len(t, downloads, 1)
	assert.NotEmpty(t, downloads[0].(result)["url"])

	// agent-c was never granted access, so its handoff shows no downloads.
	otherHandoff := h.GetTaskHandoff(GetTaskHandoffRequest{TaskID: taskID, Agent: "agent-c", IncludeDownloads: true})
	require.True(t, otherHandoff["success"].(bool))
	otherRows := otherHandoff["artifacts"].([]interface{})
	require.Len(t, otherRows, 1)
	assert.False(t, otherRows[0].(result)["has_access"].(bool))
	assert.Empty(t, otherHandoff["artifact_downloads"].([]interface{}))
}

func TestGetTaskHandoffShapesTaskByResponseMode(t *testing.T) {
	h := newTestHub(t)

	created := h.CreateTask(CreateTaskRequest{Title: "handoff me", Description: "long-form context", CreatedBy: "agent-a"})
	require.True(t, created["success"].(bool))
	taskID := int64(created["task"].(result)["id"].(float64))

	full := h.GetTaskHandoff(GetTaskHandoffRequest{TaskID: taskID, Agent: "agent-a", ResponseMode: "full"})
	require.True(t, full["success"].(bool))
	fullTask := full["task"].(map[string]interface{})
	assert.Equal(t, "handoff me", fullTask["title"])

	compact := h.GetTaskHandoff(GetTaskHandoffRequest{TaskID: taskID, Agent: "agent-a", ResponseMode: "compact"})
	require.True(t, compact["success"].(bool))
	compactTask := compact["task"].(map[string]interface{})
	_, hasTitle := compactTask["title"]
	assert.False(t, hasTitle)
	assert.NotEmpty(t, compactTask["preview"])
	assert.NotEmpty(t, compactTask["digest"])
}

func TestEveryToolHeartbeatsUnknownAgent(t *testing.T) {
	h := newTestHub(t)

	h.SendMessage(SendMessageRequest{From: "ghost", To: "agent-b", Content: "hi"})

	agent, err := h.directory.Get("ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", agent.ID)
}
