// Package claims implements the claim scheduler: claim/renew/release of a
// task's exclusive lease, poll_and_claim's dependency-ready, priority- and
// FIFO-ordered candidate selection, and the per-agent jittered backoff
// hint returned on an empty poll.
package claims

import (
	"math/rand"
	"sort"
	"time"

	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/metrics"
	"github.com/cuemby/caephub/pkg/tasks"
	"github.com/cuemby/caephub/pkg/types"
	"github.com/google/uuid"
)

const applyTimeout = 5 * time.Second

const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 12 * time.Second
)

// Scheduler is the claim scheduler backed by an Engine and the task store
// it reads task rows and runs done-gate transitions through.
type Scheduler struct {
	eng   *engine.Engine
	tasks *tasks.Store
}

// New creates a Scheduler over eng, using taskStore for reads and the
// update-transition machinery release() runs before dropping a claim.
func New(eng *engine.Engine, taskStore *tasks.Store) *Scheduler {
	return &Scheduler{eng: eng, tasks: taskStore}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// Claim grants agent exclusive assignment of taskID for leaseSeconds,
// provided the task is pending or in_progress, has no live claim, and the
// agent's runtime profile is compatible with the task's execution_mode.
func (s *Scheduler) Claim(taskID int64, agentID string, profile types.RuntimeProfile, leaseSeconds int) (*types.Claim, *codes.Error) {
	task, err := s.tasks.Get(taskID)
	if err != nil {
		return nil, codes.New(codes.NotFound, "task not found")
	}

	if task.Status != types.TaskStatusPending && task.Status != types.TaskStatusInProgress {
		return nil, codes.New(codes.ClaimConflict, "task is not in a claimable status")
	}

	if !profile.Compatible(task.ExecutionMode) {
		return nil, codes.New(codes.ProfileMismatch, "agent runtime profile incompatible with task execution_mode")
	}

	existing, err := s.eng.Store().GetClaim(taskID)
	if err != nil {
		return nil, codes.Internalf(err)
	}
	if existing != nil && existing.Live(nowMs()) {
		metrics.ClaimConflictsTotal.Inc()
		return nil, codes.New(codes.ClaimConflict, "task already has a live claim")
	}

	claim, cErr := s.grantClaim(task, agentID, leaseSeconds)
	if cErr != nil {
		return nil, cErr
	}
	metrics.ClaimsGrantedTotal.Inc()
	return claim, nil
}

func (s *Scheduler) grantClaim(task *types.Task, agentID string, leaseSeconds int) (*types.Claim, *codes.Error) {
	now := nowMs()
	claim := &types.Claim{
		TaskID:         task.ID,
		AgentID:        agentID,
		Token:          newClaimToken(),
		LeaseExpiresAt: now + int64(leaseSeconds)*1000,
		ClaimedAt:      now,
	}

	cmd, err := engine.NewCommand(engine.OpPutClaim, claim)
	if err != nil {
		return nil, codes.Internalf(err)
	}
	if _, err := s.eng.Apply(cmd, applyTimeout); err != nil {
		return nil, codes.Internalf(err)
	}

	inProgress := types.TaskStatusInProgress
	if _, cErr := s.tasks.Update(tasks.UpdateRequest{
		TaskID:     task.ID,
		Status:     &inProgress,
		AssignedTo: &agentID,
	}); cErr != nil {
		return nil, cErr
	}

	return claim, nil
}

// Renew extends a live claim held by agentID on taskID. A stale (expired
// or absent) claim, or one held by a different agent, is rejected.
func (s *Scheduler) Renew(taskID int64, agentID string, leaseSeconds int) (*types.Claim, *codes.Error) {
	claim, err := s.eng.Store().GetClaim(taskID)
	if err != nil {
		return nil, codes.Internalf(err)
	}
	if claim == nil || claim.AgentID != agentID || !claim.Live(nowMs()) {
		return nil, codes.New(codes.ClaimExpired, "no live claim held by this agent")
	}

	claim.LeaseExpiresAt = nowMs() + int64(leaseSeconds)*1000

	cmd, cmdErr := engine.NewCommand(engine.OpPutClaim, claim)
	if cmdErr != nil {
		return nil, codes.Internalf(cmdErr)
	}
	if _, err := s.eng.Apply(cmd, applyTimeout); err != nil {
		return nil, codes.Internalf(err)
	}

	return claim, nil
}

// ReleaseRequest is the input to Release.
type ReleaseRequest struct {
	TaskID             int64
	AgentID            string
	NextStatus         types.TaskStatus
	Confidence         *float64
	VerificationPassed *bool
	VerifiedBy         *string
	EvidenceRefs       *[]string
}

// Release runs the update-transition machinery for req.NextStatus
// (including the done gate) before dropping the claim. If the transition
// fails, the claim is preserved so the agent can retry with corrected
// fields; dropping a claim means leaving it in place but expired, since
// claims are retained rather than deleted for audit.
func (s *Scheduler) Release(req ReleaseRequest) (*types.Task, *codes.Error) {
	claim, err := s.eng.Store().GetClaim(req.TaskID)
	if err != nil {
		return nil, codes.Internalf(err)
	}
	if claim == nil || claim.AgentID != req.AgentID || !claim.Live(nowMs()) {
		return nil, codes.New(codes.ClaimNotHeld, "no live claim held by this agent")
	}

	task, cErr := s.tasks.Update(tasks.UpdateRequest{
		TaskID:             req.TaskID,
		UpdatedBy:          req.AgentID,
		Status:             &req.NextStatus,
		Confidence:         req.Confidence,
		VerificationPassed: req.VerificationPassed,
		VerifiedBy:         req.VerifiedBy,
		EvidenceRefs:       req.EvidenceRefs,
	})
	if cErr != nil {
		return nil, cErr
	}

	claim.LeaseExpiresAt = nowMs() - 1
	cmd, cmdErr := engine.NewCommand(engine.OpPutClaim, claim)
	if cmdErr != nil {
		return nil, codes.Internalf(cmdErr)
	}
	if _, err := s.eng.Apply(cmd, applyTimeout); err != nil {
		return nil, codes.Internalf(err)
	}

	return task, nil
}

// ListLive returns every currently live (unexpired) claim.
func (s *Scheduler) ListLive() ([]*types.Claim, error) {
	all, err := s.eng.Store().ListClaims()
	if err != nil {
		return nil, err
	}
	now := nowMs()
	live := make([]*types.Claim, 0, len(all))
	for _, c := range all {
		if c.Live(now) {
			live = append(live, c)
		}
	}
	return live, nil
}

// PollResult is PollAndClaim's return value.
type PollResult struct {
	Task         *types.Task
	Claim        *types.Claim
	RetryAfterMs int
}

// PollAndClaim selects the best ready candidate task and atomically claims
// it for agentID: dependency-ready tasks rank above unready ones, within a
// partition priority ranks highest first, and created_at breaks ties FIFO.
func (s *Scheduler) PollAndClaim(agentID string, profile types.RuntimeProfile, leaseSeconds int) (PollResult, *codes.Error) {
	all, err := s.tasks.ListAll()
	if err != nil {
		return PollResult{}, codes.Internalf(err)
	}

	var candidates []*types.Task
	for _, t := range all {
		if t.Status != types.TaskStatusPending {
			continue
		}
		if !profile.Compatible(t.ExecutionMode) {
			continue
		}
		claim, err := s.eng.Store().GetClaim(t.ID)
		if err != nil {
			return PollResult{}, codes.Internalf(err)
		}
		if claim != nil && claim.Live(nowMs()) {
			continue
		}
		candidates = append(candidates, t)
	}

	if len(candidates) == 0 {
		return PollResult{RetryAfterMs: int(s.backoff(agentID, true).Milliseconds())}, nil
	}

	ready, unready := s.partitionByReadiness(candidates, all)
	pool := ready
	if len(pool) == 0 {
		pool = unready
	}

	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Priority.Rank() != pool[j].Priority.Rank() {
			return pool[i].Priority.Rank() > pool[j].Priority.Rank()
		}
		return pool[i].CreatedAt < pool[j].CreatedAt
	})

	winner := pool[0]
	claim, cErr := s.grantClaim(winner, agentID, leaseSeconds)
	if cErr != nil {
		return PollResult{}, cErr
	}

	metrics.ClaimsGrantedTotal.Inc()
	s.backoff(agentID, false)

	return PollResult{Task: winner, Claim: claim}, nil
}

// partitionByReadiness splits candidates into tasks whose every
// depends_on id references a done task ("ready") and the rest.
func (s *Scheduler) partitionByReadiness(candidates, all []*types.Task) (ready, unready []*types.Task) {
	byID := make(map[int64]*types.Task, len(all))
	for _, t := range all {
		byID[t.ID] = t
	}

	for _, c := range candidates {
		isReady := true
		for _, depID := range c.DependsOn {
			dep, ok := byID[depID]
			if !ok || dep.Status != types.TaskStatusDone {
				isReady = false
				break
			}
		}
		if isReady {
			ready = append(ready, c)
		} else {
			unready = append(unready, c)
		}
	}
	return ready, unready
}

// backoff updates the per-agent consecutive-empty-poll counter (reset on
// a successful claim, incremented on an empty poll) and returns the
// jittered retry_after_ms hint derived from it, bounded to [200ms, 12s].
func (s *Scheduler) backoff(agentID string, empty bool) time.Duration {
	state, err := s.eng.Store().GetPollBackoff(agentID)
	if err != nil || state == nil {
		state = &types.PollBackoffState{AgentID: agentID}
	}

	if empty {
		state.ConsecutiveEmptyPolls++
		metrics.PollEmptyTotal.Inc()
	} else {
		state.ConsecutiveEmptyPolls = 0
	}
	state.UpdatedAt = nowMs()

	if cmd, cmdErr := engine.NewCommand(engine.OpPutPollBackoff, state); cmdErr == nil {
		_, _ = s.eng.Apply(cmd, applyTimeout)
	}

	return jitteredBackoff(state.ConsecutiveEmptyPolls)
}

func jitteredBackoff(consecutiveEmpty int) time.Duration {
	shift := consecutiveEmpty
	if shift > 6 { // minBackoff<<6 already exceeds maxBackoff
		shift = 6
	}
	base := minBackoff << uint(shift) // exponential in the empty-poll count
	if base > maxBackoff || base <= 0 {
		base = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	result := base/2 + jitter/2
	if result < minBackoff {
		result = minBackoff
	}
	if result > maxBackoff {
		result = maxBackoff
	}
	return result
}

func newClaimToken() string {
	return uuid.New().String()
}
