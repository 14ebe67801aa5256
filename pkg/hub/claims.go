package hub

import (
	"github.com/cuemby/caephub/pkg/claims"
	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/events"
	"github.com/cuemby/caephub/pkg/types"
)

func (h *Hub) leaseSeconds(requested int) int {
	if requested <= 0 {
		return h.cfg.LeaseDefaultSeconds
	}
	return requested
}

// PollAndClaimRequest is poll_and_claim's input.
type PollAndClaimRequest struct {
	Agent          string
	RuntimeProfile types.RuntimeProfile
	LeaseSeconds   int
	IdempotencyKey string
}

// PollAndClaim selects and claims the best ready candidate task for the
// caller, or returns a retry_after_ms hint if nothing is claimable.
func (h *Hub) PollAndClaim(req PollAndClaimRequest) result {
	return h.dispatch(req.Agent, "poll_and_claim", req.IdempotencyKey, func() (result, *codes.Error) {
		res, err := h.claims.PollAndClaim(req.Agent, req.RuntimeProfile, h.leaseSeconds(req.LeaseSeconds))
		if err != nil {
			return nil, err
		}
		if res.Task == nil {
			return ok(result{"task": nil, "claim": nil, "retry_after_ms": res.RetryAfterMs}), nil
		}
		h.publish(events.EventClaimGranted, "claim granted", map[string]string{"agent_id": req.Agent})
		return ok(result{"task": taskMap(res.Task), "claim": claimMap(res.Claim), "retry_after_ms": 0}), nil
	})
}

// ClaimTaskRequest is claim_task's input.
type ClaimTaskRequest struct {
	TaskID         int64
	Agent          string
	RuntimeProfile types.RuntimeProfile
	LeaseSeconds   int
	IdempotencyKey string
}

// ClaimTask claims a specific task by id, rather than letting the
// scheduler pick one.
func (h *Hub) ClaimTask(req ClaimTaskRequest) result {
	return h.dispatch(req.Agent, "claim_task", req.IdempotencyKey, func() (result, *codes.Error) {
		claim, err := h.claims.Claim(req.TaskID, req.Agent, req.RuntimeProfile, h.leaseSeconds(req.LeaseSeconds))
		if err != nil {
			return nil, err
		}
		h.publish(events.EventClaimGranted, "claim granted", map[string]string{"agent_id": req.Agent})
		return ok(result{"claim": claimMap(claim)}), nil
	})
}

// RenewTaskClaimRequest is renew_task_claim's input.
type RenewTaskClaimRequest struct {
	TaskID         int64
	Agent          string
	LeaseSeconds   int
	IdempotencyKey string
}

// RenewTaskClaim extends a live claim's lease.
func (h *Hub) RenewTaskClaim(req RenewTaskClaimRequest) result {
	return h.dispatch(req.Agent, "renew_task_claim", req.IdempotencyKey, func() (result, *codes.Error) {
		claim, err := h.claims.Renew(req.TaskID, req.Agent, h.leaseSeconds(req.LeaseSeconds))
		if err != nil {
			return nil, err
		}
		h.publish(events.EventClaimRenewed, "claim renewed", map[string]string{"agent_id": req.Agent})
		return ok(result{"claim": claimMap(claim)}), nil
	})
}

// ReleaseTaskClaimRequest is release_task_claim's input.
type ReleaseTaskClaimRequest struct {
	TaskID             int64
	Agent              string
	NextStatus         types.TaskStatus
	Confidence         *float64
	VerificationPassed *bool
	VerifiedBy         *string
	EvidenceRefs       *[]string
	IdempotencyKey     string
}

// ReleaseTaskClaim runs the requested status transition (including the
// done gate, for a transition to done) and drops the caller's claim.
func (h *Hub) ReleaseTaskClaim(req ReleaseTaskClaimRequest) result {
	return h.dispatch(req.Agent, "release_task_claim", req.IdempotencyKey, func() (result, *codes.Error) {
		task, err := h.claims.Release(claims.ReleaseRequest{
			TaskID:             req.TaskID,
			AgentID:            req.Agent,
			NextStatus:         req.NextStatus,
			Confidence:         req.Confidence,
			VerificationPassed: req.VerificationPassed,
			VerifiedBy:         req.VerifiedBy,
			EvidenceRefs:       req.EvidenceRefs,
		})
		if err != nil {
			return nil, err
		}
		h.publish(events.EventClaimReleased, "claim released", map[string]string{"agent_id": req.Agent, "status": string(task.Status)})
		return ok(result{"task": taskMap(task)}), nil
	})
}

// ListTaskClaimsRequest is list_task_claims's input.
type ListTaskClaimsRequest struct {
	Agent          string
	IdempotencyKey string
}

// ListTaskClaims returns every currently live claim.
func (h *Hub) ListTaskClaims(req ListTaskClaimsRequest) result {
	return h.dispatch(req.Agent, "list_task_claims", req.IdempotencyKey, func() (result, *codes.Error) {
		live, err := h.claims.ListLive()
		if err != nil {
			return nil, codes.Internalf(err)
		}
		out := make([]result, len(live))
		for i, c := range live {
			out[i] = claimMap(c)
		}
		return ok(result{"claims": out}), nil
	})
}
