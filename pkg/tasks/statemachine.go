package tasks

import (
	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/config"
	"github.com/cuemby/caephub/pkg/types"
)

// transitions is the task state graph: pending can move to
// in_progress, blocked, or cancelled; in_progress can move to done,
// blocked, or cancelled; blocked can only return to in_progress or
// cancel. done and cancelled are terminal and have no outgoing edges.
var transitions = map[types.TaskStatus][]types.TaskStatus{
	types.TaskStatusPending: {
		types.TaskStatusInProgress,
		types.TaskStatusBlocked,
		types.TaskStatusCancelled,
	},
	types.TaskStatusInProgress: {
		types.TaskStatusDone,
		types.TaskStatusBlocked,
		types.TaskStatusCancelled,
	},
	types.TaskStatusBlocked: {
		types.TaskStatusInProgress,
		types.TaskStatusCancelled,
	},
}

// validTransition reports whether the state graph permits from -> to.
// Remaining in the same status (e.g. updating fields without changing
// status) is always permitted and is not itself a transition.
func validTransition(from, to types.TaskStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkDoneGate enforces the done gate a transition to done must clear:
// confidence floor, verification_passed, non-empty evidence_refs, and — in strict
// consistency mode — an independent verifier distinct from both the
// updating agent and the task's creator.
func checkDoneGate(task *types.Task, updatingAgent string, cfg config.Config) *codes.Error {
	if task.Confidence < cfg.DoneConfidenceFloor {
		return codes.New(codes.DoneGateFailed, "confidence below configured floor")
	}
	if !task.VerificationPassed {
		return codes.New(codes.DoneGateFailed, "verification_passed must be true")
	}
	if len(task.EvidenceRefs) == 0 {
		return codes.New(codes.DoneGateFailed, "evidence_refs must be non-empty")
	}
	for _, ref := range task.EvidenceRefs {
		if ref == "" {
			return codes.New(codes.DoneGateFailed, "evidence_refs must not contain empty strings")
		}
	}

	if task.ConsistencyMode == types.ConsistencyStrict {
		if task.VerifiedBy == "" || task.VerifiedBy == updatingAgent || task.VerifiedBy == task.CreatedBy {
			return codes.New(codes.VerifierRequired, "strict mode requires verified_by distinct from the updater and the creator")
		}
	}

	return nil
}
