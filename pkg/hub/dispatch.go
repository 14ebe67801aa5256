package hub

import (
	"encoding/json"

	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/metrics"
)

// handler is a tool body: the business logic that runs against the
// domain stores once heartbeat and idempotency have been applied.
type handler func() (result, *codes.Error)

// dispatch runs the pipeline every tool call shares: heartbeat the
// caller, collapse the call through the idempotency gate keyed on
// (agentID, tool, idempotencyKey), and record the outcome to the
// activity log. The heartbeat and activity-log side effects happen on
// every call, including a replayed one, since they describe whether the
// agent is alive right now rather than what the first call computed.
func (h *Hub) dispatch(agentID, tool, idempotencyKey string, fn handler) result {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ToolCallDuration, tool)

	if agentID != "" {
		if _, err := h.directory.Touch(agentID); err != nil {
			h.logger.Warn().Err(err).Str("agent_id", agentID).Msg("heartbeat failed")
		}
	}

	raw := func() ([]byte, error) {
		data, cErr := fn()
		if cErr != nil {
			return nil, cErr
		}
		return json.Marshal(data)
	}

	resultBytes, replayed, err := h.gate.Execute(agentID, tool, idempotencyKey, raw)
	if replayed {
		metrics.IdempotencyHitsTotal.Inc()
	}
	if err != nil {
		coded, ok := codes.Of(err)
		if !ok {
			coded = codes.Internalf(err)
		}
		h.recordActivity(agentID, tool, false, coded.Code)
		metrics.ToolCallsTotal.WithLabelValues(tool, "error").Inc()
		return fail(coded)
	}

	var envelope result
	if jsonErr := json.Unmarshal(resultBytes, &envelope); jsonErr != nil {
		coded := codes.Internalf(jsonErr)
		h.recordActivity(agentID, tool, false, coded.Code)
		metrics.ToolCallsTotal.WithLabelValues(tool, "error").Inc()
		return fail(coded)
	}

	h.recordActivity(agentID, tool, true, "")
	metrics.ToolCallsTotal.WithLabelValues(tool, "success").Inc()
	return envelope
}
