// Package hub is the facade tying every store package together into the
// fourteen tool calls an agent invokes: every call runs through the same
// pipeline (heartbeat the caller, collapse idempotent retries, execute
// against the relevant store, record activity; read_messages, list_tasks
// and get_task_handoff also shape their response by response_mode), a
// single entry point in front of the directory/message/task/claim/
// artifact stores.
package hub

import (
	"time"

	"github.com/cuemby/caephub/pkg/artifacts"
	"github.com/cuemby/caephub/pkg/claims"
	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/config"
	"github.com/cuemby/caephub/pkg/directory"
	"github.com/cuemby/caephub/pkg/engine"
	"github.com/cuemby/caephub/pkg/events"
	"github.com/cuemby/caephub/pkg/idempotency"
	"github.com/cuemby/caephub/pkg/log"
	"github.com/cuemby/caephub/pkg/messages"
	"github.com/cuemby/caephub/pkg/tasks"
	"github.com/cuemby/caephub/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Hub wires the engine and every domain store behind the tool-call
// surface agents invoke.
type Hub struct {
	eng *engine.Engine
	cfg config.Config

	directory *directory.Directory
	gate      *idempotency.Gate
	messages  *messages.Store
	tasks     *tasks.Store
	claims    *claims.Scheduler
	artifacts *artifacts.Store
	acl       *artifacts.ACL
	tickets   artifacts.TicketIssuer
	broker    *events.Broker

	logger zerolog.Logger
}

// New wires a Hub over eng using cfg, publishing activity events onto
// broker. tickets issues get_task_handoff's optional download links; a
// nil tickets defaults to a LocalTicketIssuer rooted at cfg.HTTPAddr.
func New(eng *engine.Engine, cfg config.Config, broker *events.Broker, tickets artifacts.TicketIssuer) *Hub {
	acl := artifacts.NewACL(eng)
	if tickets == nil {
		tickets = artifacts.NewLocalTicketIssuer("http://" + cfg.HTTPAddr + "/artifacts")
	}

	taskStore := tasks.New(eng, cfg)

	return &Hub{
		eng:       eng,
		cfg:       cfg,
		directory: directory.New(eng),
		gate:      idempotency.NewGate(eng, cfg.IdempotencyRetention),
		messages:  messages.New(eng, cfg),
		tasks:     taskStore,
		claims:    claims.New(eng, taskStore),
		artifacts: artifacts.New(eng, acl),
		acl:       acl,
		tickets:   tickets,
		broker:    broker,
		logger:    log.WithComponent("hub"),
	}
}

// Start begins the hub's background maintenance loops (idempotency
// record expiry).
func (h *Hub) Start() {
	h.gate.Start()
}

// Stop halts the hub's background loops.
func (h *Hub) Stop() {
	h.gate.Stop()
}

func nowMs() int64 { return time.Now().UnixMilli() }

// publish emits ev onto the live event broker, if one is configured, and
// never blocks or fails the surrounding tool call.
func (h *Hub) publish(eventType events.EventType, message string, metadata map[string]string) {
	if h.broker == nil {
		return
	}
	h.broker.Publish(&events.Event{
		ID:       uuid.New().String(),
		Type:     eventType,
		Message:  message,
		Metadata: metadata,
	})
}

// recordActivity persists the durable audit-trail counterpart of publish:
// every tool call, success or failure, gets an activity-log record
// independent of the live event broker.
func (h *Hub) recordActivity(agentID, tool string, success bool, errCode codes.Code) {
	record := &types.ActivityRecord{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Tool:      tool,
		Success:   success,
		ErrorCode: string(errCode),
		At:        nowMs(),
	}
	if err := h.eng.Store().AppendActivity(record); err != nil {
		h.logger.Warn().Err(err).Str("tool", tool).Msg("failed to record activity")
	}
}
