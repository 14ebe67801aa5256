/*
Package events provides an in-memory event broker for the hub's live
activity fan-out.

The events package implements a lightweight, non-blocking pub/sub bus:
every tool call that mutates state publishes one Event, and anything
watching the hub can Subscribe to see them as they happen. This is
deliberately separate from types.ActivityRecord, which persists the same
occurrences durably for audit — Broker never touches the store, buffers a
bounded number of events per subscriber, and silently drops events a slow
subscriber can't keep up with.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory, non-blocking publish          │          │
	│  │  - eventCh buffer: 100                      │          │
	│  │  - per-subscriber buffer: 50                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│         ┌───────────┼───────────┐                         │
	│         ▼           ▼           ▼                         │
	│    Subscriber1  Subscriber2  Subscriber3                  │
	└────────────────────────────────────────────────────────┘

# Event Types

agent.registered, message.sent, blob.stored, task.created, task.updated,
task.done, task.blocked, claim.granted, claim.renewed, claim.released,
claim.expired, artifact.attached.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{
		Type:    events.EventClaimGranted,
		Message: "task 42 claimed by agent-7",
	})

	for event := range sub {
		log.Info(event.Message)
	}

# Design Notes

Publish never blocks the caller beyond enqueueing onto eventCh; broadcast to
individual subscribers is itself non-blocking (a full subscriber buffer
means that subscriber misses the event, not that the publisher stalls).
Callers that need a guaranteed audit trail should also write through
storage.AppendActivity — events.Broker is for live observers only.
*/
package events
