/*
Package log provides structured logging for caephub using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("hub")                     │          │
	│  │  - WithAgentID("agent-7")                   │          │
	│  │  - WithTaskID(42)                           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "claims",                   │          │
	│  │    "task_id": 42,                           │          │
	│  │    "time": "2026-08-01T10:30:00Z",          │          │
	│  │    "message": "claim granted"               │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF claim granted component=claims task_id=42 │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every caephub package
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithAgentID: Add agent_id context
  - WithTaskID: Add task_id context

# Usage

Initializing the Logger:

	import "github.com/cuemby/caephub/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("engine started")
	log.Debug("checking claim lease")
	log.Warn("poll backoff increased")
	log.Error("failed to apply command")
	log.Fatal("cannot start without data dir") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("agent_id", "agent-7").
		Int64("task_id", 42).
		Msg("task claimed")

Component Loggers:

	claimsLog := log.WithComponent("claims")
	claimsLog.Info().Msg("granting claim")

	agentLog := log.WithAgentID("agent-7")
	agentLog.Info().Msg("heartbeat received")

	taskLog := log.WithTaskID(42)
	taskLog.Info().Msg("task transitioned to done")

# Integration Points

This package integrates with:

  - pkg/engine: logs a failed Raft shutdown
  - pkg/hub: a "hub" component logger that warns when a heartbeat or an
    activity-record append fails
  - cmd/caephub serve: logs a failure of the health HTTP server

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces

Don't:
  - Log message or blob content (may carry sensitive payloads)
  - Use Debug level in production
  - Concatenate strings into the message (use .Str, .Int64)
*/
package log
