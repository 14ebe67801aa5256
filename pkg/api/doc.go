/*
Package api implements the hub's HTTP-adjacent operational surface: the
liveness/readiness health server and the polling-mode response guard.
The tool-call surface itself (send_message, create_task, poll_and_claim,
...) lives in pkg/hub; this package only covers what sits in front of
it.

# Health server

HealthServer exposes three endpoints over plain HTTP:

  - /health: liveness only — 200 if the process is up, regardless of
    Raft or storage state.
  - /ready: readiness — checks the engine has a Raft state (leader or
    follower) and that a basic store read succeeds.
  - /metrics: the package pkg/metrics Prometheus handler.

	hs := api.NewHealthServer(eng)
	go hs.Start(":8081")

# Polling-mode guard

GuardPollingToolMode enforces the full-mode-in-polling rule at the
dispatch boundary for the two tools it applies to, read_messages and
list_tasks:

	if cErr := api.GuardPollingToolMode(api.GuardRequest{
		Tool: "read_messages", Mode: mode, Polling: polling,
	}); cErr != nil {
		return nil, cErr
	}

Every other tool name passes through unguarded. The check itself is
delegated to pkg/shaping.GuardFullMode, which pkg/hub's list_tasks path
calls directly; this package exists so the dispatch layer can apply the
same rule uniformly by tool name without duplicating the guard's
allow/deny logic inline at every call site.
*/
package api
