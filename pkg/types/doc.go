/*
Package types defines the core data structures shared across caephub: agents,
messages, protocol blobs, tasks, claims, and the bookkeeping records
(idempotency, poll backoff, activity) the rest of the packages build on.

None of these types carry behavior beyond small invariant helpers
(RuntimeProfile.Compatible, TaskStatus.IsTerminal, Claim.Live); the state
machines live in pkg/tasks and pkg/claims.
*/
package types
