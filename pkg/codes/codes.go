// Package codes defines the hub's canonical error codes and the typed
// error value every tool handler returns on failure, shared by
// pkg/messages, pkg/tasks, pkg/claims, and pkg/hub so that "is this a
// CONTENT_TOO_LONG" can be checked uniformly regardless of which store
// package produced it.
package codes

import "errors"

// Code is a stable machine-readable failure identifier.
type Code string

const (
	ContentTooLong        Code = "CONTENT_TOO_LONG"
	MetadataTooLong       Code = "METADATA_TOO_LONG"
	BlobTooLong           Code = "BLOB_TOO_LONG"
	FullModeForbidden     Code = "FULL_MODE_FORBIDDEN_IN_POLLING"
	DoneGateFailed        Code = "DONE_GATE_FAILED"
	VerifierRequired      Code = "VERIFIER_REQUIRED"
	ProfileMismatch       Code = "PROFILE_MISMATCH"
	DependencyCycle       Code = "DEPENDENCY_CYCLE"
	DependencyMissing     Code = "DEPENDENCY_MISSING"
	ClaimConflict         Code = "CLAIM_CONFLICT"
	ClaimExpired          Code = "CLAIM_EXPIRED"
	ClaimNotHeld          Code = "CLAIM_NOT_HELD"
	ArtifactAccessDenied  Code = "ARTIFACT_ACCESS_DENIED"
	NotFound              Code = "NOT_FOUND"
	Internal              Code = "INTERNAL"

	// InvalidTransition rejects an update that requests a status edge the
	// state graph doesn't have (e.g. done -> pending), distinct from the
	// done-gate-specific failures.
	InvalidTransition Code = "INVALID_TRANSITION"
)

// Error is a typed, coded failure. It is always constructed with a
// human-readable message in addition to its stable Code so that callers
// can log/return the message while switching on the code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an *Error for code with message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Of extracts the *Error from err, if any is in its chain.
func Of(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is a *Error carrying code.
func Is(err error, code Code) bool {
	e, ok := Of(err)
	return ok && e.Code == code
}

// Internalf wraps err as an INTERNAL code, for store-layer failures that
// should be fatal to a single request without leaking implementation
// details beyond the message.
func Internalf(err error) *Error {
	return New(Internal, err.Error())
}
