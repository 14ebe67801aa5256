// Package shaping implements the four response-shape levels
// (full/compact/tiny/nano) shared by read_messages and list_tasks. It is
// deliberately separated from pkg/messages and pkg/tasks: both stores build
// their full-row map first and then hand it, plus a body string to
// preview/digest, to Shape.
package shaping

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cuemby/caephub/pkg/codes"
)

// Mode selects a response shape.
type Mode string

const (
	ModeFull    Mode = "full"
	ModeCompact Mode = "compact"
	ModeTiny    Mode = "tiny"
	ModeNano    Mode = "nano"
)

// Valid reports whether m is one of the four known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeFull, ModeCompact, ModeTiny, ModeNano:
		return true
	default:
		return false
	}
}

const (
	compactPreviewChars = 180
	compactDigestChars  = 16
	nanoDigestChars     = 12
)

// Digest returns the first n hex characters of the sha256 of body.
func Digest(body string, n int) string {
	sum := sha256.Sum256([]byte(body))
	hexSum := hex.EncodeToString(sum[:])
	if n > len(hexSum) {
		n = len(hexSum)
	}
	return hexSum[:n]
}

// Preview truncates body to n runes, matching on bytes for ASCII-heavy
// content which is the overwhelming case for agent message/task text.
func Preview(body string, n int) string {
	r := []rune(body)
	if len(r) <= n {
		return body
	}
	return string(r[:n])
}

// Row is a full-mode row plus the extra routing/flag fields a caller wants
// projected into every shaped mode, and the body string used to derive
// preview/digest/length.
type Row struct {
	// Full is the complete field set, used verbatim in full mode.
	Full map[string]interface{}
	// Routing is the subset of Full that survives in compact/tiny/nano
	// mode (ids, from/to, status, timestamps, a message's blob-ref
	// resolution — never the raw content or description field).
	Routing map[string]interface{}
	// Body is previewed/digested/counted for compact/tiny mode.
	Body string
}

// Shape projects row into the requested mode.
func Shape(row Row, mode Mode) map[string]interface{} {
	switch mode {
	case ModeFull:
		return row.Full
	case ModeCompact:
		out := cloneRouting(row.Routing)
		out["preview"] = Preview(row.Body, compactPreviewChars)
		out["digest"] = Digest(row.Body, compactDigestChars)
		return out
	case ModeTiny:
		out := cloneRouting(row.Routing)
		out["chars"] = len([]rune(row.Body))
		out["digest"] = Digest(row.Body, compactDigestChars)
		return out
	case ModeNano:
		out := cloneRouting(row.Routing)
		out["digest"] = Digest(row.Body, nanoDigestChars)
		return out
	default:
		return row.Full
	}
}

// ShapeAll projects every row in rows into mode, preserving order.
func ShapeAll(rows []Row, mode Mode) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		out[i] = Shape(row, mode)
	}
	return out
}

// BoolFlag renders b as 0/1, the nano-mode flag encoding.
func BoolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NanoEnvelope wraps shaped nano-mode items under key, alongside has_more
// (h) and next_cursor (n), omitting the success envelope altogether —
// nano responses are the shortest wire shape and drop anything that
// isn't the items themselves plus pagination state.
func NanoEnvelope(key string, items []map[string]interface{}, hasMore bool, nextCursor string) map[string]interface{} {
	return map[string]interface{}{
		key: items,
		"h": BoolFlag(hasMore),
		"n": nextCursor,
	}
}

// GuardFullMode enforces the polling-discipline rule shared by
// read_messages and list_tasks: full mode is refused whenever the caller
// is polling or using delta/cursor ordering, unless allowOverride (the
// DISALLOW_FULL_IN_POLLING config flag, inverted) says otherwise.
func GuardFullMode(mode Mode, polling bool, delta bool, allowOverride bool) error {
	if mode != ModeFull {
		return nil
	}
	if !polling && !delta {
		return nil
	}
	if allowOverride {
		return nil
	}
	return codes.New(codes.FullModeForbidden, "full response_mode is forbidden while polling or using delta ordering")
}

func cloneRouting(routing map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(routing)+2)
	for k, v := range routing {
		out[k] = v
	}
	return out
}
