package api

import (
	"strings"

	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/shaping"
)

// pollingCapableTools are the tools subject to the full-mode-in-polling
// guard: read_messages and (symmetrically) list_tasks. Every other tool
// is unaffected by response_mode/polling combinations, the same way
// isReadOnlyMethod previously classified methods by name rather than
// inspecting each one individually.
var pollingCapableTools = map[string]bool{
	"read_messages": true,
	"list_tasks":    true,
}

// GuardRequest carries the response-shaping fields a dispatch call needs
// to check before running a polling-capable tool's handler.
type GuardRequest struct {
	Tool          string
	Mode          shaping.Mode
	Polling       bool
	Delta         bool
	AllowOverride bool
}

// GuardPollingToolMode rejects full-mode responses from a polling-capable
// tool call made either with polling=true or with a delta-ordered read
// (cursor/since_ts). Tools outside pollingCapableTools are never guarded.
func GuardPollingToolMode(req GuardRequest) *codes.Error {
	if !pollingCapableTools[req.Tool] {
		return nil
	}
	err := shaping.GuardFullMode(req.Mode, req.Polling, req.Delta, req.AllowOverride)
	if err == nil {
		return nil
	}
	if coded, ok := codes.Of(err); ok {
		return coded
	}
	return codes.Internalf(err)
}

// isPollingCapableTool reports whether name names a tool this guard
// applies to, trimming surrounding whitespace from name before the
// lookup in pollingCapableTools.
func isPollingCapableTool(name string) bool {
	name = strings.TrimSpace(name)
	return pollingCapableTools[name]
}
