package api

import (
	"testing"

	"github.com/cuemby/caephub/pkg/codes"
	"github.com/cuemby/caephub/pkg/shaping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardPollingToolModeRejectsFullWhilePolling(t *testing.T) {
	err := GuardPollingToolMode(GuardRequest{Tool: "read_messages", Mode: shaping.ModeFull, Polling: true})
	require.NotNil(t, err)
	assert.Equal(t, codes.FullModeForbidden, err.Code)
}

func TestGuardPollingToolModeIgnoresNonPollingTools(t *testing.T) {
	err := GuardPollingToolMode(GuardRequest{Tool: "create_task", Mode: shaping.ModeFull, Polling: true})
	assert.Nil(t, err)
}

func TestGuardPollingToolModeAllowsFullOutsidePolling(t *testing.T) {
	err := GuardPollingToolMode(GuardRequest{Tool: "list_tasks", Mode: shaping.ModeFull})
	assert.Nil(t, err)
}

func TestGuardPollingToolModeOverrideAllowsFull(t *testing.T) {
	err := GuardPollingToolMode(GuardRequest{Tool: "read_messages", Mode: shaping.ModeFull, Polling: true, AllowOverride: true})
	assert.Nil(t, err)
}
