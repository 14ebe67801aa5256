package shaping

import (
	"strings"
	"testing"

	"github.com/cuemby/caephub/pkg/codes"
	"github.com/stretchr/testify/assert"
)

func TestDigestTruncatesToRequestedLength(t *testing.T) {
	d16 := Digest("hello world", 16)
	d12 := Digest("hello world", 12)
	assert.Len(t, d16, 16)
	assert.Len(t, d12, 12)
	assert.True(t, strings.HasPrefix(d16, d12))
}

func TestPreviewTruncatesLongBody(t *testing.T) {
	body := strings.Repeat("a", 300)
	preview := Preview(body, 180)
	assert.Len(t, preview, 180)
}

func TestPreviewLeavesShortBodyUntouched(t *testing.T) {
	body := "short content"
	assert.Equal(t, body, Preview(body, 180))
}

func testRow() Row {
	return Row{
		Full: map[string]interface{}{
			"id":      int64(1),
			"from":    "agent-1",
			"to":      "agent-2",
			"content": "full content here",
		},
		Routing: map[string]interface{}{
			"id":   int64(1),
			"from": "agent-1",
			"to":   "agent-2",
		},
		Body: "full content here",
	}
}

func TestShapeFullReturnsFullRow(t *testing.T) {
	out := Shape(testRow(), ModeFull)
	assert.Equal(t, "full content here", out["content"])
}

func TestShapeCompactHasPreviewAndDigestNoFullFields(t *testing.T) {
	out := Shape(testRow(), ModeCompact)
	assert.Equal(t, "full content here", out["preview"])
	assert.Len(t, out["digest"], 16)
	_, hasContent := out["content"]
	assert.False(t, hasContent)
}

func TestShapeTinyHasCharsAndDigestNoPreview(t *testing.T) {
	out := Shape(testRow(), ModeTiny)
	assert.Equal(t, len("full content here"), out["chars"])
	assert.Len(t, out["digest"], 16)
	_, hasPreview := out["preview"]
	assert.False(t, hasPreview)
}

func TestShapeNanoHasShortDigestAndRoutingOnly(t *testing.T) {
	out := Shape(testRow(), ModeNano)
	assert.Len(t, out["digest"], 12)
	_, hasChars := out["chars"]
	assert.False(t, hasChars)
	assert.Equal(t, "agent-1", out["from"])
}

func TestShapeDoesNotMutateSharedRouting(t *testing.T) {
	row := testRow()
	Shape(row, ModeCompact)
	_, leaked := row.Routing["digest"]
	assert.False(t, leaked)
}

func TestNanoEnvelopeOmitsSuccessKey(t *testing.T) {
	env := NanoEnvelope("m", []map[string]interface{}{{"id": 1}}, true, "100:5")
	assert.Equal(t, 1, env["h"])
	assert.Equal(t, "100:5", env["n"])
	_, hasSuccess := env["success"]
	assert.False(t, hasSuccess)
}

func TestBoolFlag(t *testing.T) {
	assert.Equal(t, 1, BoolFlag(true))
	assert.Equal(t, 0, BoolFlag(false))
}

func TestModeValid(t *testing.T) {
	assert.True(t, ModeFull.Valid())
	assert.True(t, ModeNano.Valid())
	assert.False(t, Mode("bogus").Valid())
}

func TestGuardFullModeAllowsNonFullModes(t *testing.T) {
	assert.NoError(t, GuardFullMode(ModeCompact, true, false, false))
}

func TestGuardFullModeAllowsFullWhenNotPollingOrDelta(t *testing.T) {
	assert.NoError(t, GuardFullMode(ModeFull, false, false, false))
}

func TestGuardFullModeRejectsFullWhilePolling(t *testing.T) {
	err := GuardFullMode(ModeFull, true, false, false)
	assert.True(t, codes.Is(err, codes.FullModeForbidden))
}

func TestGuardFullModeRejectsFullWithDeltaOrdering(t *testing.T) {
	err := GuardFullMode(ModeFull, false, true, false)
	assert.True(t, codes.Is(err, codes.FullModeForbidden))
}

func TestGuardFullModeOverrideAllowsFull(t *testing.T) {
	assert.NoError(t, GuardFullMode(ModeFull, true, true, true))
}
