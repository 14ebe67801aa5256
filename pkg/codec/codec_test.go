package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeNone(t *testing.T) {
	res, err := Encode("  hello   world  ", ModeNone)
	require.NoError(t, err)
	assert.Equal(t, "  hello   world  ", res.StoredValue)
	assert.False(t, res.Applied)
	assert.True(t, res.Lossless)
}

func TestEncodeWhitespace(t *testing.T) {
	res, err := Encode("  hello   world  \n\tfoo", ModeWhitespace)
	require.NoError(t, err)
	assert.Equal(t, "hello world foo", res.StoredValue)
	assert.True(t, res.Applied)
	assert.False(t, res.Lossless)
}

func TestEncodeJSONMinifies(t *testing.T) {
	res, err := Encode(`{"b": 1,   "a": "x"}`, ModeJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":1}`, res.StoredValue)
	assert.True(t, res.Applied)
}

func TestEncodeJSONPassthroughOnParseFailure(t *testing.T) {
	res, err := Encode("not json at all", ModeJSON)
	require.NoError(t, err)
	assert.Equal(t, "not json at all", res.StoredValue)
	assert.False(t, res.Applied)
}

func TestEncodeAutoTieBreakPrefersRaw(t *testing.T) {
	res, err := Encode("abc", ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, "abc", res.StoredValue)
	assert.False(t, res.Applied)
}

func TestEncodeAutoPicksShortest(t *testing.T) {
	res, err := Encode("a    b    c", ModeAuto)
	require.NoError(t, err)
	assert.Equal(t, "a b c", res.StoredValue)
	assert.True(t, res.Applied)
}

func TestLosslessAutoRoundTrip(t *testing.T) {
	payload := strings.Repeat("the quick brown fox jumps over the lazy dog ", 50)

	res, err := Encode(payload, ModeLosslessAuto)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.Lossless)

	decoded, err := Decode(res.StoredValue)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded.Value)
	assert.True(t, decoded.IntegrityOK)
}

func TestLosslessAutoFallsBackWhenNotWorthwhile(t *testing.T) {
	res, err := Encode("x", ModeLosslessAuto)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "x", res.StoredValue)
}

func TestDecodeNoneIsIdentity(t *testing.T) {
	decoded, err := Decode("plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", decoded.Value)
	assert.True(t, decoded.IntegrityOK)
}

func TestBlobRefRoundTrip(t *testing.T) {
	s, err := MakeBlobRef("abc123", 42)
	require.NoError(t, err)

	hash, declared, ok := ParseBlobRef(s)
	require.True(t, ok)
	assert.Equal(t, "abc123", hash)
	assert.Equal(t, 42, declared)
}

func TestParseBlobRefRejectsUnrelatedJSON(t *testing.T) {
	_, _, ok := ParseBlobRef(`{"foo":"bar"}`)
	assert.False(t, ok)
}

func TestParseBlobRefRejectsNonJSON(t *testing.T) {
	_, _, ok := ParseBlobRef("hello world")
	assert.False(t, ok)
}
