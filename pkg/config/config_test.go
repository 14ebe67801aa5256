package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1024, cfg.MaxMessageContentChars)
	assert.Equal(t, 1024, cfg.MaxMessageMetadataChars)
	assert.Equal(t, 32768, cfg.MaxProtocolBlobChars)
	assert.True(t, cfg.DisallowFullInPolling)
	assert.Equal(t, 0.9, cfg.DoneConfidenceFloor)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Setenv("MAX_MESSAGE_CONTENT_CHARS", "2048")
	os.Setenv("DISALLOW_FULL_IN_POLLING", "0")
	os.Setenv("DONE_CONFIDENCE_FLOOR", "0.75")
	os.Setenv("HUB_NAMESPACE_KEYWORDS", "alpha, beta ,gamma")
	defer func() {
		os.Unsetenv("MAX_MESSAGE_CONTENT_CHARS")
		os.Unsetenv("DISALLOW_FULL_IN_POLLING")
		os.Unsetenv("DONE_CONFIDENCE_FLOOR")
		os.Unsetenv("HUB_NAMESPACE_KEYWORDS")
	}()

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.MaxMessageContentChars)
	assert.False(t, cfg.DisallowFullInPolling)
	assert.Equal(t, 0.75, cfg.DoneConfidenceFloor)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.NamespaceKeywords)
}

func TestLoadBadDuration(t *testing.T) {
	os.Setenv("IDEMPOTENCY_RETENTION", "not-a-duration")
	defer os.Unsetenv("IDEMPOTENCY_RETENTION")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingEnvFileIsNotError(t *testing.T) {
	_, err := Load("/nonexistent/path/.env")
	assert.NoError(t, err)
}
