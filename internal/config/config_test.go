package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "claude-3-7-sonnet-latest", s.Model)
	assert.Equal(t, time.Hour, s.MemoryTTL)
	assert.Equal(t, 10, s.CompactThreshold)
	assert.Equal(t, 10, s.MaxIterations)
	assert.Equal(t, 8000, s.TokenBudget)
	assert.Equal(t, 60*time.Second, s.CommandTimeout)
	assert.Equal(t, ":8000", s.ListenAddr)
	assert.Equal(t, "info", s.LogLevel)
	assert.False(t, s.Verbose)
	assert.False(t, s.LineEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KW_MODEL", "claude-test")
	t.Setenv("KW_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KW_MAX_ITERATIONS", "25")
	t.Setenv("KW_COMMAND_TIMEOUT", "90s")
	t.Setenv("KW_VERBOSE", "true")
	t.Setenv("KW_KUBECONFIG", "/tmp/kubeconfig")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "claude-test", s.Model)
	assert.Equal(t, "redis://localhost:6379/0", s.RedisURL)
	assert.Equal(t, 25, s.MaxIterations)
	assert.Equal(t, 90*time.Second, s.CommandTimeout)
	assert.True(t, s.Verbose)
	assert.Equal(t, "/tmp/kubeconfig", s.KubeconfigPath)
}

func TestLoad_RejectsNonPositiveLimits(t *testing.T) {
	t.Setenv("KW_MAX_ITERATIONS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KW_MAX_ITERATIONS")
}

func TestLineEnabled_RequiresBothValues(t *testing.T) {
	t.Setenv("KW_LINE_CHANNEL_SECRET", "secret")
	s, err := Load()
	require.NoError(t, err)
	assert.False(t, s.LineEnabled())

	t.Setenv("KW_LINE_CHANNEL_TOKEN", "token")
	s, err = Load()
	require.NoError(t, err)
	assert.True(t, s.LineEnabled())
}
