package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("DEMO_LATENCY_MS", "")
	t.Setenv("DENO_DEPLOY_ACCESS_TOKEN", "")
	t.Setenv("D1_TIMEOUT_MS", "")

	cfg := Load()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.D1Timeout)
	assert.Equal(t, "gpt-3.5-turbo-0125", cfg.OpenAIModel)
	assert.Equal(t, time.Second, cfg.DemoLatency)
	assert.Equal(t, 10*time.Minute, cfg.ConfirmationTimeout)
	assert.False(t, cfg.DeployEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("DEMO_LATENCY_MS", "0")
	t.Setenv("D1_TIMEOUT_MS", "2500")
	t.Setenv("SESSION_CACHE_SIZE", "not-a-number")
	t.Setenv("DENO_DEPLOY_ACCESS_TOKEN", "tok")
	t.Setenv("DENO_DEPLOY_ORG_ID", "org")

	cfg := Load()
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, time.Duration(0), cfg.DemoLatency)
	assert.Equal(t, 2500*time.Millisecond, cfg.D1Timeout)
	assert.Equal(t, 1024, cfg.SessionCacheSize)
	assert.True(t, cfg.DeployEnabled())
}
