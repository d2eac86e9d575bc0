package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "HTTP_PORT", "GENAI_API_KEY", "GENAI_SKIP", "SESSION_TTL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.GenAISkip, "skip defaults to on without an api key")
	assert.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("GENAI_API_KEY", "key")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("LOGIN_RATE_LIMIT_PER_MIN", "3")
	t.Setenv("GENAI_TIMEOUT", "not-a-duration")

	cfg := Load()
	assert.True(t, cfg.Production())
	assert.False(t, cfg.GenAISkip)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.LoginRateLimitPerMin)
	assert.Equal(t, 20*time.Second, cfg.GenAITimeout)
}

func TestLocation(t *testing.T) {
	cfg := App{Timezone: "UTC"}
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC.String(), loc.String())

	_, err = App{Timezone: "Not/AZone"}.Location()
	assert.Error(t, err)
}
