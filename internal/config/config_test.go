package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "9093", cfg.GRPCPort)
	assert.Equal(t, "chat.events", cfg.AMQPExchange)
	assert.Equal(t, 5*time.Minute, cfg.EmptyConversationWindow)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.False(t, cfg.Development())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9000")
	t.Setenv("APP_ENV", "development")
	t.Setenv("EMPTY_CONVERSATION_WINDOW", "90s")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.Development())
	assert.Equal(t, 90*time.Second, cfg.EmptyConversationWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadRequiresCredentialSource(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_JWKS_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PROFILE_CACHE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}
