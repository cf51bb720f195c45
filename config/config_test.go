package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "YOUR_GEMINI_API_KEY", cfg.Gemini.APIKey)
	assert.False(t, cfg.CredentialConfigured())
	assert.Equal(t, BackendREST, cfg.Gemini.Backend)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", cfg.Gemini.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.Gemini.Timeout)
	assert.Equal(t, uint64(0), cfg.Gemini.MaxRetries)
	assert.Equal(t, 30*time.Millisecond, cfg.Chat.TypewriterSpeed)
	assert.False(t, cfg.Chat.AllowOverlappingSends)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
	assert.False(t, cfg.Voice.TTSEnabled)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"GEMINI_API_KEY":               "real-key",
		"GEMINI_BACKEND":               "GenAI",
		"GEMINI_MAX_RETRIES":           "3",
		"CHAT_TYPEWRITER_SPEED":        "10ms",
		"CHAT_ALLOW_OVERLAPPING_SENDS": "true",
		"SERVER_ALLOW_ORIGINS":         "https://a.example,https://b.example",
	})
	require.NoError(t, err)

	assert.True(t, cfg.CredentialConfigured())
	assert.Equal(t, BackendGenai, cfg.Gemini.Backend)
	assert.Equal(t, uint64(3), cfg.Gemini.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.Chat.TypewriterSpeed)
	assert.True(t, cfg.Chat.AllowOverlappingSends)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowOrigins)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse(map[string]string{"GEMINI_BACKEND": "grpc"})
	assert.Error(t, err)

	_, err = Parse(map[string]string{"CHAT_TYPEWRITER_SPEED": "0s"})
	assert.Error(t, err)
}
