package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearNexusEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_NAME", "APP_VERSION", "ENVIRONMENT", "DEBUG", "PORT", "FRONTEND_URL",
		"DATABASE_URL", "GROQ_API_KEY", "TOGETHER_API_KEY", "OPENROUTER_API_KEY",
		"OPENAI_API_KEY", "AI_TEMPERATURE", "AI_MAX_TOKENS", "AI_TIMEOUT_SECONDS",
		"JWT_SECRET_KEY", "RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_PER_HOUR",
		"MAX_UPLOAD_SIZE_MB", "NOAA_API_TOKEN", "ENABLE_RAG", "ENABLE_WEATHER_API",
		"ENABLE_EMAIL_GENERATOR", "ENABLE_DOCUMENT_PROCESSING", "ENABLE_VOICE_INPUT",
		"RAG_TOP_K", "RAG_SIMILARITY_THRESHOLD",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearNexusEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "NEXUS Backend", cfg.App.Name)
	assert.Equal(t, "2.0.0", cfg.App.Version)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "8000", cfg.App.Port)
	assert.Equal(t, "./data/nexus.db", cfg.Database.Path)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.AI.GroqModel)
	assert.Equal(t, 0.7, cfg.AI.Temperature)
	assert.Equal(t, 2048, cfg.AI.MaxTokens)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 60, cfg.RateLimit.PerMinute)
	assert.Equal(t, 1000, cfg.RateLimit.PerHour)
	assert.Equal(t, 10, cfg.Upload.MaxSizeMB)
	assert.Contains(t, cfg.Upload.AllowedExtensions, "pdf")
	assert.True(t, cfg.Features.EnableRAG)
	assert.True(t, cfg.Features.EnableWeatherAPI)
	assert.False(t, cfg.Features.EnableVoiceInput)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 0.7, cfg.RAG.SimilarityThreshold)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearNexusEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("AI_MAX_TOKENS", "4096")
	t.Setenv("ENABLE_RAG", "false")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("AI_TEMPERATURE", "0.3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 4096, cfg.AI.MaxTokens)
	assert.False(t, cfg.Features.EnableRAG)
	assert.Equal(t, "gsk_test", cfg.AI.GroqAPIKey)
	assert.Equal(t, 0.3, cfg.AI.Temperature)
	assert.True(t, cfg.HasAnyProviderKey())
}

func TestLoadYAMLOverlay(t *testing.T) {
	clearNexusEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `App:
  name: Custom Backend
  port: "8100"
RAG:
  topK: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Custom Backend", cfg.App.Name)
	assert.Equal(t, "8100", cfg.App.Port)
	assert.Equal(t, 8, cfg.RAG.TopK)
	// Untouched fields still pick up defaults.
	assert.Equal(t, "2.0.0", cfg.App.Version)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	clearNexusEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("App:\n  port: \"8100\"\n"), 0644))
	t.Setenv("PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.App.Port)
}

func TestProductionValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			env:     map[string]string{"ENVIRONMENT": "production", "GROQ_API_KEY": "gsk_x"},
			wantErr: "JWT_SECRET_KEY",
		},
		{
			name:    "default jwt secret rejected",
			env:     map[string]string{"ENVIRONMENT": "production", "JWT_SECRET_KEY": "change-me-in-production", "GROQ_API_KEY": "gsk_x"},
			wantErr: "JWT_SECRET_KEY",
		},
		{
			name:    "no provider key",
			env:     map[string]string{"ENVIRONMENT": "production", "JWT_SECRET_KEY": "s3cret-k3y"},
			wantErr: "AI provider key",
		},
		{
			name: "valid production",
			env:  map[string]string{"ENVIRONMENT": "production", "JWT_SECRET_KEY": "s3cret-k3y", "TOGETHER_API_KEY": "tk_x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearNexusEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load("")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, cfg.IsProduction())
		})
	}
}

func TestValidateRanges(t *testing.T) {
	clearNexusEnv(t)
	t.Setenv("AI_TEMPERATURE", "3.5")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_TEMPERATURE")

	clearNexusEnv(t)
	t.Setenv("PORT", "not-a-port")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestCORSOrigins(t *testing.T) {
	clearNexusEnv(t)
	t.Setenv("FRONTEND_URL", "https://app.roofdocs.example")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET_KEY", "s3cret-k3y")
	t.Setenv("GROQ_API_KEY", "gsk_x")

	cfg, err := Load("")
	require.NoError(t, err)

	origins := cfg.CORSOrigins()
	assert.Equal(t, "https://app.roofdocs.example", origins[0])
	assert.Contains(t, origins, "http://localhost:3000")
	assert.Contains(t, origins, "https://*.railway.app")
}
