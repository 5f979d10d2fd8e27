package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaqa/config"
	"mediaqa/internal/cache"
	"mediaqa/internal/core"
	"mediaqa/internal/video"
)

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY", "MASTER_KEY", "CACHE_TYPE", "REDIS_URL"} {
		t.Setenv(key, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)

	cfg := loadConfig(t, nil)
	_, err = New(context.Background(), Config{AppConfig: cfg, Target: config.TargetPDFAssistant})
	require.Error(t, err)

	_, err = New(context.Background(), Config{AppConfig: cfg, Target: config.TargetGroqVideo})
	require.Error(t, err)
	assert.Equal(t, core.KindConfiguration, core.KindOf(err))
}

func TestNew_VideoTargets(t *testing.T) {
	tests := []struct {
		target  config.Target
		env     map[string]string
		variant video.Variant
	}{
		{target: config.TargetGroqVideo, env: map[string]string{"GROQ_API_KEY": "gsk-test", "CACHE_TYPE": "none"}, variant: video.GroqVariant},
		{target: config.TargetGeminiVideo, env: map[string]string{"GOOGLE_API_KEY": "g-test", "CACHE_TYPE": "local"}, variant: video.GeminiVariant},
	}

	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			cfg := loadConfig(t, tt.env)
			app, err := New(context.Background(), Config{AppConfig: cfg, Target: tt.target})
			require.NoError(t, err)

			assert.Equal(t, tt.variant.Key, app.Summarizer().Variant().Key)

			rec := httptest.NewRecorder()
			app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.variant.Title)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, app.Shutdown(ctx))
			require.NoError(t, app.Shutdown(ctx), "shutdown is idempotent")
		})
	}
}

func TestNewAssistant_ValidatesBeforeConnecting(t *testing.T) {
	cfg := loadConfig(t, nil)
	cfg.Storage.PostgreSQL.URL = "postgres://nobody@127.0.0.1:1/none"

	_, err := NewAssistant(context.Background(), cfg, AssistantOptions{})
	require.Error(t, err)
	assert.Equal(t, core.KindConfiguration, core.KindOf(err))
	assert.Contains(t, err.Error(), "GROQ_API_KEY")

	_, err = NewAssistant(context.Background(), nil, AssistantOptions{})
	require.Error(t, err)
}

func TestBuildCacheConfig(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"CACHE_TYPE": "redis", "REDIS_URL": "redis://cache:6379"})

	got := buildCacheConfig(cfg)
	assert.Equal(t, cache.TypeRedis, got.Type)
	assert.Equal(t, 6*time.Hour, got.TTL)
	assert.Equal(t, "redis://cache:6379", got.Redis.URL)
	assert.Equal(t, "mediaqa:search:", got.Redis.Prefix)
	assert.Equal(t, ".cache/search", got.Local.Dir)
}

func TestNewHTTPClient_UsesConfiguredTimeout(t *testing.T) {
	cfg := loadConfig(t, nil)
	cfg.HTTP.Timeout = 42
	assert.Equal(t, 42*time.Second, newHTTPClient(cfg).Timeout)
}
