package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 25*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 6, cfg.Import.Workers)
	assert.Contains(t, cfg.Fetch.AcceptLanguage, "ru-RU")
	assert.Empty(t, cfg.Proxy.URL)
	assert.False(t, cfg.LLM.Enabled)
	assert.Equal(t, int64(100000), cfg.Relay.StreamMaxLen)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IMPORT_WORKERS", "4")
	t.Setenv("FETCH_TIMEOUT", "30s")
	t.Setenv("PROXY_URL", "http://proxy.internal:3128")
	t.Setenv("LLM_ENABLED", "true")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Import.Workers)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "http://proxy.internal:3128", cfg.Proxy.URL)
	assert.True(t, cfg.LLM.Enabled)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Fetch:  FetchConfig{Timeout: 20 * time.Second, RatePerHost: 2},
			LLM:    LLMConfig{Timeout: 25 * time.Second},
			Import: ImportConfig{Workers: 6, MaxURLs: 100},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "fetch timeout too short", mutate: func(c *Config) { c.Fetch.Timeout = 5 * time.Second }, wantErr: "FETCH_TIMEOUT"},
		{name: "too many workers", mutate: func(c *Config) { c.Import.Workers = 16 }, wantErr: "IMPORT_WORKERS"},
		{name: "no workers", mutate: func(c *Config) { c.Import.Workers = 0 }, wantErr: "IMPORT_WORKERS"},
		{name: "llm without key", mutate: func(c *Config) { c.LLM.Enabled = true }, wantErr: "LLM_API_KEY"},
		{name: "relay without database", mutate: func(c *Config) { c.Relay.Enabled = true }, wantErr: "DATABASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
