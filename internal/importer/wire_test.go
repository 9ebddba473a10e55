package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/lighting-importer/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Fetch: config.FetchConfig{
			Timeout:     20 * time.Second,
			UserAgent:   "test-agent",
			RatePerHost: 2,
			RateBurst:   2,
		},
		LLM: config.LLMConfig{
			Model:   "gpt-4o-mini",
			Timeout: 25 * time.Second,
		},
		Import: config.ImportConfig{Workers: 4, MaxURLs: 200},
	}
}

func TestNewServiceFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Enabled = true
	cfg.LLM.APIKey = "key"

	svc, err := NewServiceFromConfig(cfg, testLogger(), WithStore(&memStore{}))
	require.NoError(t, err)

	assert.Equal(t, 4, svc.workers)
	assert.NotNil(t, svc.enhancer)
	assert.True(t, svc.HasStore())
}

func TestNewServiceFromConfig_LLMDisabled(t *testing.T) {
	svc, err := NewServiceFromConfig(testConfig(), testLogger())
	require.NoError(t, err)

	assert.Nil(t, svc.enhancer)
	assert.False(t, svc.HasStore())
}

func TestNewServiceFromConfig_BadProxy(t *testing.T) {
	cfg := testConfig()
	cfg.Proxy.URL = "socks9://proxy.example:1080"

	_, err := NewServiceFromConfig(cfg, testLogger())
	assert.ErrorContains(t, err, "configure proxy")
}
