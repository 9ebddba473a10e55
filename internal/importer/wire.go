package importer

import (
	"fmt"
	"log/slog"

	"github.com/maltedev/lighting-importer/internal/config"
	"github.com/maltedev/lighting-importer/internal/fetcher"
	"github.com/maltedev/lighting-importer/internal/llm"
	"github.com/maltedev/lighting-importer/internal/ratelimit"
)

// NewServiceFromConfig wires the fetcher, the rate limiter and, when
// enabled, the LLM enhancer from configuration. Extra options are applied
// last.
func NewServiceFromConfig(cfg *config.Config, logger *slog.Logger, extra ...Option) (*Service, error) {
	proxy, err := fetcher.ProxyURL(cfg.Proxy.URL, cfg.Proxy.User, cfg.Proxy.Password)
	if err != nil {
		return nil, fmt.Errorf("configure proxy: %w", err)
	}

	f := fetcher.New(fetcher.Options{
		Timeout:        cfg.Fetch.Timeout,
		UserAgent:      cfg.Fetch.UserAgent,
		AcceptLanguage: cfg.Fetch.AcceptLanguage,
		MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
		Proxy:          proxy,
		Limiter:        ratelimit.NewHostLimiter(cfg.Fetch.RatePerHost, cfg.Fetch.RateBurst),
	}, logger)

	opts := []Option{WithWorkers(cfg.Import.Workers)}
	if cfg.LLM.Enabled {
		completer := llm.NewOpenAIClient(llm.ClientConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		opts = append(opts, WithEnhancer(llm.NewEnhancer(completer, cfg.LLM.Timeout, logger)))
		logger.Info("llm enhancement enabled", "model", cfg.LLM.Model)
	}

	return NewService(f, logger, append(opts, extra...)...), nil
}
