package factory

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"promptforge/internal/config"
	"promptforge/internal/models"
	"promptforge/internal/provider"
	anthropicAdapter "promptforge/internal/provider/anthropic"
	deepseekAdapter "promptforge/internal/provider/deepseek"
	geminiAdapter "promptforge/internal/provider/gemini"
	mistralAdapter "promptforge/internal/provider/mistral"
	openaiAdapter "promptforge/internal/provider/openai"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// BuildAdapters constructs one adapter per configured provider, each with
// its own HTTP client honouring the provider's call timeout.
func BuildAdapters(cfg config.Config) (map[models.ProviderKind]provider.Adapter, error) {
	adapters := make(map[models.ProviderKind]provider.Adapter)

	if cfg.Providers.OpenAI != nil {
		adapter, err := openaiAdapter.New(*cfg.Providers.OpenAI, newHTTPClient(cfg.Providers.OpenAI.EffectiveTimeout()))
		if err != nil {
			return nil, fmt.Errorf("initialise openai adapter: %w", err)
		}
		adapters[models.ProviderOpenAI] = adapter
	}

	if cfg.Providers.Anthropic != nil {
		adapter, err := anthropicAdapter.New(*cfg.Providers.Anthropic, newHTTPClient(cfg.Providers.Anthropic.EffectiveTimeout()))
		if err != nil {
			return nil, fmt.Errorf("initialise anthropic adapter: %w", err)
		}
		adapters[models.ProviderAnthropic] = adapter
	}

	if cfg.Providers.Gemini != nil {
		adapter, err := geminiAdapter.New(*cfg.Providers.Gemini, newHTTPClient(cfg.Providers.Gemini.EffectiveTimeout()))
		if err != nil {
			return nil, fmt.Errorf("initialise gemini adapter: %w", err)
		}
		adapters[models.ProviderGemini] = adapter
	}

	if cfg.Providers.Mistral != nil {
		adapter, err := mistralAdapter.New(*cfg.Providers.Mistral, newHTTPClient(cfg.Providers.Mistral.EffectiveTimeout()))
		if err != nil {
			return nil, fmt.Errorf("initialise mistral adapter: %w", err)
		}
		adapters[models.ProviderMistral] = adapter
	}

	if cfg.Providers.DeepSeek != nil {
		adapter, err := deepseekAdapter.New(*cfg.Providers.DeepSeek, newHTTPClient(cfg.Providers.DeepSeek.EffectiveTimeout()))
		if err != nil {
			return nil, fmt.Errorf("initialise deepseek adapter: %w", err)
		}
		adapters[models.ProviderDeepSeek] = adapter
	}

	return adapters, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
