package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"promptforge/internal/models"
)

const (
	defaultProviderTimeout = 60 * time.Second
	defaultCatalogCacheTTL = 5 * time.Minute
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Models    []ModelConfig   `yaml:"models"`
	Tiers     []TierConfig    `yaml:"tiers"`
	Accounts  []AccountConfig `yaml:"accounts"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ProvidersConfig catalogues configured upstream providers. A nil entry
// means the provider is not enabled; models must not reference it.
type ProvidersConfig struct {
	OpenAI    *ProviderConfig `yaml:"openai"`
	Anthropic *ProviderConfig `yaml:"anthropic"`
	Gemini    *ProviderConfig `yaml:"gemini"`
	Mistral   *ProviderConfig `yaml:"mistral"`
	DeepSeek  *ProviderConfig `yaml:"deepseek"`
}

// ProviderConfig captures authentication and transport settings for one
// upstream provider. APIKeyEnv names an environment variable consulted when
// APIKey itself is empty, so secrets can stay out of the config file.
type ProviderConfig struct {
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	// Timeout is a Go duration string such as "45s".
	Timeout string `yaml:"timeout"`
}

// ResolveAPIKey returns the configured key, falling back to the named
// environment variable.
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// EffectiveTimeout returns the configured upstream call timeout, or the
// default when unset. Some deep model variants take 30-60s to answer, so the
// default is deliberately generous.
func (p ProviderConfig) EffectiveTimeout() time.Duration {
	if d, err := time.ParseDuration(p.Timeout); err == nil && d > 0 {
		return d
	}
	return defaultProviderTimeout
}

// ModelConfig describes one billable model exposed by a provider.
type ModelConfig struct {
	ID                  string `yaml:"id"`
	Provider            string `yaml:"provider"`
	CreditCost          int    `yaml:"credit_cost"`
	SupportsSuggestions bool   `yaml:"supports_suggestions"`
}

// TierConfig maps an account tier to its default model.
type TierConfig struct {
	Name         string `yaml:"name"`
	DefaultModel string `yaml:"default_model"`
}

// AccountConfig seeds the credit ledger with an account.
type AccountConfig struct {
	ID      string `yaml:"id"`
	Tier    string `yaml:"tier"`
	Balance int    `yaml:"balance"`
}

// CatalogConfig controls the per-process model configuration cache.
type CatalogConfig struct {
	// CacheTTL is a Go duration string such as "30s".
	CacheTTL string `yaml:"cache_ttl"`
}

// EffectiveCacheTTL returns the snapshot cache TTL, or the default when unset.
func (c CatalogConfig) EffectiveCacheTTL() time.Duration {
	if d, err := time.ParseDuration(c.CacheTTL); err == nil && d > 0 {
		return d
	}
	return defaultCatalogCacheTTL
}

// Load reads YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	enabled := c.enabledProviders()
	if len(enabled) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	for kind, provider := range enabled {
		if err := validateProvider(kind, provider); err != nil {
			return err
		}
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model must be configured")
	}
	seenModels := make(map[string]bool, len(c.Models))
	for _, model := range c.Models {
		if strings.TrimSpace(model.ID) == "" {
			return fmt.Errorf("model id must not be empty")
		}
		if seenModels[model.ID] {
			return fmt.Errorf("model %q configured more than once", model.ID)
		}
		seenModels[model.ID] = true

		kind := models.ProviderKind(model.Provider)
		if !kind.Valid() {
			return fmt.Errorf("model %s: unknown provider %q", model.ID, model.Provider)
		}
		if _, ok := enabled[kind]; !ok {
			return fmt.Errorf("model %s references provider %q which is not configured", model.ID, model.Provider)
		}
		if model.CreditCost <= 0 {
			return fmt.Errorf("model %s: credit_cost must be positive, got %d", model.ID, model.CreditCost)
		}
	}

	seenTiers := make(map[string]bool, len(c.Tiers))
	for _, tier := range c.Tiers {
		if strings.TrimSpace(tier.Name) == "" {
			return fmt.Errorf("tier name must not be empty")
		}
		if seenTiers[tier.Name] {
			return fmt.Errorf("tier %q configured more than once", tier.Name)
		}
		seenTiers[tier.Name] = true
		if !seenModels[tier.DefaultModel] {
			return fmt.Errorf("tier %s: default_model %q is not a configured model", tier.Name, tier.DefaultModel)
		}
	}

	seenAccounts := make(map[string]bool, len(c.Accounts))
	for _, account := range c.Accounts {
		if strings.TrimSpace(account.ID) == "" {
			return fmt.Errorf("account id must not be empty")
		}
		if seenAccounts[account.ID] {
			return fmt.Errorf("account %q configured more than once", account.ID)
		}
		seenAccounts[account.ID] = true
		if account.Balance < 0 {
			return fmt.Errorf("account %s: balance must not be negative, got %d", account.ID, account.Balance)
		}
		if account.Tier != "" && !seenTiers[account.Tier] {
			return fmt.Errorf("account %s: tier %q is not configured", account.ID, account.Tier)
		}
	}

	if c.Catalog.CacheTTL != "" {
		if _, err := time.ParseDuration(c.Catalog.CacheTTL); err != nil {
			return fmt.Errorf("catalog.cache_ttl: invalid duration %q: %w", c.Catalog.CacheTTL, err)
		}
	}

	return nil
}

func (c Config) enabledProviders() map[models.ProviderKind]ProviderConfig {
	enabled := make(map[models.ProviderKind]ProviderConfig)
	if c.Providers.OpenAI != nil {
		enabled[models.ProviderOpenAI] = *c.Providers.OpenAI
	}
	if c.Providers.Anthropic != nil {
		enabled[models.ProviderAnthropic] = *c.Providers.Anthropic
	}
	if c.Providers.Gemini != nil {
		enabled[models.ProviderGemini] = *c.Providers.Gemini
	}
	if c.Providers.Mistral != nil {
		enabled[models.ProviderMistral] = *c.Providers.Mistral
	}
	if c.Providers.DeepSeek != nil {
		enabled[models.ProviderDeepSeek] = *c.Providers.DeepSeek
	}
	return enabled
}

func validateProvider(kind models.ProviderKind, provider ProviderConfig) error {
	// The key itself may arrive later through the environment, but the
	// configuration must at least say where it comes from.
	if strings.TrimSpace(provider.APIKey) == "" && strings.TrimSpace(provider.APIKeyEnv) == "" {
		return fmt.Errorf("provider %s: api_key or api_key_env must be provided", kind)
	}
	if strings.TrimSpace(provider.BaseURL) == "" {
		return fmt.Errorf("provider %s: base_url must be provided", kind)
	}
	if provider.Timeout != "" {
		d, err := time.ParseDuration(provider.Timeout)
		if err != nil {
			return fmt.Errorf("provider %s: invalid timeout %q: %w", kind, provider.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("provider %s: timeout must be positive, got %s", kind, provider.Timeout)
		}
	}
	return nil
}
