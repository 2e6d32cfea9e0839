package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the costgate service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Quota    QuotaConfig    `yaml:"quota"`
	AI       AIConfig       `yaml:"ai"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ExchangeConfig holds exchange-rate acquisition settings.
type ExchangeConfig struct {
	Currency        string           `yaml:"currency"`          // local currency code (default: BRL)
	Providers       []RateSourceConf `yaml:"providers"`         // tried in declared order
	CacheTTLMin     int              `yaml:"cache_ttl_min"`     // default: 60
	FetchTimeoutSec int              `yaml:"fetch_timeout_sec"` // default: 5
	FallbackRate    float64          `yaml:"fallback_rate"`     // default: 5.33
	MinRate         float64          `yaml:"min_rate"`          // sanity band lower bound (default: 3)
	MaxRate         float64          `yaml:"max_rate"`          // sanity band upper bound (default: 10)
}

// RateSourceConf describes one remote exchange-rate source.
type RateSourceConf struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

// PricingConfig maps model names to USD prices per million tokens.
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

// ModelPricing holds USD prices per million tokens for one model.
type ModelPricing struct {
	InputPerMillionUSD  float64 `yaml:"input_per_million_usd"`
	OutputPerMillionUSD float64 `yaml:"output_per_million_usd"`
}

// QuotaConfig maps plan tiers to weekly spending ceilings.
type QuotaConfig struct {
	Tiers map[string]TierConfig `yaml:"tiers"`
}

// TierConfig holds the weekly limit for one plan tier.
type TierConfig struct {
	WeeklyLimitCents int64 `yaml:"weekly_limit_cents"`
}

// AIConfig holds the metered AI provider settings.
type AIConfig struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	ExpectedOutTokens int64  `yaml:"expected_out_tokens"` // planning figure for pre-call estimates
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Exchange.Currency == "" {
		c.Exchange.Currency = "BRL"
	}
	if c.Exchange.CacheTTLMin <= 0 {
		c.Exchange.CacheTTLMin = 60
	}
	if c.Exchange.FetchTimeoutSec <= 0 {
		c.Exchange.FetchTimeoutSec = 5
	}
	if c.Exchange.FallbackRate <= 0 {
		c.Exchange.FallbackRate = 5.33
	}
	if c.Exchange.MinRate <= 0 {
		c.Exchange.MinRate = 3
	}
	if c.Exchange.MaxRate <= 0 {
		c.Exchange.MaxRate = 10
	}
	if c.AI.ExpectedOutTokens <= 0 {
		c.AI.ExpectedOutTokens = 1500
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Exchange.MinRate >= c.Exchange.MaxRate {
		return fmt.Errorf("exchange: min_rate %.2f must be below max_rate %.2f",
			c.Exchange.MinRate, c.Exchange.MaxRate)
	}
	for i, p := range c.Exchange.Providers {
		if p.Name == "" || p.BaseURL == "" {
			return fmt.Errorf("exchange.providers[%d]: name and base_url are required", i)
		}
	}
	for name, m := range c.Pricing.Models {
		if m.InputPerMillionUSD < 0 || m.OutputPerMillionUSD < 0 {
			return fmt.Errorf("pricing.models.%s: prices must be non-negative", name)
		}
	}
	for name, tier := range c.Quota.Tiers {
		if tier.WeeklyLimitCents < 0 {
			return fmt.Errorf("quota.tiers.%s: weekly_limit_cents must be non-negative", name)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
