package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Deliberate server.
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Gateway    GatewayConfig
	Deliberate DeliberateConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	// KeyHashes are bcrypt hashes of the accepted API keys. Raw keys are
	// never configured or stored.
	KeyHashes       []string
	RateLimitPerMin int
}

type GatewayConfig struct {
	Provider   string
	OpenRouter OpenRouterConfig
}

type OpenRouterConfig struct {
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

type DeliberateConfig struct {
	// DefaultModels is used when a request does not name its own three agents.
	DefaultModels []string
	// CallTimeout bounds one model call inside a round.
	CallTimeout time.Duration
	// JobTimeout is the upper bound on a whole deliberation.
	JobTimeout time.Duration
	// MaxConcurrentJobs caps simultaneously running deliberations.
	MaxConcurrentJobs int
}

var validProviders = map[string]bool{
	"openrouter": true,
	"mock":       true,
}

// Default agent set, chosen for diverse perspectives.
var defaultModels = []string{
	"anthropic/claude-haiku-4.5",
	"liquid/lfm-2.5-1.2b-thinking:free",
	"google/gemini-3-flash-preview",
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("DELIBERATE_PORT", 8080),
			Env:  envString("DELIBERATE_ENV", "development"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			KeyHashes:       envList("DELIBERATE_API_KEY_HASHES"),
			RateLimitPerMin: envInt("DELIBERATE_RATE_LIMIT_PER_MIN", 60),
		},
		Gateway: GatewayConfig{
			Provider: envString("GATEWAY_PROVIDER", "openrouter"),
			OpenRouter: OpenRouterConfig{
				APIKey:      os.Getenv("OPENROUTER_API_KEY"),
				BaseURL:     envString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
				MaxTokens:   envInt("OPENROUTER_MAX_TOKENS", 4096),
				Temperature: envFloat("OPENROUTER_TEMPERATURE", 0.7),
			},
		},
		Deliberate: DeliberateConfig{
			DefaultModels:     envModels("DELIBERATE_MODELS"),
			CallTimeout:       envDurationSecs("DELIBERATE_CALL_TIMEOUT_SECS", 120*time.Second),
			JobTimeout:        envDurationSecs("DELIBERATE_JOB_TIMEOUT_SECS", 600*time.Second),
			MaxConcurrentJobs: envInt("DELIBERATE_MAX_CONCURRENT_JOBS", 8),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.Auth.KeyHashes) == 0 {
		return fmt.Errorf("DELIBERATE_API_KEY_HASHES is required")
	}

	if !validProviders[c.Gateway.Provider] {
		return fmt.Errorf("GATEWAY_PROVIDER must be one of openrouter, mock; got %q", c.Gateway.Provider)
	}
	if c.Gateway.Provider == "openrouter" && c.Gateway.OpenRouter.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required when GATEWAY_PROVIDER is openrouter")
	}
	if !strings.HasPrefix(c.Gateway.OpenRouter.BaseURL, "http://") &&
		!strings.HasPrefix(c.Gateway.OpenRouter.BaseURL, "https://") {
		return fmt.Errorf("OPENROUTER_BASE_URL must start with http:// or https://, got %q", c.Gateway.OpenRouter.BaseURL)
	}

	if len(c.Deliberate.DefaultModels) != 3 {
		return fmt.Errorf("DELIBERATE_MODELS must name exactly 3 models, got %d", len(c.Deliberate.DefaultModels))
	}
	if c.Deliberate.MaxConcurrentJobs < 1 {
		return fmt.Errorf("DELIBERATE_MAX_CONCURRENT_JOBS must be at least 1")
	}
	if c.Deliberate.JobTimeout < c.Deliberate.CallTimeout {
		return fmt.Errorf("DELIBERATE_JOB_TIMEOUT_SECS must be at least DELIBERATE_CALL_TIMEOUT_SECS")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envModels(key string) []string {
	if list := envList(key); list != nil {
		return list
	}
	return append([]string(nil), defaultModels...)
}
