// Package config loads runtime settings from the environment.
//
// Variables use the IFAI_ prefix. An optional .env file in the working
// directory is read first; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/hupe1980/ifai/logging"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name.
const Prefix = "IFAI"

// Provider backends selectable with IFAI_PROVIDER.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Config holds every setting the front-ends read.
type Config struct {
	Provider       string `envconfig:"PROVIDER" default:"ollama"`
	OllamaEndpoint string `envconfig:"OLLAMA_ENDPOINT" default:"http://localhost:11434"`
	// Model is the backend's model id; empty selects the backend default.
	Model           string        `envconfig:"MODEL"`
	OpenAIBaseURL   string        `envconfig:"OPENAI_BASE_URL"`
	OpenAIAPIKey    string        `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey string        `envconfig:"ANTHROPIC_API_KEY"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"120s"`
	SystemMessage   string        `envconfig:"SYSTEM_MESSAGE"`
	// MaxPrompts caps narrator calls per session; zero means unlimited.
	MaxPrompts int `envconfig:"MAX_PROMPTS"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	// LogFile receives log output; empty means stderr for headless tools
	// and no logging for the terminal UI.
	LogFile string `envconfig:"LOG_FILE"`
	// MetricsAddr enables a Prometheus /metrics listener, e.g. ":9090".
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// Load reads .env if present and then the environment.
func Load() (*Config, error) { return LoadFile(".env") }

// LoadFile reads envFile if it exists and then the environment. An empty
// envFile skips the file.
func LoadFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: negative timeout %s", c.Timeout)
	}
	if c.MaxPrompts < 0 {
		return fmt.Errorf("config: negative max prompts %d", c.MaxPrompts)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logging.LogLevel {
	l, _ := logging.ParseLevel(c.LogLevel)
	return l
}

// Usage prints the recognised variables with their defaults.
func Usage() error {
	var cfg Config
	return envconfig.Usage(Prefix, &cfg)
}
