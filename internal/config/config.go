package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read once in cmd and passed down explicitly.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StateTable  string `env:"STATE_TABLE,required"`
	ParamPrefix string `env:"PARAM_PREFIX,required"`

	AIProvider    string        `env:"AI_PROVIDER" envDefault:"openai"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	GeminiModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GeminiBaseURL string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	ReplyLanguage string        `env:"REPLY_LANGUAGE" envDefault:"English"`
	LLMTimeout    time.Duration `env:"LLM_TIMEOUT" envDefault:"15s"`
	LLMMaxTokens  int           `env:"LLM_MAX_TOKENS" envDefault:"400"`

	HistoryLimit    int `env:"LLM_HISTORY_LIMIT" envDefault:"5"`
	ContextWindow   int `env:"CONTEXT_WINDOW" envDefault:"10"`
	MaxPromptLength int `env:"MAX_PROMPT_LENGTH" envDefault:"500"`

	BreakerFailures int           `env:"LLM_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"LLM_BREAKER_COOLDOWN" envDefault:"30s"`

	ReserveInventoryOnCheckout bool `env:"CHECKOUT_RESERVE_INVENTORY" envDefault:"true"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CatalogTTL    time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"1m"`
}

// Load parses the environment into a validated Config.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes and checks the values env tags cannot express.
func (c *Config) Validate() error {
	c.AIProvider = strings.ToLower(strings.TrimSpace(c.AIProvider))
	switch c.AIProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: unsupported AI_PROVIDER %q", c.AIProvider)
	}
	c.ParamPrefix = strings.TrimRight(strings.TrimSpace(c.ParamPrefix), "/")
	if c.ParamPrefix == "" {
		return errors.New("config: PARAM_PREFIX must not be empty")
	}
	if c.LLMTimeout <= 0 {
		return errors.New("config: LLM_TIMEOUT must be positive")
	}
	if c.HistoryLimit <= 0 || c.ContextWindow <= 0 || c.MaxPromptLength <= 0 {
		return errors.New("config: history, window and prompt limits must be positive")
	}
	return nil
}

// SeedConfig drives the catalog seed command.
type SeedConfig struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"console"`
	StateTable string `env:"STATE_TABLE,required"`
	SeedFile   string `env:"SEED_FILE" envDefault:"catalog.yaml"`
}

// LoadSeed parses the environment of the seed command.
func LoadSeed() (*SeedConfig, error) {
	cfg, err := env.ParseAs[SeedConfig]()
	if err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.SeedFile = strings.TrimSpace(cfg.SeedFile)
	if cfg.SeedFile == "" {
		return nil, errors.New("config: SEED_FILE must not be empty")
	}
	return &cfg, nil
}
