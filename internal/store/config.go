package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"position-analyzer/internal/types"
)

const (
	ProviderOpenRouter = "OPENROUTER"
	ProviderOpenAI     = "OPENAI"
)

type Config struct {
	OutputDir string `yaml:"output_dir"`
	Question  string `yaml:"question"`
	Supabase  struct {
		Schema             string `yaml:"schema"`
		PositionsTable     string `yaml:"positions_table"`
		MarketPriceTable   string `yaml:"market_price_table"`
		ConversationsTable string `yaml:"conversations_table"`
		AssetClass         string `yaml:"asset_class"`
	} `yaml:"supabase"`
	LLM struct {
		Provider       string  `yaml:"provider"`
		Endpoint       string  `yaml:"endpoint"`
		Model          string  `yaml:"model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float32 `yaml:"temperature"`
		TopP           float32 `yaml:"top_p"`
		TopK           int     `yaml:"top_k"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		Referer        string  `yaml:"referer"`
		Title          string  `yaml:"title"`
	} `yaml:"llm"`
	PageURLBase string `yaml:"page_url_base"`

	// Secrets never come from the YAML file.
	Secrets Secrets `yaml:"-"`
}

// Secrets are the credentials read from the environment.
type Secrets struct {
	LLMAPIKey          string
	SupabaseURL        string
	SupabaseServiceKey string
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	c := &Config{}
	// Zero is a valid sampling value, so these are only set before the
	// file is read, never filled in afterwards.
	c.LLM.Temperature = 0.7
	c.LLM.TopP = 1.0
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "../output"
	}
	if c.Question == "" {
		c.Question = "Analyze this position data and provide comprehensive recommendations."
	}
	if c.Supabase.Schema == "" {
		c.Supabase.Schema = "hf"
	}
	if c.Supabase.PositionsTable == "" {
		c.Supabase.PositionsTable = "positions"
	}
	if c.Supabase.MarketPriceTable == "" {
		c.Supabase.MarketPriceTable = "market_price"
	}
	if c.Supabase.ConversationsTable == "" {
		c.Supabase.ConversationsTable = "ai_recommendations_conversations"
	}
	if c.Supabase.AssetClass == "" {
		c.Supabase.AssetClass = "STK"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenRouter
	}
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = "https://openrouter.ai/api/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "anthropic/claude-sonnet-4.5"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 120
	}
	if c.LLM.Referer == "" {
		c.LLM.Referer = "https://www.y2k.fund"
	}
	if c.LLM.Title == "" {
		c.LLM.Title = "Y2K Fund - Automated Daily Analysis"
	}
	if c.PageURLBase == "" {
		c.PageURLBase = "https://www.y2k.fund/instrument-details"
	}
}

// LLMTimeout is the fixed upper bound applied to each inference call.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func (c *Config) Validate() error {
	c.LLM.Provider = strings.ToUpper(c.LLM.Provider)
	if c.LLM.Provider != ProviderOpenRouter && c.LLM.Provider != ProviderOpenAI {
		return fmt.Errorf("invalid llm.provider '%s': must be 'OPENROUTER' or 'OPENAI'", c.LLM.Provider)
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0-2, got %.2f", c.LLM.Temperature)
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		return fmt.Errorf("llm.top_p must be between 0-1, got %.2f", c.LLM.TopP)
	}
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm.timeout_seconds cannot be negative")
	}
	return nil
}

// LoadConfig reads the YAML file at path. A missing file is not an error:
// the defaults are used instead.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if env := os.Getenv("SUPABASE_SCHEMA"); env != "" {
		c.Supabase.Schema = env
	}
	if env := os.Getenv("LLM_PROVIDER"); env != "" {
		c.LLM.Provider = env
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

// LoadSecrets reads the three required credentials. The first missing one
// is reported as a configuration error.
func LoadSecrets() (Secrets, error) {
	key := os.Getenv("OPENROUTER_API_KEY")
	if key == "" {
		return Secrets{}, types.ConfigurationError("OPENROUTER_API_KEY is required")
	}
	s, err := LoadStoreSecrets()
	s.LLMAPIKey = key
	return s, err
}

// LoadStoreSecrets reads only the position store credentials, for commands
// that never call the inference service.
func LoadStoreSecrets() (Secrets, error) {
	s := Secrets{
		SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
	}
	switch {
	case s.SupabaseURL == "":
		return s, types.ConfigurationError("SUPABASE_URL is required")
	case s.SupabaseServiceKey == "":
		return s, types.ConfigurationError("SUPABASE_SERVICE_KEY is required")
	}
	return s, nil
}

// RequiredEnv lists the variables LoadSecrets needs, for help output.
func RequiredEnv() []string {
	return []string{"OPENROUTER_API_KEY", "SUPABASE_URL", "SUPABASE_SERVICE_KEY"}
}
