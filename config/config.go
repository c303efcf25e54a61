// Package config loads earnings-agent settings from earnings.yaml, EARNINGS_*
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "EARNINGS"
	configName = "earnings"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Model        string            `mapstructure:"model"`
	OllamaHost   string            `mapstructure:"ollama_host"`
	Endpoint     string            `mapstructure:"endpoint"` // Defaults to <ollama_host>/api/chat
	Proxies      map[string]string `mapstructure:"proxies"`  // scheme -> proxy URL
	Timeout      time.Duration     `mapstructure:"timeout"`
	MaxRetries   int               `mapstructure:"max_retries"`
	MaxIter      int               `mapstructure:"max_iter"`
	DataFile     string            `mapstructure:"data_file"`
	DocsDir      string            `mapstructure:"docs_dir"`
	LogLevel     string            `mapstructure:"log_level"`
	ExtractModel string            `mapstructure:"extract_model"`
	EmbedModel   string            `mapstructure:"embed_model"`
	SEC          SECConfig         `mapstructure:"sec"`
}

// SECConfig stores EDGAR download settings
type SECConfig struct {
	UserAgent  string   `mapstructure:"user_agent"`
	Tickers    []string `mapstructure:"tickers"`
	Years      int      `mapstructure:"years"`
	MaxRetries int      `mapstructure:"max_retries"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("model", "llama3.2")
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("endpoint", "")
	v.SetDefault("proxies", map[string]string{})
	v.SetDefault("timeout", "120s")
	v.SetDefault("max_retries", 0)
	v.SetDefault("max_iter", 5)
	v.SetDefault("data_file", "bank_financials.csv")
	v.SetDefault("docs_dir", ".")
	v.SetDefault("log_level", "info")
	v.SetDefault("extract_model", "")
	v.SetDefault("embed_model", "nomic-embed-text")

	v.SetDefault("sec.user_agent", "")
	v.SetDefault("sec.tickers", []string{})
	v.SetDefault("sec.years", 10)
	v.SetDefault("sec.max_retries", 3)
}

// New returns a viper instance with defaults, env binding and search paths set
func New(configPath string) *viper.Viper {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/earnings-agent")
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// Replace dots with underscores in env var names e.g. sec.user_agent becomes EARNINGS_SEC_USER_AGENT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present), the config file (if present) and the
// environment into a Config
func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()
	return Read(New(configPath))
}

// Read decodes an already configured viper instance
func Read(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	if c.Endpoint == "" {
		c.Endpoint = strings.TrimRight(c.OllamaHost, "/") + "/api/chat"
	}
	if c.ExtractModel == "" {
		c.ExtractModel = c.Model
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 || c.SEC.MaxRetries < 0 {
		return errors.New("max_retries must not be negative")
	}
	if c.MaxIter <= 0 {
		return fmt.Errorf("max_iter must be positive, got %d", c.MaxIter)
	}
	if c.SEC.Years <= 0 {
		return fmt.Errorf("sec.years must be positive, got %d", c.SEC.Years)
	}
	return nil
}
