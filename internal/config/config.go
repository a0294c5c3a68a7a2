package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrMissingDatabaseURL is returned by RequireDatabase when no DSN is configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")

// Global configuration structure.
type Global struct {
	DatabaseURL  string `mapstructure:"database_url" yaml:"database_url"`
	CORSOrigins  string `mapstructure:"cors_origins" yaml:"cors_origins"`
	GoogleAPIKey string `mapstructure:"google_api_key" yaml:"google_api_key"`

	// LLM runtime selection
	LLMProvider    string `mapstructure:"llm_provider" yaml:"llm_provider"`
	LLMModel       string `mapstructure:"llm_model" yaml:"llm_model"`
	OllamaHost     string `mapstructure:"ollama_host" yaml:"ollama_host"`
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`

	// Server
	HTTPAddr    string `mapstructure:"http_addr" yaml:"http_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	LogMode     string `mapstructure:"log_mode" yaml:"log_mode"`
}

// envKeys maps config keys to the unprefixed environment variables the
// service has always read.
var envKeys = map[string]string{
	"database_url":     "DATABASE_URL",
	"cors_origins":     "CORS_ORIGINS",
	"google_api_key":   "GOOGLE_API_KEY",
	"llm_provider":     "LLM_PROVIDER",
	"llm_model":        "LLM_MODEL",
	"ollama_host":      "OLLAMA_HOST",
	"http_timeout_sec": "HTTP_TIMEOUT_SEC",
	"http_addr":        "HTTP_ADDR",
	"max_upload_mb":    "MAX_UPLOAD_MB",
	"log_mode":         "LOG_MODE",
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.csvinsights/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("llm_provider", "gemini")
	v.SetDefault("llm_model", "gemini-2.5-flash")
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("http_timeout_sec", 0)
	v.SetDefault("http_addr", ":8000")
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("log_mode", "development")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		// a named file that does not exist yet is created by Save
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if dir, err := defaultDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.GoogleAPIKey = strings.TrimSpace(c.GoogleAPIKey)
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 32
	}
	return &c, nil
}

// RequireDatabase reports ErrMissingDatabaseURL when no DSN is set.
func (c *Global) RequireDatabase() error {
	if c == nil || c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

// Origins splits the comma-separated CORS allow-list, dropping blanks.
func (c *Global) Origins() []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Global) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".csvinsights"), nil
}
