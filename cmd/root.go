package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/KaramelBytes/csvinsights/internal/ai"
	cfgpkg "github.com/KaramelBytes/csvinsights/internal/config"
	"github.com/KaramelBytes/csvinsights/internal/insights"
	"github.com/KaramelBytes/csvinsights/internal/logger"
	"github.com/KaramelBytes/csvinsights/internal/store"
)

var (
	cfgFile string
	debug   bool
	// Flag overrides; they win over env and config file when set.
	flagHTTPTimeoutSec int
	flagDatabaseURL    string
	flagProvider       string
	flagModel          string

	// Loaded configuration
	cfg *cfgpkg.Global
	// cfgErr is the error of the last load, reported by commands that need config.
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "csvinsights",
	Short: "CSV Insights: profile CSV files and get LLM-generated insights",
	Long: `csvinsights profiles CSV files (column types, missing values, numeric and
categorical statistics), asks an LLM (Gemini or a local Ollama) for trends,
outliers, data quality issues and recommendations, and keeps the resulting
reports in a database. Run "serve" for the HTTP API.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.csvinsights/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "LLM HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", "", "database URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "LLM provider: gemini|ollama (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "LLM model name (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	cfgErr = err
	if err != nil {
		// Non-fatal: commands that do not need config still run
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("database-url") && flagDatabaseURL != "" {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if f.Changed("provider") && flagProvider != "" {
		cfg.LLMProvider = flagProvider
	}
	if f.Changed("model") && flagModel != "" {
		cfg.LLMModel = flagModel
	}
	if debug {
		cfg.LogMode = "development"
	}
}

func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("config not loaded: %w", cfgErr)
		}
		return nil, fmt.Errorf("config not loaded")
	}
	return cfg, nil
}

// newLogger builds the process logger. CLI commands other than serve stay
// quiet unless --debug is set.
func newLogger(c *cfgpkg.Global, quiet bool) (*logger.Logger, error) {
	mode := c.LogMode
	if quiet && !debug {
		mode = "test"
	}
	return logger.New(mode)
}

// openStore opens and migrates the configured database.
func openStore(c *cfgpkg.Global, log *logger.Logger) (*gorm.DB, error) {
	if err := c.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := store.Open(c.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := store.AutoMigrate(db); err != nil {
		closeStore(db)
		return nil, err
	}
	return db, nil
}

func closeStore(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newRequester(c *cfgpkg.Global, log *logger.Logger) *insights.Requester {
	return insights.New(insights.Config{
		Provider:    c.LLMProvider,
		Model:       c.LLMModel,
		APIKey:      c.GoogleAPIKey,
		OllamaHost:  c.OllamaHost,
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
	}, log)
}

// providerNeedsKey reports a missing API key early for CLI commands, where
// failing fast is friendlier than a failed request.
func providerNeedsKey(c *cfgpkg.Global) error {
	if ai.NeedsAPIKey(c.LLMProvider) && c.GoogleAPIKey == "" {
		return fmt.Errorf("%w: set GOOGLE_API_KEY or `csvinsights config set google_api_key <key>`", ai.ErrNotConfigured)
	}
	return nil
}
