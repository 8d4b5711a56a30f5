// Package config provides configuration management for the index engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "cnvix/internal/errors"
	"cnvix/internal/index"
	"cnvix/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. CNVIX_ENGINE_RISK_FREE_RATE.
const EnvPrefix = "CNVIX"

// Config holds all application configuration.
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Input  InputConfig  `mapstructure:"input"`
	Output OutputConfig `mapstructure:"output"`
	Log    LogConfig    `mapstructure:"log"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
	// File is the config file actually read, empty when defaults were used.
	File string `mapstructure:"-"`
}

// EngineConfig holds the index methodology constants.
type EngineConfig struct {
	RiskFreeRate       float64 `mapstructure:"risk_free_rate"`
	TradingDaysPerYear float64 `mapstructure:"trading_days_per_year"`
	TargetTradingDays  int     `mapstructure:"target_trading_days"`
	Workers            int     `mapstructure:"workers"` // 0 = one per CPU
}

// InputConfig locates the option quote file.
type InputConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig locates the produced series and the run database.
type OutputConfig struct {
	IndexPath    string `mapstructure:"index_path"`
	AlignedPath  string `mapstructure:"aligned_path"`
	DatabasePath string `mapstructure:"database_path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cnvix"
	}
	return filepath.Join(home, ".config", "cnvix")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by a commented template and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	loadDotEnv(configDir)

	v := newViper(configDir)
	cfg := &Config{Dir: configDir}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	} else {
		cfg.File = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	cfg := &Config{Dir: DefaultConfigDir()}
	// Defaults always decode.
	_ = newViper(cfg.Dir).Unmarshal(cfg)
	return cfg
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, configDir string) {
	params := index.DefaultParams()
	v.SetDefault("engine.risk_free_rate", params.RiskFreeRate)
	v.SetDefault("engine.trading_days_per_year", params.TradingDaysPerYear)
	v.SetDefault("engine.target_trading_days", params.TargetTradingDays)
	v.SetDefault("engine.workers", 0)

	v.SetDefault("input.path", "")

	v.SetDefault("output.index_path", "CNVIX_daily.csv")
	v.SetDefault("output.aligned_path", "CNVIX_vs_realized.csv")
	v.SetDefault("output.database_path", "")

	logDefaults := logging.DefaultLogConfig()
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.console", logDefaults.Console)
	v.SetDefault("log.file", logDefaults.File)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "cnvix.log"))
	v.SetDefault("log.max_size", logDefaults.MaxSize)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age", logDefaults.MaxAge)
}

// loadDotEnv reads .env files into the process environment. Variables
// already set win over the file.
func loadDotEnv(configDir string) {
	for _, path := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.EngineParams().Validate(); err != nil {
		return err
	}
	if c.Engine.Workers < 0 {
		return apperrors.NewValidationError("engine.workers", c.Engine.Workers, "must not be negative")
	}
	if !logging.ValidLevel(c.Log.Level) {
		return apperrors.NewValidationError("log.level", c.Log.Level, "unknown level")
	}
	if c.Log.File && c.Log.FilePath == "" {
		return apperrors.NewValidationError("log.file_path", c.Log.FilePath, "required when file logging is on")
	}
	return nil
}

// EngineParams returns the methodology constants for the index engine.
func (c *Config) EngineParams() index.Params {
	return index.Params{
		RiskFreeRate:       c.Engine.RiskFreeRate,
		TradingDaysPerYear: c.Engine.TradingDaysPerYear,
		TargetTradingDays:  c.Engine.TargetTradingDays,
	}
}

// Workers resolves the worker count, defaulting to the CPU count.
func (c *Config) Workers() int {
	if c.Engine.Workers > 0 {
		return c.Engine.Workers
	}
	return runtime.NumCPU()
}

// LogConfig converts the log section for the logging package.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Log.Level,
		Console:    c.Log.Console,
		File:       c.Log.File,
		FilePath:   c.Log.FilePath,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
	}
}
