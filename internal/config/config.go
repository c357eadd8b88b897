// Package config loads the pagesum daemon and CLI settings from a YAML file,
// PAGESUM_ environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roasbeef/pagesum/internal/build"
	"github.com/roasbeef/pagesum/internal/engine"
	"github.com/roasbeef/pagesum/internal/history"
	"github.com/roasbeef/pagesum/internal/lifecycle"
	"github.com/roasbeef/pagesum/internal/store"
	"github.com/roasbeef/pagesum/internal/transport"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PAGESUM"

	// DefaultConfigName is the config file name without extension.
	DefaultConfigName = "pagesum"

	// DefaultModel is the model requested when none is configured.
	DefaultModel = "qwen2.5-0.5b-instruct"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Config is the complete pagesum configuration.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Engine     EngineConfig     `mapstructure:"engine"`
	History    HistoryConfig    `mapstructure:"history"`
	Controller ControllerConfig `mapstructure:"controller"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Log        LogConfig        `mapstructure:"log"`
}

// StoreConfig selects and configures the durable store.
type StoreConfig struct {
	// Backend is one of sqlite, nats or memory.
	Backend string `mapstructure:"backend"`

	// DBPath is the SQLite database file.
	DBPath string `mapstructure:"db_path"`

	NATSURL    string `mapstructure:"nats_url"`
	NATSBucket string `mapstructure:"nats_bucket"`
}

// EngineConfig configures the generation backend.
type EngineConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	SkipProbe      bool          `mapstructure:"skip_probe"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	SystemPrompt   string        `mapstructure:"system_prompt"`
}

// HistoryConfig holds the history and cache limits.
type HistoryConfig struct {
	MaxItems        int           `mapstructure:"max_items"`
	MaxCacheSize    int           `mapstructure:"max_cache_size"`
	CleanupMaxAge   time.Duration `mapstructure:"cleanup_max_age"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ControllerConfig tunes the request lifecycle.
type ControllerConfig struct {
	UseCache       bool          `mapstructure:"use_cache"`
	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`
	HistoryLimit   int           `mapstructure:"history_limit"`
}

// GatewayConfig configures the websocket gateway.
type GatewayConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// LogConfig configures the daemon logs.
type LogConfig struct {
	Dir           string `mapstructure:"dir"`
	Level         string `mapstructure:"level"`
	MaxFiles      int    `mapstructure:"max_files"`
	MaxFileSizeMB int    `mapstructure:"max_file_size_mb"`
}

// Dir returns the pagesum state directory, ~/.pagesum.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pagesum"
	}

	return filepath.Join(home, ".pagesum")
}

// Default returns the built in configuration.
func Default() *Config {
	dir := Dir()

	return &Config{
		Store: StoreConfig{
			Backend:    BackendSQLite,
			DBPath:     filepath.Join(dir, "pagesum.db"),
			NATSURL:    "nats://127.0.0.1:4222",
			NATSBucket: store.DefaultNATSBucket,
		},
		Engine: EngineConfig{
			BaseURL:     "http://127.0.0.1:8080/v1/",
			Model:       DefaultModel,
			Temperature: engine.DefaultTemperature,
			MaxTokens:   engine.DefaultMaxTokens,
			MaxRetries:  2,
		},
		History: HistoryConfig{
			MaxItems:        history.DefaultMaxHistoryItems,
			MaxCacheSize:    history.DefaultMaxCacheSize,
			CleanupMaxAge:   history.DefaultCleanupMaxAge,
			CleanupInterval: history.DefaultCleanupInterval,
		},
		Controller: ControllerConfig{
			UseCache:       true,
			ExtractTimeout: transport.DefaultExtractTimeout,
			HistoryLimit:   history.UIHistoryLimit,
		},
		Gateway: GatewayConfig{
			ListenAddr:  transport.DefaultListenAddr,
			CallTimeout: transport.DefaultCallTimeout,
		},
		Log: LogConfig{
			Dir:           filepath.Join(dir, "logs"),
			Level:         "info",
			MaxFiles:      build.DefaultMaxLogFiles,
			MaxFileSizeMB: build.DefaultMaxLogFileSize,
		},
	}
}

// SetDefaults registers every default value with v so that environment
// variables can override keys that are absent from the file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.db_path", d.Store.DBPath)
	v.SetDefault("store.nats_url", d.Store.NATSURL)
	v.SetDefault("store.nats_bucket", d.Store.NATSBucket)

	v.SetDefault("engine.base_url", d.Engine.BaseURL)
	v.SetDefault("engine.api_key", d.Engine.APIKey)
	v.SetDefault("engine.model", d.Engine.Model)
	v.SetDefault("engine.skip_probe", d.Engine.SkipProbe)
	v.SetDefault("engine.temperature", d.Engine.Temperature)
	v.SetDefault("engine.max_tokens", d.Engine.MaxTokens)
	v.SetDefault("engine.max_retries", d.Engine.MaxRetries)
	v.SetDefault("engine.request_timeout", d.Engine.RequestTimeout)
	v.SetDefault("engine.system_prompt", d.Engine.SystemPrompt)

	v.SetDefault("history.max_items", d.History.MaxItems)
	v.SetDefault("history.max_cache_size", d.History.MaxCacheSize)
	v.SetDefault("history.cleanup_max_age", d.History.CleanupMaxAge)
	v.SetDefault("history.cleanup_interval", d.History.CleanupInterval)

	v.SetDefault("controller.use_cache", d.Controller.UseCache)
	v.SetDefault("controller.extract_timeout", d.Controller.ExtractTimeout)
	v.SetDefault("controller.history_limit", d.Controller.HistoryLimit)

	v.SetDefault("gateway.listen_addr", d.Gateway.ListenAddr)
	v.SetDefault("gateway.call_timeout", d.Gateway.CallTimeout)
	v.SetDefault("gateway.allowed_origins", d.Gateway.AllowedOrigins)

	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.max_files", d.Log.MaxFiles)
	v.SetDefault("log.max_file_size_mb", d.Log.MaxFileSizeMB)
}

// Load reads the configuration into a Config. An empty configFile searches
// ~/.pagesum and the working directory; a missing file is not an error
// unless it was named explicitly.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values that have no safe fallback.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.DBPath == "" {
			errs = append(errs, errors.New("store.db_path is required"))
		}
	case BackendNATS, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of "+
			"sqlite, nats, memory", c.Store.Backend))
	}

	if c.Engine.Model == "" {
		errs = append(errs, errors.New("engine.model is required"))
	}
	if c.Engine.Temperature < 0 || c.Engine.Temperature > 2 {
		errs = append(errs, fmt.Errorf("engine.temperature %v is out "+
			"of range [0, 2]", c.Engine.Temperature))
	}
	if c.History.MaxItems <= 0 || c.History.MaxCacheSize <= 0 {
		errs = append(errs, errors.New("history limits must be positive"))
	}
	if c.Gateway.ListenAddr == "" {
		errs = append(errs, errors.New("gateway.listen_addr is required"))
	}

	return errors.Join(errs...)
}

// HistoryManagerConfig converts the history section.
func (c *Config) HistoryManagerConfig() history.Config {
	return history.Config{
		MaxHistoryItems: c.History.MaxItems,
		MaxCacheSize:    c.History.MaxCacheSize,
		CleanupMaxAge:   c.History.CleanupMaxAge,
		CleanupInterval: c.History.CleanupInterval,
	}
}

// EngineManagerConfig converts the generation settings.
func (c *Config) EngineManagerConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if c.Engine.SystemPrompt != "" {
		cfg.SystemPrompt = c.Engine.SystemPrompt
	}
	cfg.Temperature = c.Engine.Temperature
	cfg.MaxTokens = c.Engine.MaxTokens

	return cfg
}

// OpenAIConfig converts the backend settings.
func (c *Config) OpenAIConfig() engine.OpenAIConfig {
	return engine.OpenAIConfig{
		BaseURL:        c.Engine.BaseURL,
		APIKey:         c.Engine.APIKey,
		Model:          c.Engine.Model,
		SkipProbe:      c.Engine.SkipProbe,
		MaxRetries:     c.Engine.MaxRetries,
		RequestTimeout: c.Engine.RequestTimeout,
	}
}

// ControllerConfig converts the controller section.
func (c *Config) ControllerConfig() lifecycle.Config {
	return lifecycle.Config{
		UseCache:       c.Controller.UseCache,
		ExtractTimeout: c.Controller.ExtractTimeout,
		HistoryLimit:   c.Controller.HistoryLimit,
	}
}

// GatewayConfig converts the gateway section.
func (c *Config) GatewayConfig() transport.GatewayConfig {
	return transport.GatewayConfig{
		ListenAddr:     c.Gateway.ListenAddr,
		CallTimeout:    c.Gateway.CallTimeout,
		AllowedOrigins: c.Gateway.AllowedOrigins,
	}
}

// LogConfig converts the log section.
func (c *Config) LogConfig() build.LogConfig {
	return build.LogConfig{
		Dir:           c.Log.Dir,
		Level:         c.Log.Level,
		MaxFiles:      c.Log.MaxFiles,
		MaxFileSizeMB: c.Log.MaxFileSizeMB,
	}
}
