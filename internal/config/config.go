// Package config loads service settings from an optional .env file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned when no API_KEY is configured.
var ErrMissingAPIKey = errors.New("API_KEY is not set")

type Config struct {
	APIKey     string `mapstructure:"API_KEY"`
	ServerAddr string `mapstructure:"SERVER_ADDR"`
	// HTTPGzipMinSize is the smallest response body, in bytes, sent gzipped.
	HTTPGzipMinSize int `mapstructure:"HTTP_GZIP_MIN_SIZE"`

	StockfishPath        string        `mapstructure:"STOCKFISH_PATH"`
	EngineThreads        int           `mapstructure:"ENGINE_THREADS"`
	EngineHashMB         int           `mapstructure:"ENGINE_HASH_MB"`
	EngineSkillLevel     int           `mapstructure:"ENGINE_SKILL_LEVEL"`
	EngineMoveOverhead   int           `mapstructure:"ENGINE_MOVE_OVERHEAD"`
	EngineMaxNodes       int           `mapstructure:"ENGINE_MAX_NODES"`
	EngineStartupTimeout time.Duration `mapstructure:"ENGINE_STARTUP_TIMEOUT"`
	EngineQuitTimeout    time.Duration `mapstructure:"ENGINE_QUIT_TIMEOUT"`
	EngineHangGrace      time.Duration `mapstructure:"ENGINE_HANG_GRACE"`
	EngineEager          bool          `mapstructure:"ENGINE_EAGER"`

	// Search bounds; times are in seconds as clients send them.
	DefaultDepth int     `mapstructure:"DEFAULT_DEPTH"`
	MaxDepth     int     `mapstructure:"MAX_DEPTH"`
	DefaultTime  float64 `mapstructure:"DEFAULT_TIME"`
	MinTime      float64 `mapstructure:"MIN_TIME"`
	MaxTime      float64 `mapstructure:"MAX_TIME"`

	HealthPingTimeout time.Duration `mapstructure:"HEALTH_PING_TIMEOUT"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// DefaultStockfishPath returns the usual install location for goos.
func DefaultStockfishPath(goos string) string {
	if goos == "darwin" {
		return "/opt/homebrew/bin/stockfish"
	}
	return "/usr/games/stockfish"
}

func defaults() map[string]any {
	return map[string]any{
		"API_KEY":                "",
		"SERVER_ADDR":            ":8000",
		"HTTP_GZIP_MIN_SIZE":     128,
		"STOCKFISH_PATH":         DefaultStockfishPath(runtime.GOOS),
		"ENGINE_THREADS":         1,
		"ENGINE_HASH_MB":         1,
		"ENGINE_SKILL_LEVEL":     0,
		"ENGINE_MOVE_OVERHEAD":   0,
		"ENGINE_MAX_NODES":       100,
		"ENGINE_STARTUP_TIMEOUT": 10 * time.Second,
		"ENGINE_QUIT_TIMEOUT":    2 * time.Second,
		"ENGINE_HANG_GRACE":      10 * time.Second,
		"ENGINE_EAGER":           true,
		"DEFAULT_DEPTH":          10,
		"MAX_DEPTH":              30,
		"DEFAULT_TIME":           0.01,
		"MIN_TIME":               0.01,
		"MAX_TIME":               2.0,
		"HEALTH_PING_TIMEOUT":    10 * time.Millisecond,
		"LOG_LEVEL":              "info",
		"LOG_FORMAT":             "console",
	}
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"addr":       "SERVER_ADDR",
	"stockfish":  "STOCKFISH_PATH",
	"threads":    "ENGINE_THREADS",
	"hash":       "ENGINE_HASH_MB",
	"skill":      "ENGINE_SKILL_LEVEL",
	"max-nodes":  "ENGINE_MAX_NODES",
	"eager":      "ENGINE_EAGER",
	"log-level":  "LOG_LEVEL",
	"log-format": "LOG_FORMAT",
}

// NewFlagSet declares the service flags. Their defaults are informational;
// only flags set explicitly override the environment.
func NewFlagSet(name string) *pflag.FlagSet {
	d := defaults()
	set := pflag.NewFlagSet(name, pflag.ContinueOnError)
	set.String("env-file", ".env", "optional dotenv file with KEY=value settings")
	set.String("addr", d["SERVER_ADDR"].(string), "listen address")
	set.String("stockfish", d["STOCKFISH_PATH"].(string), "path to the UCI engine executable")
	set.Int("threads", d["ENGINE_THREADS"].(int), "engine Threads option")
	set.Int("hash", d["ENGINE_HASH_MB"].(int), "engine Hash option (MB)")
	set.Int("skill", d["ENGINE_SKILL_LEVEL"].(int), "engine Skill Level option")
	set.Int("max-nodes", d["ENGINE_MAX_NODES"].(int), "node limit per search")
	set.Bool("eager", d["ENGINE_EAGER"].(bool), "start the engine before serving")
	set.String("log-level", d["LOG_LEVEL"].(string), "log level (debug, info, warn, error)")
	set.String("log-format", d["LOG_FORMAT"].(string), "log format (console, json)")
	return set
}

// Load parses args with flagSet (from NewFlagSet) and resolves the configuration.
func Load(flagSet *pflag.FlagSet, args []string) (*Config, error) {
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	envFile, _ := flagSet.GetString("env-file")
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := flagSet.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and bound ordering.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.StockfishPath == "" {
		return errors.New("STOCKFISH_PATH is empty")
	}
	if c.MinTime <= 0 || c.MaxTime < c.MinTime {
		return fmt.Errorf("invalid time bounds: MIN_TIME=%g MAX_TIME=%g", c.MinTime, c.MaxTime)
	}
	if c.MaxDepth < 1 || c.DefaultDepth < 1 {
		return fmt.Errorf("invalid depth bounds: DEFAULT_DEPTH=%d MAX_DEPTH=%d", c.DefaultDepth, c.MaxDepth)
	}
	if c.EngineMaxNodes < 1 {
		return fmt.Errorf("ENGINE_MAX_NODES must be positive, got %d", c.EngineMaxNodes)
	}
	if c.HTTPGzipMinSize < 0 {
		return fmt.Errorf("HTTP_GZIP_MIN_SIZE must not be negative, got %d", c.HTTPGzipMinSize)
	}
	if c.HealthPingTimeout <= 0 {
		return fmt.Errorf("HEALTH_PING_TIMEOUT must be positive, got %s", c.HealthPingTimeout)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}
