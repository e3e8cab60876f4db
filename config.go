package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultServerURL   = "https://atlink.asia/workpingapi"
	defaultTokenFile   = ".workping-session.json"
	defaultStore       = storeFile
	defaultRedisPrefix = "workping"
	defaultLogLevel    = "warn"
)

// Session storage kinds.
const (
	storeFile   = "file"
	storeRedis  = "redis"
	storeMemory = "memory"
)

// Config is the resolved CLI configuration.
type Config struct {
	ServerURL   string `yaml:"server_url"`
	TokenFile   string `yaml:"token_file"`
	Store       string `yaml:"store"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// globalFlags are the flags accepted before the command name.
type globalFlags struct {
	configFile  *string
	serverURL   *string
	tokenFile   *string
	store       *string
	redisURL    *string
	redisPrefix *string
	logLevel    *string
	metricsAddr *string
}

func newGlobalFlags(fs *flag.FlagSet) *globalFlags {
	return &globalFlags{
		configFile: fs.String("config", "", "YAML config file (or CONFIG_FILE env)"),
		serverURL: fs.String(
			"server-url",
			"",
			"API server URL (default: "+defaultServerURL+" or SERVER_URL env)",
		),
		tokenFile: fs.String(
			"token-file",
			"",
			"Session file for the file store (default: "+defaultTokenFile+" or TOKEN_FILE env)",
		),
		store:       fs.String("store", "", "Session store: file, redis or memory (or STORE env)"),
		redisURL:    fs.String("redis-url", "", "Redis URL for the redis store (or REDIS_URL env)"),
		redisPrefix: fs.String("redis-prefix", "", "Redis key prefix (or REDIS_PREFIX env)"),
		logLevel:    fs.String("log-level", "", "debug, info, warn or error (or LOG_LEVEL env)"),
		metricsAddr: fs.String("metrics-addr", "", "Serve Prometheus metrics here during watch (or METRICS_ADDR env)"),
	}
}

// loadConfig resolves every setting with priority: flag > env > config file > default.
func loadConfig(gf *globalFlags) (*Config, error) {
	file := &Config{}
	if path := getConfig(*gf.configFile, "CONFIG_FILE", ""); path != "" {
		var err error
		if file, err = loadConfigFile(path); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		ServerURL:   getConfig(*gf.serverURL, "SERVER_URL", or(file.ServerURL, defaultServerURL)),
		TokenFile:   getConfig(*gf.tokenFile, "TOKEN_FILE", or(file.TokenFile, defaultTokenFile)),
		Store:       getConfig(*gf.store, "STORE", or(file.Store, defaultStore)),
		RedisURL:    getConfig(*gf.redisURL, "REDIS_URL", file.RedisURL),
		RedisPrefix: getConfig(*gf.redisPrefix, "REDIS_PREFIX", or(file.RedisPrefix, defaultRedisPrefix)),
		LogLevel:    getConfig(*gf.logLevel, "LOG_LEVEL", or(file.LogLevel, defaultLogLevel)),
		MetricsAddr: getConfig(*gf.metricsAddr, "METRICS_ADDR", file.MetricsAddr),
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validateServerURL(c.ServerURL); err != nil {
		return fmt.Errorf("invalid SERVER_URL: %w", err)
	}

	switch c.Store {
	case storeFile, storeMemory:
	case storeRedis:
		if c.RedisURL == "" {
			return errors.New("redis store needs REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown store %q (want file, redis or memory)", c.Store)
	}

	if _, err := c.slogLevel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) slogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}
