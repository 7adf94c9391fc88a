// Package config provides Viper-based configuration loading for the runner bot.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kbirk/runnerbot/internal/model"
)

// RunnerConfig holds the runner hub address.
type RunnerConfig struct {
	// Host is the runner address. An http:// or https:// prefix is stripped,
	// https:// turns on TLS.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// TLS connects with https and wss.
	TLS bool `mapstructure:"tls"`
	// Hub is the hub name, served under "/<hub>".
	Hub string `mapstructure:"hub"`
	// SkipNegotiation dials the websocket directly without the negotiate call.
	SkipNegotiation bool `mapstructure:"skip_negotiation"`
	// KeepAlive is the ping interval, zero disables pings.
	KeepAlive time.Duration `mapstructure:"keepalive"`
}

// HubPath returns the URL path of the hub endpoint.
//
// Postcondition: Returns a path with a single leading slash.
func (r RunnerConfig) HubPath() string {
	return "/" + strings.Trim(r.Hub, "/")
}

// TLSConfig returns the client TLS settings, nil when TLS is off.
func (r RunnerConfig) TLSConfig() *tls.Config {
	if !r.TLS {
		return nil
	}
	return &tls.Config{
		ServerName: r.Host,
		MinVersion: tls.VersionTLS12,
	}
}

// BotConfig holds the registration and behaviour of the bot.
type BotConfig struct {
	Token    string `mapstructure:"token"`
	Nickname string `mapstructure:"nickname"`
	// Strategy is "fixed" or "square".
	Strategy   string `mapstructure:"strategy"`
	Action     string `mapstructure:"action"`
	SquareSize int    `mapstructure:"square_size"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Runner  RunnerConfig  `mapstructure:"runner"`
	Bot     BotConfig     `mapstructure:"bot"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateRunner(c.Runner); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBot(c.Bot); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRunner(r RunnerConfig) error {
	var errs []string
	if r.Host == "" {
		errs = append(errs, "runner.host must not be empty")
	}
	if r.Port < 1 || r.Port > 65535 {
		errs = append(errs, fmt.Sprintf("runner.port must be 1-65535, got %d", r.Port))
	}
	if strings.Trim(r.Hub, "/") == "" {
		errs = append(errs, "runner.hub must not be empty")
	}
	if r.KeepAlive < 0 {
		errs = append(errs, "runner.keepalive must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBot(b BotConfig) error {
	var errs []string
	if b.Token == "" {
		errs = append(errs, "bot.token must not be empty (set TOKEN or REGISTRATION_TOKEN)")
	}
	if b.Nickname == "" {
		errs = append(errs, "bot.nickname must not be empty")
	}
	switch b.Strategy {
	case "fixed":
		if _, err := model.ParseAction(b.Action); err != nil {
			errs = append(errs, fmt.Sprintf("bot.action: %s", err))
		}
	case "square":
		if b.SquareSize < 1 {
			errs = append(errs, fmt.Sprintf("bot.square_size must be >= 1, got %d", b.SquareSize))
		}
	default:
		errs = append(errs, fmt.Sprintf("bot.strategy must be one of [fixed, square], got %q", b.Strategy))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the optional YAML file at path, applies
// environment variable overrides, and validates the result.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	host, secure := normalizeHost(cfg.Runner.Host)
	cfg.Runner.Host = host
	cfg.Runner.TLS = cfg.Runner.TLS || secure
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalizeHost accepts runner addresses given as URLs and reports whether
// the scheme asked for TLS.
func normalizeHost(host string) (string, bool) {
	host = strings.TrimSpace(host)
	secure := false
	for _, scheme := range []string{"http://", "https://"} {
		if len(host) >= len(scheme) && strings.EqualFold(host[:len(scheme)], scheme) {
			host = host[len(scheme):]
			secure = scheme == "https://"
			break
		}
	}
	return strings.TrimRight(host, "/"), secure
}

// envBindings maps config keys to the environment variables the runner
// tooling sets, first match wins.
var envBindings = map[string][]string{
	"runner.host":             {"RUNNER_IPV4"},
	"runner.port":             {"RUNNER_PORT"},
	"runner.tls":              {"RUNNER_TLS"},
	"runner.hub":              {"RUNNER_HUB"},
	"runner.skip_negotiation": {"RUNNER_SKIP_NEGOTIATION"},
	"runner.keepalive":        {"RUNNER_KEEPALIVE"},
	"bot.token":               {"TOKEN", "REGISTRATION_TOKEN"},
	"bot.nickname":            {"BOT_NICKNAME"},
	"bot.strategy":            {"BOT_STRATEGY"},
	"bot.action":              {"BOT_ACTION"},
	"bot.square_size":         {"BOT_SQUARE_SIZE"},
	"logging.level":           {"LOG_LEVEL"},
	"logging.format":          {"LOG_FORMAT"},
}

func bindEnv(v *viper.Viper) error {
	var errs []error
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			errs = append(errs, fmt.Errorf("binding %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runner.host", "localhost")
	v.SetDefault("runner.port", 5000)
	v.SetDefault("runner.tls", false)
	v.SetDefault("runner.hub", "runnerhub")
	v.SetDefault("runner.skip_negotiation", false)
	v.SetDefault("runner.keepalive", "15s")

	v.SetDefault("bot.token", "")
	v.SetDefault("bot.nickname", "GoBot")
	v.SetDefault("bot.strategy", "fixed")
	v.SetDefault("bot.action", "Right")
	v.SetDefault("bot.square_size", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}
