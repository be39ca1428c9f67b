// Package config loads the resilience layer's configuration from a YAML
// file with environment variable overrides. Per-service call parameters and
// breaker thresholds live under services.<name>; anything not set falls
// back to the defaults block.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jusscott/risk-assessment-app-sub005/client"
	"github.com/jusscott/risk-assessment-app-sub005/resilience"
)

// ServiceConfig holds one service's call parameters and breaker thresholds.
type ServiceConfig struct {
	BaseURL                  string        `mapstructure:"base_url"`
	MaxRetries               int           `mapstructure:"max_retries"`
	RetryDelay               time.Duration `mapstructure:"retry_delay"`
	ConnectionTimeout        time.Duration `mapstructure:"connection_timeout"`
	CircuitBreakerThreshold  int           `mapstructure:"circuit_breaker_threshold"`
	ResetTimeout             time.Duration `mapstructure:"reset_timeout"`
	ErrorThresholdPercentage float64       `mapstructure:"error_threshold_percentage"`
}

// BreakerConfig converts the service settings into a breaker configuration.
func (s ServiceConfig) BreakerConfig() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		Threshold:                s.CircuitBreakerThreshold,
		ResetTimeout:             s.ResetTimeout,
		ErrorThresholdPercentage: s.ErrorThresholdPercentage,
	}
}

// ClientSettings converts the service settings into client call settings.
func (s ServiceConfig) ClientSettings() client.Settings {
	return client.Settings{
		BaseURL:           s.BaseURL,
		MaxRetries:        s.MaxRetries,
		RetryDelay:        s.RetryDelay,
		ConnectionTimeout: s.ConnectionTimeout,
	}
}

// AuthConfig configures the fallback token validator.
type AuthConfig struct {
	// Secret is the shared HMAC key. Supports ${VAR} indirection so the
	// key itself stays out of config files.
	Secret string `mapstructure:"secret"`

	// ServiceName is the auth service's circuit breaker key.
	ServiceName string `mapstructure:"service_name"`

	// Issuer, when set, is enforced in strong validation.
	Issuer string `mapstructure:"issuer"`
}

// HealthConfig configures the health aggregator.
type HealthConfig struct {
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// LoggerConfig configures zap.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Config is the root configuration.
type Config struct {
	Defaults ServiceConfig            `mapstructure:"defaults"`
	Services map[string]ServiceConfig `mapstructure:"services"`
	Auth     AuthConfig               `mapstructure:"auth"`
	Health   HealthConfig             `mapstructure:"health"`
	Logger   LoggerConfig             `mapstructure:"logger"`
}

// ServiceSettings returns client settings for every configured service,
// with unset fields filled from the defaults block.
func (c *Config) ServiceSettings() map[string]client.Settings {
	out := make(map[string]client.Settings, len(c.Services))
	for name, svc := range c.Services {
		out[name] = c.merged(svc).ClientSettings()
	}
	return out
}

// BreakerConfigs returns breaker configuration for every configured
// service, with unset fields filled from the defaults block.
func (c *Config) BreakerConfigs() map[string]resilience.BreakerConfig {
	out := make(map[string]resilience.BreakerConfig, len(c.Services))
	for name, svc := range c.Services {
		out[name] = c.merged(svc).BreakerConfig()
	}
	return out
}

func (c *Config) merged(svc ServiceConfig) ServiceConfig {
	if svc.MaxRetries == 0 {
		svc.MaxRetries = c.Defaults.MaxRetries
	}
	if svc.RetryDelay == 0 {
		svc.RetryDelay = c.Defaults.RetryDelay
	}
	if svc.ConnectionTimeout == 0 {
		svc.ConnectionTimeout = c.Defaults.ConnectionTimeout
	}
	if svc.CircuitBreakerThreshold == 0 {
		svc.CircuitBreakerThreshold = c.Defaults.CircuitBreakerThreshold
	}
	if svc.ResetTimeout == 0 {
		svc.ResetTimeout = c.Defaults.ResetTimeout
	}
	if svc.ErrorThresholdPercentage == 0 {
		svc.ErrorThresholdPercentage = c.Defaults.ErrorThresholdPercentage
	}
	return svc
}

// Load reads configuration from config.yaml in the given paths (the working
// directory when none are given), applies environment overrides
// (RESILIENCE_AUTH_SECRET overrides auth.secret, and so on), and resolves
// ${VAR} secret indirection.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("RESILIENCE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
		// No file is fine: env and defaults carry the configuration.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	secret, err := expandEnvStrict(cfg.Auth.Secret)
	if err != nil {
		return nil, fmt.Errorf("config: auth secret: %w", err)
	}
	cfg.Auth.Secret = secret

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("defaults.max_retries", 2)
	v.SetDefault("defaults.retry_delay", 100*time.Millisecond)
	v.SetDefault("defaults.connection_timeout", 5*time.Second)
	v.SetDefault("defaults.circuit_breaker_threshold", 5)
	v.SetDefault("defaults.reset_timeout", 30*time.Second)
	v.SetDefault("defaults.error_threshold_percentage", 50)

	v.SetDefault("auth.service_name", "auth-service")

	v.SetDefault("health.cache_ttl", 10*time.Second)
	v.SetDefault("health.poll_timeout", 5*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
