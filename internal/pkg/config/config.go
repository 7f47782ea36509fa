package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	WebService    WebServiceConfig    `mapstructure:"web_service"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Collaborators CollaboratorsConfig `mapstructure:"collaborators"`
	RedisService  RedisServiceConfig  `mapstructure:"redis_service"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	AccessLimits  AccessLimitsConfig  `mapstructure:"access_limits"`
	Log           LogConfig           `mapstructure:"log"`
}

type WebServiceConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type SchedulerConfig struct {
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	Timezone        string `mapstructure:"timezone"`
}

// CollaboratorsConfig locates the external assistant and run-executor services.
type CollaboratorsConfig struct {
	AssistantURL   string `mapstructure:"assistant_url"`
	ExecutorURL    string `mapstructure:"executor_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type RedisServiceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DB      int    `mapstructure:"db"`
}

type JWTConfig struct {
	SecretKey   string `mapstructure:"secret_key"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// AccessLimitsConfig bounds anonymous password attempts per client.
type AccessLimitsConfig struct {
	MaxAttempts   int `mapstructure:"max_attempts"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads the configuration from the given file
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("web_service.host", "0.0.0.0")
	v.SetDefault("web_service.port", 8080)
	v.SetDefault("database.path", "data/reportd.db")
	v.SetDefault("scheduler.interval_seconds", 60)
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("collaborators.timeout_seconds", 120)
	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("access_limits.max_attempts", 10)
	v.SetDefault("access_limits.window_seconds", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// GetWebServiceAddr returns the web service listen address
func (c *Config) GetWebServiceAddr() string {
	return fmt.Sprintf("%s:%d", c.WebService.Host, c.WebService.Port)
}

// GetRedisAddr returns the redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisService.Host, c.RedisService.Port)
}

// SchedulerInterval returns the scheduler tick interval
func (c *Config) SchedulerInterval() time.Duration {
	if c.Scheduler.IntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// CollaboratorTimeout returns the timeout applied to assistant and executor calls
func (c *Config) CollaboratorTimeout() time.Duration {
	if c.Collaborators.TimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Collaborators.TimeoutSeconds) * time.Second
}

// AccessWindow returns the throttle window for anonymous access attempts
func (c *Config) AccessWindow() time.Duration {
	if c.AccessLimits.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.AccessLimits.WindowSeconds) * time.Second
}

// Location resolves the scheduler reference timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
