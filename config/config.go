/*
Package config loads service configuration.

SOURCES (later wins):
  1. Built-in defaults
  2. YAML file (-config flag, or leave.yaml in . or ./config)
  3. .env file in the working directory (loaded into the environment)
  4. Environment variables: LEAVE_<SECTION>_<KEY>, e.g. LEAVE_SERVER_PORT,
     LEAVE_EMAIL_SMTP_HOST. PORT, TEST_USER_EMAIL and the SMTP_* names
     are honored too.

EXAMPLE leave.yaml:

  server:
    port: 8080
    static_dir: ./public
  store:
    driver: json          # json | sqlite
    path: ./data/entries.json
  directory:
    path: ./data/roles.yaml
  email:
    enabled: true
    server_url: https://leave.example.com
    from: leave@example.com
    smtp:
      host: smtp.example.com
      port: 25
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Leave     LeaveConfig     `mapstructure:"leave"`
	Email     EmailConfig     `mapstructure:"email"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	StaticDir       string        `mapstructure:"static_dir"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	Debug           bool          `mapstructure:"debug"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type DirectoryConfig struct {
	Path          string `mapstructure:"path"`
	DefaultRole   string `mapstructure:"default_role"`
	ApproverEmail string `mapstructure:"approver_email"`
	EmailDomain   string `mapstructure:"email_domain"`
}

type LeaveConfig struct {
	Types    []string `mapstructure:"types"`
	TimeZone string   `mapstructure:"time_zone"`
}

type EmailConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	TestMode     bool          `mapstructure:"test_mode"`
	TestEmail    string        `mapstructure:"test_email"`
	ServerURL    string        `mapstructure:"server_url"`
	From         string        `mapstructure:"from"`
	FromName     string        `mapstructure:"from_name"`
	EnvelopeFrom string        `mapstructure:"envelope_from"`
	Domain       string        `mapstructure:"domain"`
	QueueSize    int           `mapstructure:"queue_size"`
	Workers      int           `mapstructure:"workers"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SMTP         SMTPConfig    `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Secure     bool   `mapstructure:"secure"`
	User       string `mapstructure:"user"`
	Pass       string `mapstructure:"pass"`
	SkipVerify bool   `mapstructure:"skip_verify"`
}

type IdentityConfig struct {
	// TestUserEmail is used when no identity header is present (local dev).
	TestUserEmail string `mapstructure:"test_user_email"`
}

type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. path may be empty to search the defaults.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("leave")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("LEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "./public")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("server.debug", false)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("store.driver", "json")
	v.SetDefault("store.path", "./data/entries.json")

	v.SetDefault("directory.path", "./data/roles.yaml")
	v.SetDefault("directory.default_role", "developer")
	v.SetDefault("directory.approver_email", "")
	v.SetDefault("directory.email_domain", "")

	v.SetDefault("leave.types", []string{
		"Leave", "Sick", "WFH", "Work Travel", "Work From Stavanger", "Work From Oslo", "Public Holiday",
	})
	v.SetDefault("leave.time_zone", "Local")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.test_mode", false)
	v.SetDefault("email.test_email", "")
	v.SetDefault("email.server_url", "http://localhost:8080")
	v.SetDefault("email.from", "leave-tracker@localhost")
	v.SetDefault("email.from_name", "Leave Tracker")
	v.SetDefault("email.envelope_from", "")
	v.SetDefault("email.domain", "leave-tracker")
	v.SetDefault("email.queue_size", 100)
	v.SetDefault("email.workers", 1)
	v.SetDefault("email.timeout", 30*time.Second)
	v.SetDefault("email.smtp.host", "localhost")
	v.SetDefault("email.smtp.port", 25)
	v.SetDefault("email.smtp.secure", false)
	v.SetDefault("email.smtp.user", "")
	v.SetDefault("email.smtp.pass", "")
	v.SetDefault("email.smtp.skip_verify", false)

	v.SetDefault("identity.test_user_email", "")

	v.SetDefault("rate_limit.per_second", 1.0)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// bindEnvVariables keeps the unprefixed names older deployments use.
func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.port", "LEAVE_SERVER_PORT", "PORT")
	v.BindEnv("identity.test_user_email", "LEAVE_IDENTITY_TEST_USER_EMAIL", "TEST_USER_EMAIL")
	v.BindEnv("email.smtp.host", "LEAVE_EMAIL_SMTP_HOST", "SMTP_HOST")
	v.BindEnv("email.smtp.port", "LEAVE_EMAIL_SMTP_PORT", "SMTP_PORT")
	v.BindEnv("email.smtp.user", "LEAVE_EMAIL_SMTP_USER", "SMTP_USER")
	v.BindEnv("email.smtp.pass", "LEAVE_EMAIL_SMTP_PASS", "SMTP_PASS")
}

// Validate checks values that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("store.driver must be json or sqlite, got %q", c.Store.Driver)
	}
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Email.Enabled && c.Email.TestMode && c.Email.TestEmail == "" {
		return errors.New("email.test_email is required in test mode")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("leave.time_zone: %w", err)
	}
	return nil
}

// Location resolves leave.time_zone. "Local" and "" mean the server zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Leave.TimeZone {
	case "", "Local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Leave.TimeZone)
}
