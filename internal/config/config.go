package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token      string        `yaml:"token" envconfig:"BOT_TOKEN"`
	Mode       string        `yaml:"mode"` // polling only for now
	Workers    int           `yaml:"workers" envconfig:"BOT_WORKERS"`
	QueueSize  int           `yaml:"queue_size"`
	RateLimit  int           `yaml:"rate_limit"` // turns per user per window, 0 disables
	RateWindow time.Duration `yaml:"rate_window"`
	Language   string        `yaml:"language" envconfig:"BOT_LANGUAGE"`
}

// BillingConfig describes the upstream telecom billing API.
type BillingConfig struct {
	Host       string        `yaml:"host" envconfig:"API_HOST"`
	Scheme     string        `yaml:"scheme"`
	BasePath   string        `yaml:"base_path"`
	UserAgent  string        `yaml:"user_agent"`
	Attempts   int           `yaml:"attempts"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	Timeout    time.Duration `yaml:"timeout"`
	ClientIP   string        `yaml:"client_ip"`
	PSTNAmount string        `yaml:"pstn_amount"`
	PayMode    string        `yaml:"pay_mode"`
	Lang       string        `yaml:"lang"`
}

// BaseURL joins scheme, host and base path, e.g. https://mobile-pre.at.dz/api/.
func (b BillingConfig) BaseURL() string {
	p := "/" + strings.Trim(b.BasePath, "/") + "/"
	if p == "//" {
		p = "/"
	}
	return fmt.Sprintf("%s://%s%s", b.Scheme, strings.TrimSuffix(b.Host, "/"), p)
}

type SessionConfig struct {
	Backend       string        `yaml:"backend" envconfig:"SESSION_BACKEND"` // memory|redis
	IdleTimeout   time.Duration `yaml:"idle_timeout" envconfig:"SESSION_IDLE_TIMEOUT"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type LogConfig struct {
	Level    string `yaml:"level" envconfig:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" envconfig:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling"`                      // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port" envconfig:"PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url" envconfig:"DATABASE_URL"`
	MaxConns     int32  `yaml:"max_conns"`
	EnsureSchema bool   `yaml:"ensure_schema"`
}

type RedisConfig struct {
	URL      string `yaml:"url" envconfig:"REDIS_URL"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

type SecurityConfig struct {
	// EncryptionKey seals session payloads stored in Redis. Empty keeps them in clear.
	EncryptionKey string `yaml:"encryption_key" envconfig:"ENCRYPTION_KEY"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Billing  BillingConfig  `yaml:"billing"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-" ignored:"true"`
}

// LoadConfig reads the YAML file at path (missing file is fine), then a local
// .env file, then process environment overrides. Defaults fill whatever is left.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.QueueSize <= 0 {
		cfg.Bot.QueueSize = 64
	}
	if cfg.Bot.RateWindow <= 0 {
		cfg.Bot.RateWindow = time.Minute
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "en"
	}

	if cfg.Billing.Host == "" {
		cfg.Billing.Host = "mobile-pre.at.dz"
	}
	if cfg.Billing.Scheme == "" {
		cfg.Billing.Scheme = "https"
	}
	if cfg.Billing.BasePath == "" {
		cfg.Billing.BasePath = "/api/"
	}
	if cfg.Billing.UserAgent == "" {
		cfg.Billing.UserAgent = "Dart/2.18 (dart:io)"
	}
	if cfg.Billing.Attempts <= 0 {
		cfg.Billing.Attempts = 3
	}
	if cfg.Billing.BaseDelay <= 0 {
		cfg.Billing.BaseDelay = time.Second
	}
	if cfg.Billing.Timeout <= 0 {
		cfg.Billing.Timeout = 30 * time.Second
	}
	if cfg.Billing.ClientIP == "" {
		cfg.Billing.ClientIP = "0.0.0.0"
	}
	if cfg.Billing.PSTNAmount == "" {
		cfg.Billing.PSTNAmount = "595.0"
	}
	if cfg.Billing.PayMode == "" {
		cfg.Billing.PayMode = "Edahabia"
	}
	if cfg.Billing.Lang == "" {
		cfg.Billing.Lang = "fr"
	}

	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.IdleTimeout <= 0 {
		cfg.Session.IdleTimeout = 30 * time.Minute
	}
	if cfg.Session.SweepInterval <= 0 {
		cfg.Session.SweepInterval = time.Minute
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 3000
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 5 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 4
	}
}

// Validate checks the minimal set of values the bot cannot start without.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return errors.New("bot.token is required (or BOT_TOKEN)")
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required when session.backend is redis")
		}
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if k := len(c.Security.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", k)
	}
	return nil
}
