// Package config loads runtime settings for the API server.
//
// Values are applied in order: built-in defaults, an optional YAML file named by
// CONFIG_FILE, then environment variables (with .env.local / .env loaded first).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSecretLength = 32
	minBcryptCost   = 12
)

type Config struct {
	Env  string    `yaml:"env"`
	Port string    `yaml:"port"`
	Log  LogConfig `yaml:"log"`
	// TrustProxy honours X-Forwarded-For / X-Real-IP as the client address.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool           `yaml:"trust_proxy"`
	Database   DatabaseConfig `yaml:"database"`
	Auth       AuthConfig     `yaml:"auth"`
	Email      EmailConfig    `yaml:"email"`
	Redis      RedisConfig    `yaml:"redis"`
	Limit      LimitConfig    `yaml:"rate_limit"`
	CORS       CORSConfig     `yaml:"cors"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	SlowThreshold   time.Duration `yaml:"slow_threshold"`
}

type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	JWTExpiresIn      time.Duration `yaml:"jwt_expires_in"`
	CookieExpiresDays int           `yaml:"cookie_expires_days"`
	ResetTokenTTL     time.Duration `yaml:"reset_token_ttl"`
	BcryptCost        int           `yaml:"bcrypt_cost"`
}

type EmailConfig struct {
	From     string `yaml:"from"`
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// Defaults returns development settings. Never run production on these.
func Defaults() *Config {
	return &Config{
		Env:  EnvDevelopment,
		Port: "5050",
		Log:  LogConfig{Level: "info", Format: "json"},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    20,
			ConnMaxLifetime: 30 * time.Minute,
			SlowThreshold:   100 * time.Millisecond,
		},
		Auth: AuthConfig{
			JWTExpiresIn:      90 * 24 * time.Hour,
			CookieExpiresDays: 90,
			ResetTokenTTL:     10 * time.Minute,
			BcryptCost:        minBcryptCost,
		},
		Email: EmailConfig{
			From:     "Natours <hello@natours.io>",
			SMTPPort: 587,
		},
		Limit: LimitConfig{
			Requests: 100,
			Window:   time.Hour,
		},
		CORS: CORSConfig{
			Origins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Env, "ENV")
	setString(&c.Port, "PORT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Email.From, "EMAIL_FROM")
	setString(&c.Email.SMTPHost, "SMTP_HOST")
	setString(&c.Email.Username, "SMTP_USERNAME")
	setString(&c.Email.Password, "SMTP_PASSWORD")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORS.Origins = splitList(v)
	}

	var errs []error
	errs = append(errs,
		setDuration(&c.Auth.JWTExpiresIn, "JWT_EXPIRES_IN"),
		setDuration(&c.Auth.ResetTokenTTL, "PASSWORD_RESET_TTL"),
		setDuration(&c.Limit.Window, "RATE_LIMIT_WINDOW"),
		setInt(&c.Auth.CookieExpiresDays, "JWT_COOKIE_EXPIRES_IN"),
		setInt(&c.Auth.BcryptCost, "BCRYPT_COST"),
		setInt(&c.Email.SMTPPort, "SMTP_PORT"),
		setInt(&c.Limit.Requests, "RATE_LIMIT_REQUESTS"),
		setBool(&c.TrustProxy, "TRUST_PROXY"),
	)
	return errors.Join(errs...)
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is empty"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is empty"))
	} else if c.Env != EnvDevelopment && len(c.Auth.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.Auth.JWTExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	if c.Auth.CookieExpiresDays <= 0 {
		errs = append(errs, errors.New("JWT_COOKIE_EXPIRES_IN must be positive"))
	}
	if c.Auth.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("PASSWORD_RESET_TTL must be positive"))
	}
	if c.Auth.BcryptCost < minBcryptCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be at least %d", minBcryptCost))
	}
	return errors.Join(errs...)
}

// CookieTTL is how long the browser keeps the session cookie.
func (c AuthConfig) CookieTTL() time.Duration {
	return time.Duration(c.CookieExpiresDays) * 24 * time.Hour
}

func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// setDuration accepts Go durations ("15m") and day counts ("90d").
func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
