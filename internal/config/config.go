// Package config loads sitecounter settings from an optional .env file,
// SITECOUNTER_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rampantspark/sitecounter/internal/identity"
	"github.com/rampantspark/sitecounter/internal/server"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SITECOUNTER"

// Default configuration values.
const (
	defaultPort            = "8000"
	defaultDBPath          = "data/visitors.db"
	defaultWebDir          = "web"
	defaultEnvFile         = ".env"
	defaultRateLimit       = 20
	defaultRateBurst       = 40
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	maxHeaderBytes         = 1 << 20
)

// Config holds the application configuration.
type Config struct {
	Port   string // Port number to listen on
	DBPath string // SQLite database file
	WebDir string // Directory holding index.html and static/

	IdentityMode string // "cookie" or "network"
	TrustProxy   bool   // Honour X-Forwarded-For and X-Real-IP; off unless a trusted proxy sets them
	SecureCookie bool   // Mark the visitor cookie Secure

	LogLevel  string // debug, info, warn or error
	LogFormat string // text or json

	RateLimit int // API requests per second per client
	RateBurst int // API burst per client

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Timezone string // IANA name for calendar-day boundaries; empty uses the host zone
}

// Load builds the configuration.
//
// Values are resolved in this order, later sources winning:
//  1. Built-in defaults
//  2. SITECOUNTER_* entries of the .env file (SITECOUNTER_ENV_FILE, default ".env"), if present
//  3. SITECOUNTER_* environment variables
//  4. Command-line flags in args
//
// Parameters:
//   - args: command-line arguments without the program name
//   - output: destination for flag usage and errors
//
// Returns the loaded configuration, or an error if the .env file or flags
// cannot be parsed. Call Validate before use.
func Load(args []string, output io.Writer) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", defaultPort)
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("web_dir", defaultWebDir)
	v.SetDefault("identity_mode", string(identity.ModeCookie))
	v.SetDefault("trust_proxy", false)
	v.SetDefault("secure_cookie", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("rate_limit", defaultRateLimit)
	v.SetDefault("rate_burst", defaultRateBurst)
	v.SetDefault("read_timeout", defaultReadTimeout)
	v.SetDefault("write_timeout", defaultWriteTimeout)
	v.SetDefault("idle_timeout", defaultIdleTimeout)
	v.SetDefault("shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("timezone", "")
	v.SetDefault("env_file", defaultEnvFile)

	if err := loadEnvFile(v, v.GetString("env_file")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            v.GetString("port"),
		DBPath:          v.GetString("db_path"),
		WebDir:          v.GetString("web_dir"),
		IdentityMode:    v.GetString("identity_mode"),
		TrustProxy:      v.GetBool("trust_proxy"),
		SecureCookie:    v.GetBool("secure_cookie"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		RateLimit:       v.GetInt("rate_limit"),
		RateBurst:       v.GetInt("rate_burst"),
		ReadTimeout:     v.GetDuration("read_timeout"),
		WriteTimeout:    v.GetDuration("write_timeout"),
		IdleTimeout:     v.GetDuration("idle_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		Timezone:        v.GetString("timezone"),
	}

	flags := flag.NewFlagSet("sitecounter", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&cfg.Port, "p", cfg.Port, "Port to run the server on")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database file")
	flags.StringVar(&cfg.WebDir, "web", cfg.WebDir, "Directory with index.html and static assets")
	flags.StringVar(&cfg.IdentityMode, "mode", cfg.IdentityMode, "Visitor identity mode: cookie or network")
	flags.BoolVar(&cfg.TrustProxy, "trust-proxy", cfg.TrustProxy, "Use X-Forwarded-For/X-Real-IP for the client address (only behind a proxy that sets them)")
	flags.BoolVar(&cfg.SecureCookie, "secure-cookie", cfg.SecureCookie, "Only send the visitor cookie over HTTPS")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	flags.IntVar(&cfg.RateLimit, "rate", cfg.RateLimit, "API requests per second per client")
	flags.IntVar(&cfg.RateBurst, "burst", cfg.RateBurst, "API burst size per client")
	flags.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "Timezone for calendar-day statistics (default: host zone)")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile feeds SITECOUNTER_* entries of the .env file into v as
// defaults, so real environment variables still win. A missing file is not
// an error.
func loadEnvFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	entries, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	prefix := EnvPrefix + "_"
	for key, value := range entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		v.SetDefault(strings.ToLower(strings.TrimPrefix(key, prefix)), value)
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	sc := c.Server()
	if err := sc.Validate(); err != nil {
		return err
	}
	if _, err := identity.ParseMode(c.IdentityMode); err != nil {
		return err
	}
	if c.DBPath == "" {
		return errors.New("database path must not be empty")
	}
	if c.WebDir == "" {
		return errors.New("web directory must not be empty")
	}
	if c.RateLimit < 1 || c.RateBurst < 1 {
		return fmt.Errorf("invalid rate limit: %d req/sec, burst %d (both must be positive)", c.RateLimit, c.RateBurst)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q (must be text or json)", c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Mode returns the parsed identity mode. Only meaningful after Validate.
func (c *Config) Mode() identity.Mode {
	m, _ := identity.ParseMode(c.IdentityMode)
	return m
}

// Location returns the timezone used for calendar-day statistics.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Server returns the HTTP server settings.
func (c *Config) Server() *server.Config {
	return &server.Config{
		Port:           c.Port,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		IdleTimeout:    c.IdleTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level: %q", s)
	}
	return level, nil
}
