package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr         = ":8080"
	DefaultDebounce     = 1000 * time.Millisecond
	DefaultWriteTimeout = 10 * time.Second
	DefaultSSLMode      = "require"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RedisConfig selects the redis event bus. An empty Addr keeps events in-process.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AutosaveConfig struct {
	Debounce     time.Duration `yaml:"debounce"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	FlushOnClose bool          `yaml:"flush_on_close"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the optional YAML file at path, then .env, then the process
// environment. Later sources win.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.Database.User, "user")
	setString(&c.Database.Password, "password")
	setString(&c.Database.Host, "host")
	setString(&c.Database.Port, "port")
	setString(&c.Database.Name, "dbname")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.Auth.JWTSecret, "SUPABASE_JWT_SECRET")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Log.Level, "LOG_LEVEL")

	if err := setDuration(&c.Autosave.Debounce, "AUTOSAVE_DEBOUNCE"); err != nil {
		return err
	}
	if err := setDuration(&c.Autosave.WriteTimeout, "AUTOSAVE_WRITE_TIMEOUT"); err != nil {
		return err
	}
	if v := env("AUTOSAVE_FLUSH_ON_CLOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AUTOSAVE_FLUSH_ON_CLOSE %q: %w", v, err)
		}
		c.Autosave.FlushOnClose = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultSSLMode
	}
	if c.Autosave.Debounce == 0 {
		c.Autosave.Debounce = DefaultDebounce
	}
	if c.Autosave.WriteTimeout == 0 {
		c.Autosave.WriteTimeout = DefaultWriteTimeout
	}
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("SUPABASE_JWT_SECRET is not set")
	}
	if c.Autosave.Debounce < 0 {
		return fmt.Errorf("autosave debounce must be positive, got %s", c.Autosave.Debounce)
	}
	if c.Autosave.WriteTimeout < 0 {
		return fmt.Errorf("autosave write timeout must be positive, got %s", c.Autosave.WriteTimeout)
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func setString(dst *string, name string) {
	if v := env(name); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name string) error {
	v := env(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = d
	return nil
}
