// Package config loads chatd configuration from a YAML, TOML or JSON
// file (or URL), then applies environment variable overrides declared
// with `env` struct tags.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Config represents the chat server configuration.
type Config struct {
	Server struct {
		Name string `yaml:"name" toml:"name" json:"name" env:"CHATD_SERVER_NAME" validate:"required"`
		Host string `yaml:"host" toml:"host" json:"host" env:"CHATD_HOST"`
		Port int    `yaml:"port" toml:"port" json:"port" env:"CHATD_PORT" validate:"gte=0,lte=65535"`
	} `yaml:"server" toml:"server" json:"server"`

	Chat struct {
		// Secret accepted by /oper. When the bcrypt hash is set it is
		// checked instead of the plaintext password.
		OperatorPassword     string `yaml:"operator_password" toml:"operator_password" json:"operator_password" env:"CHATD_OPERATOR_PASSWORD"`
		OperatorPasswordHash string `yaml:"operator_password_hash" toml:"operator_password_hash" json:"operator_password_hash" env:"CHATD_OPERATOR_PASSWORD_HASH"`

		// Per-connection flood limits, lines per second plus burst.
		MessageRate  float64 `yaml:"message_rate" toml:"message_rate" json:"message_rate" env:"CHATD_MESSAGE_RATE" validate:"gt=0"`
		MessageBurst int     `yaml:"message_burst" toml:"message_burst" json:"message_burst" env:"CHATD_MESSAGE_BURST" validate:"gte=1"`

		WriteTimeoutSeconds int `yaml:"write_timeout_seconds" toml:"write_timeout_seconds" json:"write_timeout_seconds" env:"CHATD_WRITE_TIMEOUT_SECONDS" validate:"gte=1"`
	} `yaml:"chat" toml:"chat" json:"chat"`

	Transcript struct {
		Backend string `yaml:"backend" toml:"backend" json:"backend" env:"CHATD_TRANSCRIPT_BACKEND" validate:"oneof=file sqlite"`
		Dir     string `yaml:"dir" toml:"dir" json:"dir" env:"CHATD_TRANSCRIPT_DIR"`
		DSN     string `yaml:"dsn" toml:"dsn" json:"dsn" env:"CHATD_TRANSCRIPT_DSN"`
	} `yaml:"transcript" toml:"transcript" json:"transcript"`

	Admin struct {
		Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled" env:"CHATD_ADMIN_ENABLED"`
		Host    string `yaml:"host" toml:"host" json:"host" env:"CHATD_ADMIN_HOST"`
		Port    int    `yaml:"port" toml:"port" json:"port" env:"CHATD_ADMIN_PORT" validate:"gte=0,lte=65535"`
	} `yaml:"admin" toml:"admin" json:"admin"`

	Debug bool `yaml:"debug" toml:"debug" json:"debug" env:"CHATD_DEBUG"`

	// Configuration source, kept for reloads.
	Source string `yaml:"-" toml:"-" json:"-"`
}

// Default returns a configuration with every knob at its shipped value.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Name = "chatd.local"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 9988
	cfg.Chat.OperatorPassword = "changeme"
	cfg.Chat.MessageRate = 5
	cfg.Chat.MessageBurst = 10
	cfg.Chat.WriteTimeoutSeconds = 10
	cfg.Transcript.Backend = "file"
	cfg.Transcript.Dir = "transcripts"
	cfg.Transcript.DSN = "chatd.db"
	cfg.Admin.Host = "0.0.0.0"
	cfg.Admin.Port = 8080
	return cfg
}

// Load builds a configuration from a file or URL. An empty source skips
// the file step and yields defaults plus environment overrides.
func Load(source string) (*Config, error) {
	cfg := Default()
	cfg.Source = source

	if source != "" {
		if err := cfg.loadFromSource(source); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Reload re-reads the configuration from the original source or a new one.
func (c *Config) Reload(newSource string) error {
	if newSource != "" {
		c.Source = newSource
	}

	newCfg, err := Load(c.Source)
	if err != nil {
		return err
	}

	*c = *newCfg
	return nil
}

// Validate checks the struct-level constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ListenAddr returns the chat listener bind address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AdminListenAddr returns the admin portal bind address.
func (c *Config) AdminListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}

// SplitHostPort breaks a host:port flag value into the host and numeric
// port fields used by this package.
func SplitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %v", portStr, err)
	}
	return host, port, nil
}

// WriteTimeout returns the per-send deadline for client writes.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Chat.WriteTimeoutSeconds) * time.Second
}

// CheckOperatorPassword validates an /oper secret against the configured
// hash, or the plaintext password when no hash is set.
func (c *Config) CheckOperatorPassword(password string) bool {
	if c.Chat.OperatorPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.Chat.OperatorPasswordHash), []byte(password)) == nil
	}
	return c.Chat.OperatorPassword != "" && c.Chat.OperatorPassword == password
}

// loadFromSource reads and parses a config file or URL.
func (c *Config) loadFromSource(source string) error {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return fmt.Errorf("failed to load config from URL: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to load config from URL, status: %s", resp.Status)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read config from URL: %v", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read config file: %v", err)
		}
	}

	switch {
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config: %v", err)
	}

	c.Source = source
	return nil
}

// applyEnvOverrides applies environment variable overrides declared in
// `env` struct tags.
func applyEnvOverrides(cfg *Config) {
	applyEnvOverridesRecursive(reflect.ValueOf(cfg).Elem())
}

func applyEnvOverridesRecursive(v reflect.Value) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if field.PkgPath != "" {
			continue
		}

		if envTag := field.Tag.Get("env"); envTag != "" {
			if envValue, exists := os.LookupEnv(envTag); exists {
				setFieldFromEnv(fieldValue, envValue)
			}
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(fieldValue)
		}
	}
}

func setFieldFromEnv(field reflect.Value, envValue string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			field.SetInt(v)
		}
	case reflect.Float32, reflect.Float64:
		if v, err := strconv.ParseFloat(envValue, 64); err == nil {
			field.SetFloat(v)
		}
	case reflect.Bool:
		s := strings.ToLower(envValue)
		field.SetBool(s == "true" || s == "1" || s == "yes" || s == "y")
	}
}
