package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	FileName  = "taskdeck.yml"
	EnvPrefix = "TASKDECK"
)

// Config models taskdeck.yml. Every key can be overridden with a
// TASKDECK_<SECTION>_<KEY> environment variable.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Reminders RemindersConfig `yaml:"reminders" mapstructure:"reminders"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	BasePath string `yaml:"base_path" mapstructure:"base_path"`
	// CORSOrigins lists browser origins allowed to call the API with
	// credentials. Empty disables CORS headers.
	CORSOrigins []string `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	Workspace     string `yaml:"workspace" mapstructure:"workspace"`
	MongoURI      string `yaml:"mongo_uri,omitempty" mapstructure:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database,omitempty" mapstructure:"mongo_database"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Issuer       string        `yaml:"issuer" mapstructure:"issuer"`
	TokenTTL     time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
	CookieSecure bool          `yaml:"cookie_secure" mapstructure:"cookie_secure"`
}

type RemindersConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	Timezone string        `yaml:"timezone" mapstructure:"timezone"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file,omitempty" mapstructure:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Addr: "127.0.0.1:4000", BasePath: "/api"},
		Storage:   StorageConfig{Driver: "sqlite", Workspace: ".", MongoDatabase: "taskdeck"},
		Auth:      AuthConfig{Issuer: "taskdeck", TokenTTL: 24 * time.Hour},
		Reminders: RemindersConfig{Enabled: true, Interval: 15 * time.Minute, Timezone: "UTC"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment; missing files are skipped and existing variables win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load layers defaults, the YAML file at path (optional when it does not
// exist) and TASKDECK_* environment variables, then validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromYAML parses and validates a YAML document over the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// YAML renders the config as a taskdeck.yml document.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
	case "mongo":
		if strings.TrimSpace(c.Storage.MongoURI) == "" {
			return fmt.Errorf("config.storage.mongo_uri is required for the mongo driver")
		}
	default:
		return fmt.Errorf("config.storage.driver must be 'sqlite' or 'mongo', got %q", c.Storage.Driver)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with '/'")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config.auth.token_ttl must be positive")
	}
	if c.Reminders.Enabled && c.Reminders.Interval < time.Second {
		return fmt.Errorf("config.reminders.interval must be at least 1s")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config.reminders.timezone: %w", err)
	}
	return nil
}

// Location resolves the reminders timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Reminders.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Reminders.Timezone)
}

// WriteDefault writes a default config with a fresh JWT secret to path,
// refusing to overwrite an existing file.
func WriteDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists", path)
	}
	cfg := Default()
	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	cfg.Auth.JWTSecret = secret
	data, err := cfg.YAML()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return cfg, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.base_path", cfg.Server.BasePath)
	v.SetDefault("server.cors_origins", cfg.Server.CORSOrigins)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.workspace", cfg.Storage.Workspace)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)
	v.SetDefault("auth.issuer", cfg.Auth.Issuer)
	v.SetDefault("auth.token_ttl", cfg.Auth.TokenTTL)
	v.SetDefault("auth.cookie_secure", cfg.Auth.CookieSecure)
	v.SetDefault("reminders.enabled", cfg.Reminders.Enabled)
	v.SetDefault("reminders.interval", cfg.Reminders.Interval)
	v.SetDefault("reminders.timezone", cfg.Reminders.Timezone)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
}
