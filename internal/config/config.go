package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Remote      RemoteConfig      `yaml:"remote"`
	Local       LocalConfig       `yaml:"local"`
	Auth        AuthConfig        `yaml:"auth"`
	Tailscale   TailscaleConfig   `yaml:"tailscale"`
	Log         LogConfig         `yaml:"log"`
	Progression ProgressionConfig `yaml:"progression"`
	Catalog     CatalogConfig     `yaml:"catalog"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Storage is the backend the mirror server keeps slots in.
	Storage string `yaml:"storage"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// RemoteConfig selects where a client mirrors its state.
type RemoteConfig struct {
	Backend string `yaml:"backend"`
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
	Path    string `yaml:"path"`
}

// LocalConfig selects the on-device slot store.
type LocalConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
	// Stdout also writes to stdout when File is set.
	Stdout bool `yaml:"stdout"`
}

type ProgressionConfig struct {
	Profile     string  `yaml:"profile"`
	Weeks       int     `yaml:"weeks"`
	MinWeightKg float64 `yaml:"min_weight_kg"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

var (
	localBackends  = []string{"memory", "sqlite", "badger"}
	remoteBackends = []string{"memory", "sqlite", "badger", "postgres", "redis", "http"}
	profiles       = []string{"strength", "hypertrophy", "recomposition"}
)

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads config from a YAML file, then a .env file next to it (if any),
// then applies environment variable overrides. Env vars use the prefix
// NICOFIT_ and underscore-separated paths:
//
//	NICOFIT_SERVER_HOST, NICOFIT_SERVER_PORT, NICOFIT_SERVER_STORAGE,
//	NICOFIT_DB_HOST, NICOFIT_DB_PORT, NICOFIT_DB_NAME,
//	NICOFIT_DB_USER, NICOFIT_DB_PASSWORD, NICOFIT_DB_SSLMODE,
//	NICOFIT_REDIS_URL,
//	NICOFIT_REMOTE_BACKEND, NICOFIT_REMOTE_URL, NICOFIT_REMOTE_API_KEY, NICOFIT_REMOTE_PATH,
//	NICOFIT_LOCAL_BACKEND, NICOFIT_LOCAL_PATH,
//	NICOFIT_AUTH_API_KEY,
//	NICOFIT_TAILSCALE_ENABLED, NICOFIT_TAILSCALE_HOSTNAME, NICOFIT_TAILSCALE_STATE_DIR,
//	NICOFIT_LOG_LEVEL, NICOFIT_LOG_FORMAT, NICOFIT_LOG_FILE,
//	NICOFIT_PROGRESSION_PROFILE, NICOFIT_PROGRESSION_WEEKS,
//	NICOFIT_CATALOG_PATH
//
// Variables already set in the environment win over the .env file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields the defaults with
// environment overrides applied.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return Load(path)
	}

	cfg := &Config{}
	applyEnvOverrides(cfg)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("NICOFIT_SERVER_HOST", &cfg.Server.Host)
	setInt("NICOFIT_SERVER_PORT", &cfg.Server.Port)
	setString("NICOFIT_SERVER_STORAGE", &cfg.Server.Storage)
	setString("NICOFIT_DB_HOST", &cfg.Database.Host)
	setInt("NICOFIT_DB_PORT", &cfg.Database.Port)
	setString("NICOFIT_DB_NAME", &cfg.Database.Name)
	setString("NICOFIT_DB_USER", &cfg.Database.User)
	setString("NICOFIT_DB_PASSWORD", &cfg.Database.Password)
	setString("NICOFIT_DB_SSLMODE", &cfg.Database.SSLMode)
	setString("NICOFIT_REDIS_URL", &cfg.Redis.URL)
	setString("NICOFIT_REMOTE_BACKEND", &cfg.Remote.Backend)
	setString("NICOFIT_REMOTE_URL", &cfg.Remote.URL)
	setString("NICOFIT_REMOTE_API_KEY", &cfg.Remote.APIKey)
	setString("NICOFIT_REMOTE_PATH", &cfg.Remote.Path)
	setString("NICOFIT_LOCAL_BACKEND", &cfg.Local.Backend)
	setString("NICOFIT_LOCAL_PATH", &cfg.Local.Path)
	setString("NICOFIT_AUTH_API_KEY", &cfg.Auth.APIKey)
	if v := os.Getenv("NICOFIT_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	setString("NICOFIT_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	setString("NICOFIT_TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)
	setString("NICOFIT_LOG_LEVEL", &cfg.Log.Level)
	setString("NICOFIT_LOG_FORMAT", &cfg.Log.Format)
	setString("NICOFIT_LOG_FILE", &cfg.Log.File)
	setString("NICOFIT_PROGRESSION_PROFILE", &cfg.Progression.Profile)
	setInt("NICOFIT_PROGRESSION_WEEKS", &cfg.Progression.Weeks)
	setString("NICOFIT_CATALOG_PATH", &cfg.Catalog.Path)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Storage == "" {
		c.Server.Storage = "postgres"
	}
	if c.Local.Backend == "" {
		c.Local.Backend = "sqlite"
	}
	if c.Local.Path == "" {
		c.Local.Path = "data"
	}
	if c.Remote.Backend == "" {
		c.Remote.Backend = "sqlite"
	}
	if c.Remote.Backend == "sqlite" && c.Remote.Path == "" {
		c.Remote.Path = filepath.Join(c.Local.Path, "remote")
	}
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "nicofit"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Progression.Profile == "" {
		c.Progression.Profile = "hypertrophy"
	}
	if c.Progression.Weeks == 0 {
		c.Progression.Weeks = 4
	}
}

func (c *Config) validate() error {
	if !slices.Contains(localBackends, c.Local.Backend) {
		return fmt.Errorf("local.backend %q must be one of %s", c.Local.Backend, strings.Join(localBackends, ", "))
	}
	if !slices.Contains(remoteBackends, c.Remote.Backend) {
		return fmt.Errorf("remote.backend %q must be one of %s", c.Remote.Backend, strings.Join(remoteBackends, ", "))
	}
	switch c.Remote.Backend {
	case "http":
		if c.Remote.URL == "" {
			return fmt.Errorf("remote.url is required for the http backend")
		}
	case "redis":
		if c.Remote.URL == "" && c.Redis.URL == "" {
			return fmt.Errorf("remote.url or redis.url is required for the redis backend")
		}
	}
	if !slices.Contains(profiles, c.Progression.Profile) {
		return fmt.Errorf("progression.profile %q must be one of %s", c.Progression.Profile, strings.Join(profiles, ", "))
	}
	if c.Progression.Weeks < 2 || c.Progression.Weeks > 6 {
		return fmt.Errorf("progression.weeks must be between 2 and 6")
	}
	if c.Progression.MinWeightKg < 0 {
		return fmt.Errorf("progression.min_weight_kg must not be negative")
	}
	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// ValidateServer checks the settings the mirror server needs on top of validate.
func (c *Config) ValidateServer() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if !slices.Contains(remoteBackends, c.Server.Storage) || c.Server.Storage == "http" {
		return fmt.Errorf("server.storage %q is not a storage backend", c.Server.Storage)
	}
	if c.Server.Storage == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}
	if c.Server.Storage == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required for redis storage")
	}
	return nil
}

// RemoteURL returns the address of the remote backend, falling back to the
// shared redis and database sections.
func (c *Config) RemoteURL() string {
	switch {
	case c.Remote.URL != "":
		return c.Remote.URL
	case c.Remote.Backend == "redis":
		return c.Redis.URL
	case c.Remote.Backend == "postgres":
		return c.Database.DSN()
	}
	return ""
}
