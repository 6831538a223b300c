package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

// EnvConfigPath names the environment variable holding the config file path
const EnvConfigPath = "FIREDOC_CONFIG"

// EnvEmulatorHost points the client at a local emulator, overriding the endpoint
const EnvEmulatorHost = "FIRESTORE_EMULATOR_HOST"

// DatastoreScope is the OAuth scope granting read/write access to the document store
const DatastoreScope = "https://www.googleapis.com/auth/datastore"

// Config holds the complete application configuration
type Config struct {
	General   GeneralConfig   `toml:"general" yaml:"general"`
	Firestore FirestoreConfig `toml:"firestore" yaml:"firestore"`
	Auth      AuthConfig      `toml:"auth" yaml:"auth"`
	Emulator  EmulatorConfig  `toml:"emulator" yaml:"emulator"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name      string `toml:"name" yaml:"name"`
	LogLevel  string `toml:"log_level" yaml:"log_level"`
	LogFormat string `toml:"log_format" yaml:"log_format"`
}

// FirestoreConfig describes the remote document store endpoint
type FirestoreConfig struct {
	Endpoint       string   `toml:"endpoint" yaml:"endpoint"`
	DomainName     string   `toml:"domain_name" yaml:"domain_name"`
	ProjectID      string   `toml:"project_id" yaml:"project_id"`
	Database       string   `toml:"database" yaml:"database"`
	RootsFile      string   `toml:"roots_file" yaml:"roots_file"`
	Insecure       bool     `toml:"insecure" yaml:"insecure"`
	ConnectTimeout Duration `toml:"connect_timeout" yaml:"connect_timeout"`
	RequestTimeout Duration `toml:"request_timeout" yaml:"request_timeout"`
	PageSize       int      `toml:"page_size" yaml:"page_size"`
}

// AuthConfig holds service-account credential settings
type AuthConfig struct {
	ServiceAccountFile string   `toml:"service_account_file" yaml:"service_account_file"`
	TokenURL           string   `toml:"token_url" yaml:"token_url"`
	Scopes             []string `toml:"scopes" yaml:"scopes"`
	RefreshMargin      Duration `toml:"refresh_margin" yaml:"refresh_margin"`
}

// EmulatorConfig holds settings for the local document store emulator
type EmulatorConfig struct {
	Host        string `toml:"host" yaml:"host"`
	Port        int    `toml:"port" yaml:"port"`
	Store       string `toml:"store" yaml:"store"`
	Path        string `toml:"path" yaml:"path"`
	RequireAuth bool   `toml:"require_auth" yaml:"require_auth"`
}

// Duration wraps time.Duration for TOML and YAML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses a duration scalar
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.expandEnvVars()
	return cfg
}

// Load loads configuration from a TOML or YAML file, chosen by extension
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, configError(fmt.Sprintf("config file not found: %s", path), nil)
		}
		return nil, configError("failed to read config", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, configError("failed to parse config", err)
		}
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, configError("failed to parse config", err)
		}
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Find returns FIREDOC_CONFIG or the first existing default location, or ""
func Find() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	defaultPaths := []string{
		"./configs/config.toml",
		"./config.toml",
		filepath.Join(os.Getenv("HOME"), ".config/firedoc/config.toml"),
	}
	for _, p := range defaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadFromEnv loads configuration from FIREDOC_CONFIG or the default locations
func LoadFromEnv() (*Config, error) {
	path := Find()
	if path == "" {
		return nil, configError("no config file found, set "+EnvConfigPath+" or create configs/config.toml", nil)
	}

	return Load(path)
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.General.Name == "" {
		c.General.Name = "firedoc"
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogFormat == "" {
		c.General.LogFormat = "text"
	}

	if c.Firestore.Endpoint == "" {
		c.Firestore.Endpoint = "firestore.googleapis.com:443"
	}
	if c.Firestore.DomainName == "" {
		c.Firestore.DomainName = hostOf(c.Firestore.Endpoint)
	}
	if c.Firestore.Database == "" {
		c.Firestore.Database = "(default)"
	}
	if c.Firestore.ConnectTimeout.Duration == 0 {
		c.Firestore.ConnectTimeout.Duration = 10 * time.Second
	}
	if c.Firestore.RequestTimeout.Duration == 0 {
		c.Firestore.RequestTimeout.Duration = 30 * time.Second
	}

	if c.Auth.TokenURL == "" {
		c.Auth.TokenURL = "https://oauth2.googleapis.com/token"
	}
	if len(c.Auth.Scopes) == 0 {
		c.Auth.Scopes = []string{DatastoreScope}
	}
	if c.Auth.RefreshMargin.Duration == 0 {
		c.Auth.RefreshMargin.Duration = 60 * time.Second
	}

	if c.Emulator.Host == "" {
		c.Emulator.Host = "127.0.0.1"
	}
	if c.Emulator.Port == 0 {
		c.Emulator.Port = 8681
	}
	if c.Emulator.Store == "" {
		c.Emulator.Store = "memory"
	}
	if c.Emulator.Path == "" {
		c.Emulator.Path = "./data/emulator.db"
	}
}

// expandEnvVars expands environment variables in path-like values
func (c *Config) expandEnvVars() {
	c.Firestore.RootsFile = os.ExpandEnv(c.Firestore.RootsFile)
	c.Firestore.ProjectID = os.ExpandEnv(c.Firestore.ProjectID)
	c.Auth.ServiceAccountFile = os.ExpandEnv(c.Auth.ServiceAccountFile)
	c.Emulator.Path = os.ExpandEnv(c.Emulator.Path)

	if host := os.Getenv(EnvEmulatorHost); host != "" {
		c.Firestore.Endpoint = host
		c.Firestore.DomainName = hostOf(host)
		c.Firestore.Insecure = true
	}
}

// Validate checks values that have no sensible default
func (c *Config) Validate() error {
	if c.Firestore.PageSize < 0 {
		return configError("firestore.page_size must not be negative", nil)
	}
	if c.Firestore.PageSize > math.MaxInt32 {
		return configError(fmt.Sprintf("firestore.page_size must be at most %d", math.MaxInt32), nil)
	}
	switch c.Emulator.Store {
	case "memory", "sqlite":
	default:
		return configError(fmt.Sprintf("emulator.store must be memory or sqlite, got %q", c.Emulator.Store), nil)
	}
	if c.Auth.RefreshMargin.Duration < 0 {
		return configError("auth.refresh_margin must not be negative", nil)
	}
	return nil
}

// Parent returns the resource path that collection paths are relative to
func (c *Config) Parent() string {
	return fmt.Sprintf("projects/%s/databases/%s/documents", c.Firestore.ProjectID, c.Firestore.Database)
}

// EmulatorAddress returns host:port of the emulator listener
func (c *Config) EmulatorAddress() string {
	return fmt.Sprintf("%s:%d", c.Emulator.Host, c.Emulator.Port)
}

func hostOf(endpoint string) string {
	host := endpoint
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

func configError(message string, cause error) error {
	var e *fderror.Error
	if cause != nil {
		e = fderror.Wrap(cause, message)
	} else {
		e = fderror.New(message)
	}
	return e.WithCode(fderror.CodeConfig).WithOperation("LoadConfig")
}
