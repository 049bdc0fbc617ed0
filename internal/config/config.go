// Package config provides Viper-based configuration loading for the sheet service.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// PublicURL is the externally visible base URL, used for share links and
	// the OAuth redirect.
	PublicURL string `mapstructure:"public_url"`
	// ReadTimeout bounds reading a whole request, body included.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout bounds the graceful drain on shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxUploadBytes bounds uploaded save files and images.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// Enabled turns on local persistence of open sheets.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GoogleConfig holds Google OAuth and Drive settings. Every field may be
// empty; Drive operations then fail with CONFIG_MISSING at call time.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// RedirectURL defaults to PublicURL + "/oauth/google/callback".
	RedirectURL string `mapstructure:"redirect_url"`
	// APIKey allows anonymous reads of publicly shared files.
	APIKey string `mapstructure:"api_key"`
	// FolderName is the Drive folder created for sheets.
	FolderName string `mapstructure:"folder_name"`
	// ConfigFileName is the app-data file that records the folder id.
	ConfigFileName string   `mapstructure:"config_file_name"`
	Scopes         []string `mapstructure:"scopes"`
	// StateTTL bounds how long a started OAuth flow may take.
	StateTTL time.Duration `mapstructure:"state_ttl"`
}

// OAuthConfigured reports whether the OAuth client is configured.
func (g GoogleConfig) OAuthConfigured() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// EditorConfig tunes editing sessions.
type EditorConfig struct {
	// AutosaveDelay is the quiet period before an edited sheet is persisted locally.
	AutosaveDelay time.Duration `mapstructure:"autosave_delay"`
	// MaxSessions bounds the number of sheets open at once.
	MaxSessions int `mapstructure:"max_sessions"`
}

// RulesConfig points at optional overrides of embedded data files.
type RulesConfig struct {
	// Path is a rule-table YAML file; empty uses the embedded tables.
	Path string `mapstructure:"path"`
	// PrintTemplate is an HTML print template; empty uses the embedded one.
	PrintTemplate string `mapstructure:"print_template"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Google   GoogleConfig   `mapstructure:"google"`
	Editor   EditorConfig   `mapstructure:"editor"`
	Rules    RulesConfig    `mapstructure:"rules"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Database.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGoogle(c.Google); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEditor(c.Editor); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.PublicURL != "" {
		if u, err := url.Parse(s.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("server.public_url must be an absolute URL, got %q", s.PublicURL))
		}
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if s.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Sprintf("server.max_upload_bytes must be >= 1, got %d", s.MaxUploadBytes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGoogle(g GoogleConfig) error {
	var errs []string
	if (g.ClientID == "") != (g.ClientSecret == "") {
		errs = append(errs, "google.client_id and google.client_secret must be set together")
	}
	if g.FolderName == "" {
		errs = append(errs, "google.folder_name must not be empty")
	}
	if g.ConfigFileName == "" {
		errs = append(errs, "google.config_file_name must not be empty")
	}
	if g.StateTTL <= 0 {
		errs = append(errs, "google.state_ttl must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEditor(e EditorConfig) error {
	var errs []string
	if e.AutosaveDelay < 0 {
		errs = append(errs, "editor.autosave_delay must not be negative")
	}
	if e.MaxSessions < 0 {
		errs = append(errs, fmt.Sprintf("editor.max_sessions must be >= 0, got %d", e.MaxSessions))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SHEET_ prefix
	v.SetEnvPrefix("SHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if cfg.Google.RedirectURL == "" && cfg.Server.PublicURL != "" {
		cfg.Google.RedirectURL = strings.TrimRight(cfg.Server.PublicURL, "/") + "/oauth/google/callback"
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_upload_bytes", 20<<20)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "sheet")
	v.SetDefault("database.password", "sheet")
	v.SetDefault("database.name", "sheet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.redirect_url", "")
	v.SetDefault("google.api_key", "")
	v.SetDefault("google.folder_name", "Aionia Character Sheets")
	v.SetDefault("google.config_file_name", "aionia-sheet-config.json")
	v.SetDefault("google.scopes", []string{
		"https://www.googleapis.com/auth/drive.file",
		"https://www.googleapis.com/auth/drive.appdata",
	})
	v.SetDefault("google.state_ttl", "10m")

	v.SetDefault("editor.autosave_delay", "1s")
	v.SetDefault("editor.max_sessions", 256)

	v.SetDefault("rules.path", "")
	v.SetDefault("rules.print_template", "")
}
