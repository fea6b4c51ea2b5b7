package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/podx/internal/models"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	App         AppConfig         `toml:"app"`
	API         APIConfig         `toml:"api"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and, for the CLI, the last issued token.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"` // loopback callback used by the CLI
	Scopes       []string `toml:"scopes"`
	AccessToken  string   `toml:"access_token,omitempty"`
	RefreshToken string   `toml:"refresh_token,omitempty"`
	ExpiresAt    int64    `toml:"expires_at,omitempty"`
}

// AppConfig holds web application settings.
type AppConfig struct {
	URI           string `toml:"uri"`            // public base URI, the web callback is URI + "/callback"
	Secret        string `toml:"secret"`         // signs session cookies and seals stored tokens
	PageSize      int    `toml:"page_size"`      // items requested per upstream page
	MaxPages      int    `toml:"max_pages"`      // upper bound on pages per collection
	RefreshWindow int    `toml:"refresh_window"` // seconds before expiry at which tokens are refreshed
	LogLevel      string `toml:"log_level"`
}

// APIConfig controls the upstream HTTP client.
type APIConfig struct {
	BaseURL    string  `toml:"base_url"`
	AuthURL    string  `toml:"auth_url"`
	TokenURL   string  `toml:"token_url"`
	Timeout    string  `toml:"timeout"`
	RateLimit  float64 `toml:"rate_limit"` // requests per second
	MaxRetries int     `toml:"max_retries"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host"`
	Port      int     `toml:"port"`
	RateLimit float64 `toml:"rate_limit"` // inbound requests per second per client, 0 disables
	Burst     int     `toml:"burst"`
}

// SessionConfig selects the session backend and cookie parameters.
type SessionConfig struct {
	Backend       string `toml:"backend"` // memory, sqlite, redis, postgres
	CookieName    string `toml:"cookie_name"`
	TTL           string `toml:"ttl"`
	PruneInterval string `toml:"prune_interval"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RedisConfig contains redis connection settings for the redis session backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// PostgresConfig contains the connection string for the postgres session backend.
type PostgresConfig struct {
	DSN string `toml:"dsn"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults from the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads the config at path when it exists and falls back to [DefaultConfig] otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes the config as TOML to path, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// LoadEnvFiles loads KEY=VALUE pairs from the given dotenv files into the process environment.
//
// Missing files are skipped; variables already set in the environment win.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString(&c.Credentials.Spotify.ClientID, "SPOTIPY_CLIENT_ID")
	setString(&c.Credentials.Spotify.ClientSecret, "SPOTIPY_CLIENT_SECRET")
	setString(&c.App.URI, "APP_URI")
	setString(&c.App.Secret, "SECRET")
	setString(&c.App.LogLevel, "PODX_LOG_LEVEL")
	setInt(&c.App.PageSize, "PODX_PAGE_SIZE")
	setString(&c.Server.Host, "PODX_HOST")
	setInt(&c.Server.Port, "PODX_PORT")
	setString(&c.Session.Backend, "PODX_SESSION_BACKEND")
	setString(&c.Database.Path, "PODX_DATABASE_PATH")
	setString(&c.Redis.Addr, "PODX_REDIS_ADDR")
	setString(&c.Redis.Password, "PODX_REDIS_PASSWORD")
	setString(&c.Postgres.DSN, "PODX_POSTGRES_DSN")

	c.App.URI = strings.TrimRight(c.App.URI, "/")
}

// Validate checks the values the web application cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Credentials.Spotify.ClientID == "" {
		missing = append(missing, "client id (SPOTIPY_CLIENT_ID)")
	}
	if c.Credentials.Spotify.ClientSecret == "" {
		missing = append(missing, "client secret (SPOTIPY_CLIENT_SECRET)")
	}
	if c.App.URI == "" {
		missing = append(missing, "app uri (APP_URI)")
	}
	if c.App.Secret == "" {
		missing = append(missing, "session secret (SECRET)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	if c.App.PageSize < 1 || c.App.PageSize > 50 {
		return fmt.Errorf("%w: page_size must be between 1 and 50, got %d", ErrInvalidConfig, c.App.PageSize)
	}

	switch c.Session.Backend {
	case "memory", "sqlite", "redis", "postgres":
	default:
		return fmt.Errorf("%w: unknown session backend %q", ErrInvalidConfig, c.Session.Backend)
	}

	if c.Session.Backend == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("%w: postgres session backend requires postgres.dsn", ErrInvalidConfig)
	}

	for _, d := range []string{c.Session.TTL, c.Session.PruneInterval, c.API.Timeout} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	return nil
}

// WebRedirectURL is the OAuth callback registered for the web application.
func (c *Config) WebRedirectURL() string {
	return c.App.URI + "/callback"
}

// SecureCookies reports whether session cookies should carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.App.URI, "https://")
}

// RefreshWindow returns the token refresh window as a duration.
func (c *Config) RefreshWindow() time.Duration {
	return time.Duration(c.App.RefreshWindow) * time.Second
}

// SessionTTL returns the configured session lifetime, defaulting to 30 days.
func (c *Config) SessionTTL() time.Duration {
	return parseDurationOr(c.Session.TTL, 30*24*time.Hour)
}

// PruneInterval returns how often expired sessions are removed, defaulting to one hour.
func (c *Config) PruneInterval() time.Duration {
	return parseDurationOr(c.Session.PruneInterval, time.Hour)
}

// APITimeout returns the upstream HTTP client timeout, defaulting to 15 seconds.
func (c *Config) APITimeout() time.Duration {
	return parseDurationOr(c.API.Timeout, 15*time.Second)
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Map returns the credentials in the form accepted by the Spotify service constructor.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token returns the stored CLI token, or nil when none has been saved.
func (s SpotifyConfig) Token() *models.TokenRecord {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &models.TokenRecord{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Update stores rec as the CLI token. A nil record clears it.
func (s *SpotifyConfig) Update(rec *models.TokenRecord) {
	if rec == nil {
		s.AccessToken, s.RefreshToken, s.ExpiresAt = "", "", 0
		return
	}
	s.AccessToken = rec.AccessToken
	s.RefreshToken = rec.RefreshToken
	s.ExpiresAt = rec.ExpiresAt
}
