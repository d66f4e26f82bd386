package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	DefaultPort       = 8888
	TokenCacheFile    = ".spotify_token_cache.json"
	CredentialsDBFile = "credentials.db"
	appDirName        = "spx"
	clientKeyLen      = 32
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Auth        AuthConfig        `toml:"auth"`
	API         APIConfig         `toml:"api"`
	Database    DatabaseConfig    `toml:"database"`
	Paths       PathsConfig       `toml:"paths"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Port         int    `toml:"port"`
}

// AuthConfig bounds the blocking waits of the authorization flow.
type AuthConfig struct {
	CallbackTimeout Duration `toml:"callback_timeout"`
	RefreshTimeout  Duration `toml:"refresh_timeout"`
	OpenBrowser     bool     `toml:"open_browser"`
}

// APIConfig contains Web API client settings.
type APIConfig struct {
	BaseURL           string   `toml:"base_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	HTTPTimeout       Duration `toml:"http_timeout"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PathsConfig overrides where cache files are written.
type PathsConfig struct {
	ConfigDir string `toml:"config_dir"`
}

// Duration is a [time.Duration] that reads and writes TOML strings such as "2m".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = v
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values absent from the file keep the defaults of [DefaultConfig].
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

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the Spotify client keys and numeric settings.
func (c *Config) Validate() error {
	if err := ValidateClientKey(c.Credentials.Spotify.ClientID); err != nil {
		return fmt.Errorf("%w: client_id: %v", ErrInvalidConfig, err)
	}
	if err := ValidateClientKey(c.Credentials.Spotify.ClientSecret); err != nil {
		return fmt.Errorf("%w: client_secret: %v", ErrInvalidConfig, err)
	}
	if p := c.Credentials.Spotify.Port; p < 0 || p > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, p)
	}
	if c.API.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Port returns the callback port, defaulting to [DefaultPort].
func (c *Config) Port() int {
	if c.Credentials.Spotify.Port == 0 {
		return DefaultPort
	}
	return c.Credentials.Spotify.Port
}

// RedirectURI returns the loopback redirect registered with the Spotify application.
func (c *Config) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", c.Port())
}

// ConfigDir returns the configured cache directory, or the user configuration directory.
func (c *Config) ConfigDir() (string, error) {
	if c.Paths.ConfigDir != "" {
		return c.Paths.ConfigDir, nil
	}
	return UserConfigDir()
}

// TokenCachePath returns the path of the cached access token.
func (c *Config) TokenCachePath() (string, error) {
	dir, err := c.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, TokenCacheFile), nil
}

// DatabasePath returns the credential database path, relative paths resolving against the config directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path == ":memory:" || filepath.IsAbs(c.Database.Path) {
		return c.Database.Path, nil
	}

	dir, err := c.ConfigDir()
	if err != nil {
		return "", err
	}

	name := c.Database.Path
	if name == "" {
		name = CredentialsDBFile
	}
	return filepath.Join(dir, name), nil
}

// UserConfigDir returns the per-user application directory ($XDG_CONFIG_HOME/spx or its platform equivalent).
func UserConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: could not determine configuration directory: %v", ErrMissingConfig, err)
	}
	return filepath.Join(base, appDirName), nil
}

// ValidateClientKey checks that key is a 32 character hex string, the format of Spotify client ids and secrets.
func ValidateClientKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	if len(key) != clientKeyLen {
		return fmt.Errorf("invalid length: %d (must be %d)", len(key), clientKeyLen)
	}

	for _, c := range key {
		if !isHexDigit(c) {
			return fmt.Errorf("invalid character %q found (must be hex digits only)", c)
		}
	}

	return nil
}

func isHexDigit(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
