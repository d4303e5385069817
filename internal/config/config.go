package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mmcdole/mangashelf/internal/domain"
	"github.com/spf13/viper"
)

// DefaultRemoteURL is the catalog fetched when none is configured
const DefaultRemoteURL = "https://www.jsonkeeper.com/b/KEJO"

// Config holds all application configuration
type Config struct {
	Remote  RemoteConfig  `mapstructure:"remote"`
	Store   StoreConfig   `mapstructure:"store"`
	Browse  BrowseConfig  `mapstructure:"browse"`
	Viewer  ViewerConfig  `mapstructure:"viewer"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RemoteConfig holds catalog endpoint configuration
type RemoteConfig struct {
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MinInterval time.Duration `mapstructure:"min_interval"` // Minimum spacing between fetches
	UserAgent   string        `mapstructure:"user_agent"`
}

// StoreConfig holds local store configuration
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "bolt" or "sqlite"
	Path   string `mapstructure:"path"`
}

// BrowseConfig holds browser configuration
type BrowseConfig struct {
	PageSize         int    `mapstructure:"page_size"`
	PrefetchDistance int    `mapstructure:"prefetch_distance"`
	DefaultSort      string `mapstructure:"default_sort"`
}

// ViewerConfig selects the program that opens cover images
type ViewerConfig struct {
	Command string   `mapstructure:"command"` // Empty for auto-detection
	Args    []string `mapstructure:"args"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			URL:         DefaultRemoteURL,
			Timeout:     30 * time.Second,
			MinInterval: 2 * time.Second,
			UserAgent:   "MangaShelf/1.0",
		},
		Store: StoreConfig{
			Driver: "bolt",
			Path:   defaultCachePath(),
		},
		Browse: BrowseConfig{
			PageSize:         20,
			PrefetchDistance: 3,
			DefaultSort:      domain.SortYearAsc.String(),
		},
		Viewer: ViewerConfig{
			Args: []string{},
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "mangashelf", "mangashelf.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "mangashelf", "mangashelf.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "mangashelf")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "mangashelf")
	}
}

// defaultCachePath returns the default cache directory for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "mangashelf", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "mangashelf", "cache")
	}
}

// LoadConfig loads configuration from the default locations and environment
func LoadConfig() (*Config, error) {
	return Load(defaultConfigPath(), ".")
}

// Load reads config.yaml from the first of dirs that has one, then applies
// MANGASHELF_* environment overrides (e.g. MANGASHELF_REMOTE_URL).
func Load(dirs ...string) (*Config, error) {
	v := newViper()
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Environment variable overrides
	v.SetEnvPrefix("MANGASHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults register every key so env overrides reach Unmarshal
	setValues(v.SetDefault, DefaultConfig())
	return v
}

func setValues(set func(key string, value any), cfg *Config) {
	set("remote.url", cfg.Remote.URL)
	set("remote.timeout", cfg.Remote.Timeout.String())
	set("remote.min_interval", cfg.Remote.MinInterval.String())
	set("remote.user_agent", cfg.Remote.UserAgent)

	set("store.driver", cfg.Store.Driver)
	set("store.path", cfg.Store.Path)

	set("browse.page_size", cfg.Browse.PageSize)
	set("browse.prefetch_distance", cfg.Browse.PrefetchDistance)
	set("browse.default_sort", cfg.Browse.DefaultSort)

	set("viewer.command", cfg.Viewer.Command)
	set("viewer.args", cfg.Viewer.Args)

	set("logging.file", cfg.Logging.File)
	set("logging.level", cfg.Logging.Level)
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Remote.URL) == "" {
		return errors.New("remote.url must be set")
	}
	switch c.Store.Driver {
	case "bolt", "sqlite":
	default:
		return fmt.Errorf("store.driver must be bolt or sqlite, got %q", c.Store.Driver)
	}
	if c.Browse.PageSize <= 0 {
		return fmt.Errorf("browse.page_size must be positive, got %d", c.Browse.PageSize)
	}
	if c.Browse.PrefetchDistance < 0 {
		return fmt.Errorf("browse.prefetch_distance must not be negative, got %d", c.Browse.PrefetchDistance)
	}
	if _, err := domain.ParseSortType(c.Browse.DefaultSort); err != nil {
		return fmt.Errorf("browse.default_sort: %w", err)
	}
	return nil
}

// Sort returns the configured initial order.
func (b BrowseConfig) Sort() domain.SortType {
	s, _ := domain.ParseSortType(b.DefaultSort)
	return s
}

// SaveConfig saves the configuration to the default location
func SaveConfig(cfg *Config) error {
	return SaveConfigTo(cfg, defaultConfigPath())
}

// SaveConfigTo writes cfg as config.yaml under dir.
func SaveConfigTo(cfg *Config, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setValues(v.Set, cfg)

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ClearCache removes all cached catalog data under the configured store path
func (c *Config) ClearCache() error {
	if err := os.RemoveAll(c.Store.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
