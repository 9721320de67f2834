package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Network  NetworkConfig  `mapstructure:"network"`
	Workers  WorkersConfig  `mapstructure:"workers"`
	Download DownloadConfig `mapstructure:"download"`
	Player   PlayerConfig   `mapstructure:"player"`
	UI       UIConfig       `mapstructure:"ui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// ServerConfig describes the catalog site
type ServerConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Referer   string `mapstructure:"referer"`
	UserAgent string `mapstructure:"user_agent"`
}

// NetworkConfig holds request pacing and per-task timeouts
type NetworkConfig struct {
	RateLimit     float64       `mapstructure:"rate_limit"` // Requests per second to the catalog
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	DetailTimeout time.Duration `mapstructure:"detail_timeout"`
	ImageTimeout  time.Duration `mapstructure:"image_timeout"`
	VideoTimeout  time.Duration `mapstructure:"video_timeout"`
}

// WorkersConfig sizes the background worker pool
type WorkersConfig struct {
	Count int `mapstructure:"count"`
}

// DownloadConfig holds where resolved episodes are written
type DownloadConfig struct {
	Dir string `mapstructure:"dir"`
}

// PlayerConfig holds media player configuration
type PlayerConfig struct {
	Command  string   `mapstructure:"command"`
	Args     []string `mapstructure:"args"`
	Autoplay bool     `mapstructure:"autoplay"` // Open the local playlist once resolved
}

// UIConfig holds UI configuration
type UIConfig struct {
	Thumbnails   bool `mapstructure:"thumbnails"`
	ThumbWidth   int  `mapstructure:"thumb_width"`  // Terminal cells
	ThumbHeight  int  `mapstructure:"thumb_height"` // Terminal rows (2 pixels each)
	PosterWidth  int  `mapstructure:"poster_width"`
	PosterHeight int  `mapstructure:"poster_height"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// CacheConfig holds the local cache location; empty means memory-only
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:   "https://anilife.live",
			Referer:   "https://anilife.live/",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		},
		Network: NetworkConfig{
			RateLimit:     4,
			SearchTimeout: 15 * time.Second,
			DetailTimeout: 15 * time.Second,
			ImageTimeout:  15 * time.Second,
			VideoTimeout:  10 * time.Minute,
		},
		Workers: WorkersConfig{
			Count: 8,
		},
		Download: DownloadConfig{
			Dir: defaultDownloadPath(),
		},
		Player: PlayerConfig{
			Command: "",
			Args:    []string{},
		},
		UI: UIConfig{
			Thumbnails:   true,
			ThumbWidth:   6,
			ThumbHeight:  3,
			PosterWidth:  28,
			PosterHeight: 20,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
		Cache: CacheConfig{
			Dir: defaultCachePath(),
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "anikino", "anikino.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "anikino", "anikino.log")
	}
}

// defaultConfigPath returns the default config file directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "anikino")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "anikino")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "anikino", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "anikino", "cache")
	}
}

// defaultDownloadPath returns where episodes are saved by default
func defaultDownloadPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Downloads", "anikino")
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New(), defaultConfigPath(), ".")
}

// loadConfig reads config.yaml from the given directories into the defaults
func loadConfig(v *viper.Viper, paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides (ANIKINO_WORKERS_COUNT, ...)
	v.SetEnvPrefix("ANIKINO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvKeys registers every key so AutomaticEnv overrides reach Unmarshal
// even when the key is absent from the config file.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.base_url", "server.referer", "server.user_agent",
		"network.rate_limit", "network.search_timeout", "network.detail_timeout",
		"network.image_timeout", "network.video_timeout",
		"workers.count",
		"download.dir",
		"player.command", "player.args", "player.autoplay",
		"ui.thumbnails", "ui.thumb_width", "ui.thumb_height",
		"ui.poster_width", "ui.poster_height",
		"logging.file", "logging.level",
		"cache.dir",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate rejects values the rest of the program cannot work with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Workers.Count < 0 {
		return fmt.Errorf("workers.count must not be negative, got %d", c.Workers.Count)
	}
	if c.Network.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit must not be negative, got %v", c.Network.RateLimit)
	}
	return nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	return saveConfig(cfg, defaultConfigPath())
}

func saveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()

	// Set fields individually to ensure correct key names (snake_case)
	v.Set("server.base_url", cfg.Server.BaseURL)
	v.Set("server.referer", cfg.Server.Referer)
	v.Set("server.user_agent", cfg.Server.UserAgent)

	v.Set("network.rate_limit", cfg.Network.RateLimit)
	v.Set("network.search_timeout", cfg.Network.SearchTimeout.String())
	v.Set("network.detail_timeout", cfg.Network.DetailTimeout.String())
	v.Set("network.image_timeout", cfg.Network.ImageTimeout.String())
	v.Set("network.video_timeout", cfg.Network.VideoTimeout.String())

	v.Set("workers.count", cfg.Workers.Count)
	v.Set("download.dir", cfg.Download.Dir)

	v.Set("player.command", cfg.Player.Command)
	v.Set("player.args", cfg.Player.Args)
	v.Set("player.autoplay", cfg.Player.Autoplay)

	v.Set("ui.thumbnails", cfg.UI.Thumbnails)
	v.Set("ui.thumb_width", cfg.UI.ThumbWidth)
	v.Set("ui.thumb_height", cfg.UI.ThumbHeight)
	v.Set("ui.poster_width", cfg.UI.PosterWidth)
	v.Set("ui.poster_height", cfg.UI.PosterHeight)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("cache.dir", cfg.Cache.Dir)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
