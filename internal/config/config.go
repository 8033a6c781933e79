package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appName = "vmusic"

// Config is the root configuration structure
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Player    PlayerConfig    `mapstructure:"player" yaml:"player"`
	Downloads DownloadsConfig `mapstructure:"downloads" yaml:"downloads"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	UI        UIConfig        `mapstructure:"ui" yaml:"ui"`
	Advanced  AdvancedConfig  `mapstructure:"advanced" yaml:"advanced"`
}

// APIConfig configures the audio search API and the token endpoint
type APIConfig struct {
	SearchURL    string        `mapstructure:"search_url" yaml:"search_url"`
	TokenURL     string        `mapstructure:"token_url" yaml:"token_url"`
	AccessToken  string        `mapstructure:"access_token" yaml:"access_token"`
	Autocomplete bool          `mapstructure:"autocomplete" yaml:"autocomplete"`
	Sort         int           `mapstructure:"sort" yaml:"sort"`
	Count        int           `mapstructure:"count" yaml:"count"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// PlayerConfig configures mpv
type PlayerConfig struct {
	Binary         string        `mapstructure:"binary" yaml:"binary"`
	Args           []string      `mapstructure:"args" yaml:"args"`
	Volume         int           `mapstructure:"volume" yaml:"volume"`
	LoadUserConfig bool          `mapstructure:"load_user_config" yaml:"load_user_config"`
	IPCTimeout     time.Duration `mapstructure:"ipc_timeout" yaml:"ipc_timeout"`
}

// DownloadsConfig configures the download manager
type DownloadsConfig struct {
	Path         string `mapstructure:"path" yaml:"path"`
	Concurrent   int    `mapstructure:"concurrent" yaml:"concurrent"`
	MinFreeSpace int64  `mapstructure:"min_free_space" yaml:"min_free_space"` // megabytes
	AutoResume   bool   `mapstructure:"auto_resume" yaml:"auto_resume"`
	MaxRetries   int    `mapstructure:"max_retries" yaml:"max_retries"`
	ByArtist     bool   `mapstructure:"by_artist" yaml:"by_artist"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path           string `mapstructure:"path" yaml:"path"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode" yaml:"wal_mode"`
	AutoVacuum     bool   `mapstructure:"auto_vacuum" yaml:"auto_vacuum"`
}

// LoggingConfig configures the application logger
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	Color      bool   `mapstructure:"color" yaml:"color"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// UIConfig configures the terminal interface
type UIConfig struct {
	HistorySize int  `mapstructure:"history_size" yaml:"history_size"`
	ShowHelp    bool `mapstructure:"show_help" yaml:"show_help"`
}

// AdvancedConfig holds rarely changed settings
type AdvancedConfig struct {
	Debug     bool            `mapstructure:"debug" yaml:"debug"`
	Clipboard ClipboardConfig `mapstructure:"clipboard" yaml:"clipboard"`
}

// ClipboardConfig lets the user override the clipboard command
type ClipboardConfig struct {
	Command string `mapstructure:"command" yaml:"command"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.search_url", "https://api.vk.com/method/audio.search")
	v.SetDefault("api.token_url", "https://vmusic.app/get_token.php")
	v.SetDefault("api.access_token", "")
	v.SetDefault("api.autocomplete", true)
	v.SetDefault("api.sort", 2)
	v.SetDefault("api.count", 300)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.user_agent", appName+"/1.0")

	v.SetDefault("player.binary", "mpv")
	v.SetDefault("player.args", []string{})
	v.SetDefault("player.volume", 100)
	v.SetDefault("player.load_user_config", false)
	v.SetDefault("player.ipc_timeout", 10*time.Second)

	v.SetDefault("downloads.path", filepath.Join(getHomeDir(), "Music", appName))
	v.SetDefault("downloads.concurrent", 2)
	v.SetDefault("downloads.min_free_space", 200)
	v.SetDefault("downloads.auto_resume", true)
	v.SetDefault("downloads.max_retries", 3)
	v.SetDefault("downloads.by_artist", false)

	v.SetDefault("database.path", filepath.Join(getDataDir(), appName, appName+".db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)
	v.SetDefault("database.auto_vacuum", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", filepath.Join(getStateDir(), appName, appName+".log"))
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	v.SetDefault("ui.history_size", 10)
	v.SetDefault("ui.show_help", true)

	v.SetDefault("advanced.debug", false)
	v.SetDefault("advanced.clipboard.command", "")
}

// Load reads the configuration from cfgFile, or from the default locations
// when cfgFile is empty. A .env file in the working directory is applied to
// the environment first so VMUSIC_* variables can live there.
func Load(cfgFile string) (*Config, *viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetConfigDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

// Validate checks values that would break the application at runtime
func (c *Config) Validate() error {
	if c.API.SearchURL == "" {
		return fmt.Errorf("api.search_url must not be empty")
	}
	if c.API.Count <= 0 {
		return fmt.Errorf("api.count must be positive, got %d", c.API.Count)
	}
	if c.Downloads.Concurrent <= 0 {
		return fmt.Errorf("downloads.concurrent must be positive, got %d", c.Downloads.Concurrent)
	}
	if c.Database.MaxConnections <= 0 {
		c.Database.MaxConnections = 1
	}
	return nil
}

// DefaultConfig returns the configuration produced by SetDefaults alone
func DefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SaveDefaultConfig writes the default configuration as YAML to path
func SaveDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// InitializeDirs creates the config, data and state directories
func InitializeDirs() error {
	dirs := []string{
		GetConfigDir(),
		filepath.Join(getDataDir(), appName),
		filepath.Join(getStateDir(), appName),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// GetConfigDir returns the directory holding config.yaml
func GetConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(getHomeDir(), ".config", appName)
}

func getDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(getHomeDir(), ".local", "share")
}

func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(getHomeDir(), ".local", "state")
}

func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
