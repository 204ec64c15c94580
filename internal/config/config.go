// Package config loads vault configuration from a config file,
// environment variables, and defaults, in that order of precedence
// (highest last-listed wins within viper's usual rules: explicit file
// values beat defaults, environment variables beat both).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full runtime configuration for the vault, the remote
// client, the sync coordinator, and the daemon.
type Config struct {
	// RemoteURL is the base URL of the remote note store.
	RemoteURL string `mapstructure:"remote_url"`

	// Token is the bearer token presented on every remote request.
	Token string `mapstructure:"token"`

	// OwnerID scopes the vault to one account.
	OwnerID string `mapstructure:"owner_id"`

	// VaultDir is where the local database, lock files, and daemon log
	// live. Defaults to ~/.shynote.
	VaultDir string `mapstructure:"vault_dir"`

	// SyncInterval is the daemon's periodic cycle interval.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// DebounceDelay is how long after a local edit a cycle is scheduled.
	DebounceDelay time.Duration `mapstructure:"debounce_delay"`

	// BatchSize is the note push batch width.
	BatchSize int `mapstructure:"batch_size"`

	// RequestTimeout bounds each remote HTTP request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// RetryBaseDelay is the linear backoff unit between retries.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`

	// LockName names the cross-context sync lock file.
	LockName string `mapstructure:"lock_name"`

	// DashboardPort is where the WebSocket dashboard listens.
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogFile is the daemon's rotating log destination. Empty means
	// stderr.
	LogFile string `mapstructure:"log_file"`

	// DisableLock turns off cross-context leader election. Only safe when
	// a single process ever touches the vault.
	DisableLock bool `mapstructure:"disable_lock"`
}

// Load reads configuration from the given file (optional), the
// environment (SHYNOTE_ prefix), and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SHYNOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".shynote"))
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			// No config file is fine; env and defaults carry it.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.VaultDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.VaultDir = filepath.Join(home, ".shynote")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for remote sync.
// Purely local operation (note CRUD without a remote) only needs the
// vault directory and owner id.
func (c *Config) Validate(remote bool) error {
	if c.OwnerID == "" {
		return fmt.Errorf("owner_id is required (set SHYNOTE_OWNER_ID or owner_id in config)")
	}
	if !remote {
		return nil
	}
	if c.RemoteURL == "" {
		return fmt.Errorf("remote_url is required for sync")
	}
	if c.Token == "" {
		return fmt.Errorf("token is required for sync")
	}
	return nil
}

// VaultPath returns the path of the vault database file.
func (c *Config) VaultPath() string {
	return filepath.Join(c.VaultDir, "vault.db")
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default registered so AutomaticEnv picks up
	// env-only values during Unmarshal.
	v.SetDefault("remote_url", "")
	v.SetDefault("token", "")
	v.SetDefault("owner_id", "")
	v.SetDefault("vault_dir", "")
	v.SetDefault("log_file", "")
	v.SetDefault("disable_lock", false)
	v.SetDefault("sync_interval", 60*time.Second)
	v.SetDefault("debounce_delay", time.Second)
	v.SetDefault("batch_size", 10)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("retry_base_delay", time.Second)
	v.SetDefault("lock_name", "sync")
	v.SetDefault("dashboard_port", 8471)
}
