package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents ~/.courier/config.toml.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Store    StoreConfig    `toml:"store"`
	Sync     SyncConfig     `toml:"sync"`
}

// ProviderConfig holds remote provider credentials and the account's own
// addresses. OwnAddresses is read here once per run and passed into the
// engine explicitly; nothing else in the codebase reads it.
type ProviderConfig struct {
	BaseURL      string   `toml:"base_url"`
	AccountSID   string   `toml:"account_sid"`
	AuthToken    string   `toml:"auth_token"`
	OwnAddresses []string `toml:"own_addresses"`
	PageSizeMax  int      `toml:"page_size_max"`
}

// StoreConfig holds local store settings.
type StoreConfig struct {
	Path string `toml:"path"`
}

// SyncConfig holds default sync limits.
type SyncConfig struct {
	ConversationLimit int `toml:"conversation_limit"`
	BulkLimit         int `toml:"bulk_limit"`
}

// Load reads config from the given path and applies defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks the settings a sync run cannot do without.
func (c *Config) Validate() error {
	if c.Provider.AccountSID == "" {
		return fmt.Errorf("provider.account_sid is required")
	}
	if c.Provider.AuthToken == "" {
		return fmt.Errorf("provider.auth_token is required")
	}
	if len(c.Provider.OwnAddresses) == 0 {
		return fmt.Errorf("provider.own_addresses must list at least one address")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Provider.PageSizeMax <= 0 {
		c.Provider.PageSizeMax = 1000
	}
	if c.Sync.ConversationLimit <= 0 {
		c.Sync.ConversationLimit = 200
	}
	if c.Sync.BulkLimit <= 0 {
		c.Sync.BulkLimit = 1000
	}
}
