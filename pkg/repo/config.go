package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio"
	"github.com/klauspost/compress/zlib"
)

// DefaultAuthor is recorded on commits when no [user] name is configured.
// There is no identity subsystem beyond this setting.
const DefaultAuthor = "user"

// Config stores repository-local settings read from .snap/config.toml.
type Config struct {
	User   UserConfig   `toml:"user"`
	Core   CoreConfig   `toml:"core"`
	Commit CommitConfig `toml:"commit"`
	Log    LogConfig    `toml:"log"`
}

type UserConfig struct {
	Name string `toml:"name"`
}

type CoreConfig struct {
	// Editor overrides $VISUAL/$EDITOR for commit messages.
	Editor string `toml:"editor"`
	// Compression is the zlib level for new objects (-2..9).
	Compression int `toml:"compression"`
}

type CommitConfig struct {
	// SigningKey is an SSH private key path used when signing commits.
	SigningKey string `toml:"signingkey"`
	Sign       bool   `toml:"sign"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the settings written by Init.
func DefaultConfig() *Config {
	return &Config{
		User: UserConfig{Name: DefaultAuthor},
		Core: CoreConfig{Compression: zlib.DefaultCompression},
		Log:  LogConfig{Level: "warn"},
	}
}

// Author returns the configured author name, or DefaultAuthor.
func (c *Config) Author() string {
	if c == nil || c.User.Name == "" {
		return DefaultAuthor
	}
	return c.User.Name
}

func configPath(snapDir string) string {
	return filepath.Join(snapDir, "config.toml")
}

// loadConfig reads config.toml from snapDir. Keys missing from the file keep
// their DefaultConfig values; a missing file yields DefaultConfig.
func loadConfig(snapDir string) (*Config, error) {
	cfg := DefaultConfig()
	_, err := toml.DecodeFile(configPath(snapDir), cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// ReadConfig re-reads .snap/config.toml from disk.
func (r *Repo) ReadConfig() (*Config, error) {
	return loadConfig(r.SnapDir)
}

// WriteConfig atomically writes .snap/config.toml and makes it the active
// configuration of r.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := writeConfig(r.SnapDir, cfg); err != nil {
		return err
	}
	r.Config = cfg
	return nil
}

func writeConfig(snapDir string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: marshal: %w", err)
	}
	if err := renameio.WriteFile(configPath(snapDir), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
