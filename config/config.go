// Package config loads and saves the user's persistent settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	"github.com/lepinkainen/exrmatte/exr"
	"github.com/lepinkainen/exrmatte/sequence"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "EXRMATTE_CONFIG"

// Config holds the persisted settings. Command line flags take precedence.
type Config struct {
	MatteChannelName string `toml:"matte_channel_name" comment:"Output channel name for embedded mattes"`
	Compression      string `toml:"compression" comment:"none, rle, zip, zips, piz, pxr24, b44, b44a or dwaa"`
	Workers          int    `toml:"workers" comment:"Parallel workers, 0 picks a default from the CPU count"`
	ReplaceOriginals bool   `toml:"replace_originals" comment:"Swap the embedded output in for the original folders"`
	LastFolderPath   string `toml:"last_folder_path"`
	QuarantineDir    string `toml:"quarantine_dir" comment:"Where replaced originals go; empty uses the system trash"`
	OIIOTool         string `toml:"oiiotool" comment:"oiiotool binary"`
	LogLevel         string `toml:"log_level" comment:"debug, info, warn or error"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		MatteChannelName: sequence.DefaultChannelBasename,
		Compression:      string(exr.DefaultCompression),
		Workers:          0,
		ReplaceOriginals: false,
		OIIOTool:         exr.DefaultOIIOTool,
		LogLevel:         "info",
	}
}

// DefaultPath returns the config file location: $EXRMATTE_CONFIG, or
// exrmatte/config.toml in the user config directory.
func DefaultPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return expandPath(p)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, "exrmatte", "config.toml"), nil
}

// Load reads path, or the default location when path is empty. A missing
// file yields the defaults. The returned bool reports whether the file exists.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved := path
	if resolved == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, "", false, err
		}
		resolved = p
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &cfg, resolved, false, nil
		}
		return nil, "", false, fmt.Errorf("open config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, "", false, fmt.Errorf("parse config %s:%d:%d: %w", resolved, row, col, err)
		}
		return nil, "", false, fmt.Errorf("parse config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, "", false, fmt.Errorf("invalid config %s: %w", resolved, err)
	}
	return &cfg, resolved, true, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// Write to a temp file and rename so a crash never leaves half a config
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Compression = strings.ToLower(strings.TrimSpace(c.Compression))
	if c.Compression == "" {
		c.Compression = string(exr.DefaultCompression)
	}
	if strings.TrimSpace(c.MatteChannelName) == "" {
		c.MatteChannelName = sequence.DefaultChannelBasename
	}
	if strings.TrimSpace(c.OIIOTool) == "" {
		c.OIIOTool = exr.DefaultOIIOTool
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.QuarantineDir != "" {
		if expanded, err := expandPath(c.QuarantineDir); err == nil {
			c.QuarantineDir = expanded
		}
	}
}

// Validate checks every setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := exr.ParseCompression(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if err := sequence.ValidateChannelBasename(c.MatteChannelName); err != nil {
		errs = append(errs, fmt.Errorf("matte_channel_name: %w", err))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// LastFolder returns the remembered folder when it still exists, otherwise
// the current directory.
func (c *Config) LastFolder() string {
	if c.LastFolderPath != "" {
		if info, err := os.Stat(c.LastFolderPath); err == nil && info.IsDir() {
			return c.LastFolderPath
		}
	}
	return "."
}

// RememberFolder stores folder as the last used folder and saves the config.
func (c *Config) RememberFolder(path, folder string) error {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return err
	}
	if c.LastFolderPath == abs {
		return nil
	}
	c.LastFolderPath = abs
	return Save(path, c)
}

func expandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if p == "~" {
			p = home
		} else if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
			p = filepath.Join(home, p[2:])
		}
	}
	return filepath.Abs(filepath.Clean(p))
}
