// Package config loads the gitcove ini configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/inovacc/gitcove/internal/application"
	"gopkg.in/ini.v1"
)

const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

type ServerConfig struct {
	Host     string `ini:"host"`
	Port     int    `ini:"port"`
	GRPCPort int    `ini:"grpc_port"`
	Gops     bool   `ini:"gops"`
}

type StorageConfig struct {
	Backend string `ini:"backend"`
	Path    string `ini:"path"`
}

type RepositoriesConfig struct {
	Root string `ini:"root"`
}

// Capabilities switches whole surfaces on or off at startup.
type Capabilities struct {
	UploadPack  bool `ini:"upload_pack"`
	ReceivePack bool `ini:"receive_pack"`
	Browse      bool `ini:"browse"`
}

type LogConfig struct {
	Level  string `ini:"level"`
	Format string `ini:"format"`
}

// Config is the full server configuration.
type Config struct {
	Server       ServerConfig       `ini:"server"`
	Storage      StorageConfig      `ini:"storage"`
	Repositories RepositoriesConfig `ini:"repositories"`
	Capabilities Capabilities       `ini:"capabilities"`
	Log          LogConfig          `ini:"log"`
}

// DefaultFor returns the default configuration rooted at dir.
func DefaultFor(dir string) *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(dir, application.AppName+".db"),
		},
		Repositories: RepositoriesConfig{
			Root: filepath.Join(dir, "repositories"),
		},
		Capabilities: Capabilities{
			UploadPack:  true,
			ReceivePack: true,
			Browse:      true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Default returns the default configuration rooted at the application directory.
func Default() (*Config, error) {
	dir, err := application.GetApplicationDirectory()
	if err != nil {
		return nil, err
	}

	return DefaultFor(dir), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	return LoadInto(cfg, path)
}

// LoadInto maps the ini file at path onto cfg.
func LoadInto(cfg *Config, path string) (*Config, error) {
	if path == "" {
		return cfg, cfg.Validate()
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}

		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if err := file.MapTo(cfg); err != nil {
		return nil, fmt.Errorf("failed to map config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Save writes cfg to path, creating the parent directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := ini.Empty()
	if err := file.ReflectFrom(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}

	return nil
}

// Validate checks the values that cannot be defaulted at use sites.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendSQLite, BackendBolt:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}

	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid grpc port %d", c.Server.GRPCPort))
	}

	if strings.TrimSpace(c.Repositories.Root) == "" {
		errs = append(errs, errors.New("repositories root is required"))
	}

	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage path is required"))
	}

	return errors.Join(errs...)
}

// Handler builds the slog handler described by the [log] section.
func (l LogConfig) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: l.level()}

	if strings.EqualFold(l.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}

	return slog.NewTextHandler(w, opts)
}

func (l LogConfig) level() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
