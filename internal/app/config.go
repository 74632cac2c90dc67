package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/stupside/mirage/internal/fingerprint"
)

// Config holds all application configuration.
type Config struct {
	Browser     BrowserConfig      `koanf:"browser" validate:"required"`
	Engine      EngineConfig       `koanf:"engine" validate:"required"`
	Store       StoreConfig        `koanf:"store" validate:"required"`
	Fingerprint fingerprint.Config `koanf:"fingerprint"`
}

// BrowserConfig holds settings for the controlled Chrome instance.
type BrowserConfig struct {
	Timeout    time.Duration `koanf:"timeout" validate:"required"`
	Headless   bool          `koanf:"headless"`
	NoSandbox  bool          `koanf:"no_sandbox"`
	ChromePath string        `koanf:"chrome_path"`
}

// EngineConfig holds fingerprint engine settings.
type EngineConfig struct {
	Enabled bool `koanf:"enabled"`
	// Whitelist lists registrable domains left untouched.
	Whitelist []string `koanf:"whitelist" validate:"dive,hostname_rfc1123"`
	// BrowserSeed and GlobalSeed override the stored seeds when non-zero.
	BrowserSeed      uint64        `koanf:"browser_seed"`
	GlobalSeed       uint64        `koanf:"global_seed"`
	NotifyDebounce   time.Duration `koanf:"notify_debounce" validate:"required"`
	Binding          string        `koanf:"binding" validate:"required"`
	CDPOverrides     bool          `koanf:"cdp_overrides"`
	TrackNavigations bool          `koanf:"track_navigations"`
	Concurrency      int           `koanf:"concurrency" validate:"min=1"`
}

// StoreConfig holds the seed and report database location.
type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// Defaults returns the configuration used for keys a file leaves out.
func Defaults() map[string]any {
	return map[string]any{
		"browser.timeout":          30 * time.Second,
		"browser.headless":         true,
		"engine.enabled":           true,
		"engine.notify_debounce":   500 * time.Millisecond,
		"engine.binding":           "__mirage_notify",
		"engine.cdp_overrides":     true,
		"engine.track_navigations": true,
		"engine.concurrency":       2,
		"store.path":               filepath.Join(xdg.DataHome, "mirage", "mirage.db"),
	}
}

// Load reads and validates configuration. An empty path loads the defaults
// alone.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := cfg.Fingerprint.Validate(); err != nil {
		return nil, fmt.Errorf("validating fingerprint: %w", err)
	}

	return &cfg, nil
}

// ConfigFrom extracts the Config from the CLI command metadata.
func ConfigFrom(cmd *cli.Command) (*Config, error) {
	v, ok := cmd.Root().Metadata["config"]
	if !ok {
		return nil, errors.New("config not found in command metadata")
	}
	cfg, ok := v.(*Config)
	if !ok {
		return nil, fmt.Errorf("config has unexpected type %T", v)
	}
	return cfg, nil
}
