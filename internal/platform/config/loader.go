package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but the file is missing or invalid, loading fails.
	ConfigPath string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// Pointer fields distinguish "flag not passed" from "flag passed as zero value".
type FlagOverrides struct {
	ListenAddr              *string
	StoreDriver             *string
	StoreDataDir            *string
	EventBusDriver          *string
	EventBusValkeyAddr      *string
	PeerEventMaxWaitSeconds *int
	LoggingLevel            *string
}

// fileConfig mirrors Config for TOML decoding.
type fileConfig struct {
	ListenAddr              string      `toml:"listen_addr"`
	Store                   StoreConfig `toml:"store"`
	EventBus                EventBusConfig `toml:"event_bus"`
	PeerEventMaxWaitSeconds int         `toml:"peer_event_max_wait_seconds"`
	Logging                 LoggingConfig `toml:"logging"`
}

// Load loads configuration with the following precedence (lowest to highest):
//  1. Built-in defaults (DefaultConfig)
//  2. TOML config file, if ConfigPath is set
//  3. CLI flag overrides
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid
// TOML, Load returns an error (fail fast). Unknown/undecoded TOML keys
// produce a warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultConfig()

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}

		var fc fileConfig
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}

		overlayFileConfig(cfg, &fc)
	}

	overlayFlags(cfg, opts.FlagOverrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.Store.Driver != "" {
		cfg.Store.Driver = fc.Store.Driver
	}
	if fc.Store.DataDir != "" {
		cfg.Store.DataDir = fc.Store.DataDir
	}
	if fc.EventBus.Driver != "" {
		cfg.EventBus.Driver = fc.EventBus.Driver
	}
	if fc.EventBus.Valkey.Addr != "" {
		cfg.EventBus.Valkey.Addr = fc.EventBus.Valkey.Addr
	}
	if fc.EventBus.Valkey.Password != "" {
		cfg.EventBus.Valkey.Password = fc.EventBus.Valkey.Password
	}
	if fc.EventBus.Valkey.DB != 0 {
		cfg.EventBus.Valkey.DB = fc.EventBus.Valkey.DB
	}
	if fc.PeerEventMaxWaitSeconds != 0 {
		cfg.PeerEventMaxWaitSeconds = fc.PeerEventMaxWaitSeconds
	}
	if fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}
}

func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.StoreDataDir != nil && *f.StoreDataDir != "" {
		cfg.Store.DataDir = *f.StoreDataDir
	}
	if f.EventBusDriver != nil && *f.EventBusDriver != "" {
		cfg.EventBus.Driver = *f.EventBusDriver
	}
	if f.EventBusValkeyAddr != nil && *f.EventBusValkeyAddr != "" {
		cfg.EventBus.Valkey.Addr = *f.EventBusValkeyAddr
	}
	if f.PeerEventMaxWaitSeconds != nil && *f.PeerEventMaxWaitSeconds != 0 {
		cfg.PeerEventMaxWaitSeconds = *f.PeerEventMaxWaitSeconds
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
}

func validate(cfg *Config) error {
	switch cfg.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory, sqlite", cfg.Store.Driver)
	}

	switch cfg.EventBus.Driver {
	case "memory", "valkey":
	default:
		return fmt.Errorf("invalid event_bus.driver %q: must be one of memory, valkey", cfg.EventBus.Driver)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of debug, info, warn, error", cfg.Logging.Level)
	}

	if cfg.PeerEventMaxWaitSeconds <= 0 {
		return fmt.Errorf("peer_event_max_wait_seconds must be positive, got %d", cfg.PeerEventMaxWaitSeconds)
	}

	return nil
}
