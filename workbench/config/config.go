package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pushchain/piet/workbench/constant"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. PIET_RPC_URL.
	EnvPrefix = "PIET"

	// DefaultRPCURL is used when no rpc url is configured.
	DefaultRPCURL = "http://localhost:8545"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	// Set defaults for the connection
	if cfg.ConnectionMode == "" {
		cfg.ConnectionMode = ModeRPC
	}
	switch cfg.ConnectionMode {
	case ModeNone, ModeInjected, ModeRPC, ModeWebsocket, ModeLightClient:
	default:
		return fmt.Errorf("connection mode must be one of none, injected, rpc, websocket-rpc, light-client")
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = DefaultRPCURL
	}
	if cfg.WebsocketURL != "" && !strings.HasPrefix(cfg.WebsocketURL, "ws://") && !strings.HasPrefix(cfg.WebsocketURL, "wss://") {
		return fmt.Errorf("websocket url must use ws:// or wss://")
	}
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative")
	}

	// Set defaults for transaction submission
	if cfg.ReceiptPollIntervalMs == 0 {
		cfg.ReceiptPollIntervalMs = 1000
	}
	if cfg.ReceiptTimeoutSeconds == 0 {
		cfg.ReceiptTimeoutSeconds = 300
	}

	// Set defaults for startup config
	if cfg.InitialConnectRetries == 0 {
		cfg.InitialConnectRetries = 3
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8080
	}

	return nil
}

// Save writes the given config to <basePath>/config/pietd_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads and returns the config from <basePath>/config/pietd_config.json.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

// LoadWithEnv loads the config file under basePath, falling back to the
// embedded defaults when none exists, and overlays PIET_* environment
// variables on top.
func LoadWithEnv(basePath string) (Config, error) {
	cfg, err := Load(basePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
		def, derr := LoadDefaultConfig()
		if derr != nil {
			return Config{}, derr
		}
		cfg = *def
	}
	if cfg.NodeHome == "" {
		cfg.NodeHome = basePath
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	// Viper only resolves env vars for keys it knows, so seed every
	// field of the file config as a default.
	var fields map[string]any
	data, err := json.Marshal(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for key, value := range fields {
		v.SetDefault(key, value)
	}

	var out Config
	if err := v.Unmarshal(&out); err != nil {
		return Config{}, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := validateConfig(&out); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return out, nil
}
