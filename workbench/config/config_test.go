package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		name        string
		config      *Config
		expectError bool
		errorMsg    string
		validate    func(t *testing.T, cfg *Config)
	}{
		{
			name: "Valid config with all fields",
			config: &Config{
				LogLevel:              2,
				LogFormat:             "json",
				ConnectionMode:        ModeWebsocket,
				RPCURL:                "http://127.0.0.1:7545",
				WebsocketURL:          "ws://127.0.0.1:7546",
				ReceiptPollIntervalMs: 250,
				QueryServerPort:       9000,
			},
			expectError: false,
		},
		{
			name: "Invalid log level (too high)",
			config: &Config{
				LogLevel:  6,
				LogFormat: "json",
			},
			expectError: true,
			errorMsg:    "log level must be between 0 and 5",
		},
		{
			name: "Invalid log format",
			config: &Config{
				LogLevel:  2,
				LogFormat: "xml",
			},
			expectError: true,
			errorMsg:    "log format must be 'json' or 'console'",
		},
		{
			name: "Unknown connection mode",
			config: &Config{
				LogFormat:      "json",
				ConnectionMode: "ipc",
			},
			expectError: true,
			errorMsg:    "connection mode must be one of",
		},
		{
			name: "Websocket url with http scheme",
			config: &Config{
				LogFormat:    "json",
				WebsocketURL: "http://localhost:8546",
			},
			expectError: true,
			errorMsg:    "websocket url must use ws:// or wss://",
		},
		{
			name: "Config with defaults applied",
			config: &Config{
				LogLevel:  1,
				LogFormat: "console",
			},
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ModeRPC, cfg.ConnectionMode)
				assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
				assert.Equal(t, time.Second, cfg.ReceiptPollInterval())
				assert.Equal(t, 5*time.Minute, cfg.ReceiptTimeout())
				assert.Equal(t, 3, cfg.InitialConnectRetries)
				assert.Equal(t, 8080, cfg.QueryServerPort)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateConfig(tc.config)

			if tc.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorMsg)
				return
			}
			require.NoError(t, err)
			if tc.validate != nil {
				tc.validate(t, tc.config)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		LogLevel:       0,
		LogFormat:      "json",
		ConnectionMode: ModeRPC,
		RPCURL:         "http://10.0.0.5:8545",
	}

	require.NoError(t, Save(cfg, dir))
	_, err := os.Stat(filepath.Join(dir, "config", "pietd_config.json"))
	require.NoError(t, err)

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8545", loaded.RPCURL)
	assert.Equal(t, 8080, loaded.QueryServerPort)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, ModeRPC, cfg.ConnectionMode)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, 1000, cfg.ReceiptPollIntervalMs)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadWithEnv(t *testing.T) {
	t.Run("defaults when no file exists", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := LoadWithEnv(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, cfg.NodeHome)
		assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
	})

	t.Run("environment overrides file values", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, Save(&Config{LogFormat: "json", RPCURL: "http://file:8545"}, dir))

		t.Setenv("PIET_RPC_URL", "http://env:8545")
		t.Setenv("PIET_QUERY_SERVER_PORT", "9191")
		t.Setenv("PIET_CONNECTION_MODE", "none")

		cfg, err := LoadWithEnv(dir)
		require.NoError(t, err)
		assert.Equal(t, "http://env:8545", cfg.RPCURL)
		assert.Equal(t, 9191, cfg.QueryServerPort)
		assert.Equal(t, ModeNone, cfg.ConnectionMode)
		assert.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("invalid override is rejected", func(t *testing.T) {
		t.Setenv("PIET_LOG_FORMAT", "xml")
		_, err := LoadWithEnv(t.TempDir())
		require.Error(t, err)
	})
}

func TestEndpointFor(t *testing.T) {
	cfg := Config{
		RPCURL:              "http://a",
		WebsocketURL:        "ws://b",
		LightClientURL:      "http://c",
		InjectedProviderURL: "http://d",
	}
	assert.Equal(t, "http://a", cfg.EndpointFor(ModeRPC))
	assert.Equal(t, "ws://b", cfg.EndpointFor(ModeWebsocket))
	assert.Equal(t, "http://c", cfg.EndpointFor(ModeLightClient))
	assert.Equal(t, "http://d", cfg.EndpointFor(ModeInjected))
	assert.Equal(t, "", cfg.EndpointFor(ModeNone))
}
