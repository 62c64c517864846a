package config

import "time"

const (
	ModeNone        = "none"
	ModeInjected    = "injected"
	ModeRPC         = "rpc"
	ModeWebsocket   = "websocket-rpc"
	ModeLightClient = "light-client"
)

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level" mapstructure:"log_level"`     // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format" mapstructure:"log_format"`   // "json" or "console"
	LogSampler bool   `json:"log_sampler" mapstructure:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home" mapstructure:"node_home"` // Home directory (default: ~/.piet)

	// Blockchain connection
	ConnectionMode      string  `json:"connection_mode" mapstructure:"connection_mode"`             // one of none/injected/rpc/websocket-rpc/light-client
	RPCURL              string  `json:"rpc_url" mapstructure:"rpc_url"`                             // default: http://localhost:8545
	WebsocketURL        string  `json:"websocket_url" mapstructure:"websocket_url"`                 // ws:// or wss:// endpoint for websocket-rpc mode
	LightClientURL      string  `json:"light_client_url" mapstructure:"light_client_url"`           // verifying gateway for light-client mode
	InjectedProviderURL string  `json:"injected_provider_url" mapstructure:"injected_provider_url"` // wallet-managed provider endpoint, empty when no wallet
	RequestsPerSecond   float64 `json:"requests_per_second" mapstructure:"requests_per_second"`     // provider rate limit, 0 = unlimited

	// Transaction submission
	ReceiptPollIntervalMs int `json:"receipt_poll_interval_ms" mapstructure:"receipt_poll_interval_ms"` // default: 1000
	ReceiptTimeoutSeconds int `json:"receipt_timeout_seconds" mapstructure:"receipt_timeout_seconds"`   // default: 300

	// Startup
	InitialConnectRetries int `json:"initial_connect_retries" mapstructure:"initial_connect_retries"` // default: 3

	// Query Server Config
	QueryServerPort int  `json:"query_server_port" mapstructure:"query_server_port"` // Port for HTTP query server (default: 8080)
	MetricsEnabled  bool `json:"metrics_enabled" mapstructure:"metrics_enabled"`     // expose /metrics on the query server
}

// ReceiptPollInterval returns the receipt polling interval as a duration.
func (c *Config) ReceiptPollInterval() time.Duration {
	return time.Duration(c.ReceiptPollIntervalMs) * time.Millisecond
}

// ReceiptTimeout returns how long a submission waits for its receipt.
func (c *Config) ReceiptTimeout() time.Duration {
	return time.Duration(c.ReceiptTimeoutSeconds) * time.Second
}

// EndpointFor returns the configured endpoint for a connection mode.
func (c *Config) EndpointFor(mode string) string {
	switch mode {
	case ModeRPC:
		return c.RPCURL
	case ModeWebsocket:
		return c.WebsocketURL
	case ModeLightClient:
		return c.LightClientURL
	case ModeInjected:
		return c.InjectedProviderURL
	default:
		return ""
	}
}
