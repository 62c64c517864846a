package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/pushchain/piet/workbench/api"
	"github.com/pushchain/piet/workbench/config"
	"github.com/pushchain/piet/workbench/connection"
	"github.com/pushchain/piet/workbench/constant"
	"github.com/pushchain/piet/workbench/db"
	"github.com/pushchain/piet/workbench/errors"
	"github.com/pushchain/piet/workbench/history"
	"github.com/pushchain/piet/workbench/metrics"
	"github.com/pushchain/piet/workbench/orchestrator"
	"github.com/pushchain/piet/workbench/registry"
)

// Client runs the workbench daemon: one shared connection, the contract
// registry and the query server in front of them.
type Client struct {
	ctx    context.Context
	log    zerolog.Logger
	config config.Config

	db           *db.DB
	conn         *connection.Manager
	orchestrator *orchestrator.Orchestrator
	server       *api.Server

	connOpts []connection.Option
}

// Option configures a Client.
type Option func(*Client)

// WithConnectionOptions passes extra options to the connection manager.
func WithConnectionOptions(opts ...connection.Option) Option {
	return func(c *Client) { c.connOpts = append(c.connOpts, opts...) }
}

// NewClient opens the registry database under the node home and assembles
// the daemon. Nothing is dialed until Start.
func NewClient(ctx context.Context, log zerolog.Logger, cfg config.Config, opts ...Option) (*Client, error) {
	c := &Client{ctx: ctx, log: log, config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	database, err := db.OpenFileDB(filepath.Join(cfg.NodeHome, constant.DataSubdir), db.DefaultFileName, true)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to open registry database", err)
	}
	c.db = database

	connOpts := append([]connection.Option{
		connection.WithLogger(log),
		connection.WithInjectedProvider(cfg.InjectedProviderURL),
		connection.WithLightClientURL(cfg.LightClientURL),
		connection.WithRateLimit(cfg.RequestsPerSecond),
	}, c.connOpts...)
	c.conn = connection.NewManager(connOpts...)

	orchOpts := []orchestrator.Option{
		orchestrator.WithReceiptPolling(cfg.ReceiptPollInterval(), cfg.ReceiptTimeout()),
	}
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		orchOpts = append(orchOpts, orchestrator.WithMetrics(metrics.New(reg)))
		gatherer = reg
	}
	c.orchestrator = orchestrator.New(c.conn, history.NewLog(), log, orchOpts...)

	contracts := registry.New(database, log)
	c.server = api.NewServer(c.orchestrator, contracts, gatherer, log, cfg.QueryServerPort)
	return c, nil
}

// Start connects, serves queries and blocks until the context is done.
// A connection that cannot be established leaves the daemon running in
// mode none.
func (c *Client) Start() error {
	c.log.Info().Msg("🚀 Starting piet workbench...")

	state, err := c.connect()
	if err != nil {
		c.log.Warn().Err(err).Msg("initial connection failed, running without a blockchain")
	} else {
		c.log.Info().Str("mode", string(state.Mode)).Str("net_version", state.NetVersion).Msg("initial connection established")
	}

	if err := c.server.Start(); err != nil {
		c.conn.Close()
		_ = c.db.Close()
		return errors.NewInternalError("failed to start query server", err)
	}
	c.log.Info().Int("port", c.config.QueryServerPort).Msg("✅ Initialization complete. Serving queries...")

	<-c.ctx.Done()

	c.log.Info().Msg("🛑 Shutting down piet workbench...")
	if err := c.server.Stop(); err != nil {
		c.log.Error().Err(err).Msg("failed to stop query server")
	}
	c.conn.Close()
	return c.db.Close()
}

// connect applies the configured mode, retrying configuration failures.
func (c *Client) connect() (connection.State, error) {
	mode, err := connection.ParseMode(c.config.ConnectionMode)
	if err != nil {
		return c.conn.Snapshot(), errors.NewConfigurationError(err.Error(), nil)
	}
	if mode == connection.ModeNone {
		return c.conn.Reconfigure(c.ctx, connection.Settings{Mode: connection.ModeNone})
	}

	retry := errors.DefaultRetryConfig()
	retry.MaxAttempts = max(c.config.InitialConnectRetries, 1)
	retry.InitialDelay = 500 * time.Millisecond
	retry.RetryableErrors = append(retry.RetryableErrors, errors.ErrCodeConfiguration)
	retry.OnRetry = func(attempt int, err error) {
		c.log.Warn().Err(err).Int("attempt", attempt).Str("mode", string(mode)).Msg("connection attempt failed, retrying")
	}

	var state connection.State
	err = errors.RetryWithConfig(c.ctx, func() error {
		var rerr error
		state, rerr = c.conn.Reconfigure(c.ctx, connection.Settings{
			Mode:   mode,
			RPCURL: c.config.EndpointFor(string(mode)),
		})
		return rerr
	}, retry)
	return state, err
}
