package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pushchain/piet/workbench/orchestrator"
)

// Server provides the pietd HTTP endpoints
type Server struct {
	logger    zerolog.Logger
	server    *http.Server
	orch      *orchestrator.Orchestrator
	contracts ContractStore
	gatherer  prometheus.Gatherer
	now       func() time.Time
}

// NewServer creates a new Server instance. A nil gatherer disables /metrics.
func NewServer(orch *orchestrator.Orchestrator, contracts ContractStore, gatherer prometheus.Gatherer, logger zerolog.Logger, port int) *Server {
	s := &Server{
		logger:    logger.With().Str("component", "query_server").Logger(),
		orch:      orch,
		contracts: contracts,
		gatherer:  gatherer,
		now:       time.Now,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("query server is nil")
	}

	startupChan := make(chan error, 1)

	go func() {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}

		startupChan <- nil

		err = s.server.Serve(ln)
		switch err {
		case nil:
			s.logger.Info().Msg("Query server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("Query server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("Query server error")
		}
	}()

	select {
	case err := <-startupChan:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server startup timeout")
	}
}

// Stop shuts down the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
