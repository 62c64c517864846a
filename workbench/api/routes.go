package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the API server
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/connection", s.handleGetConnection).Methods(http.MethodGet)
	v1.HandleFunc("/connection", s.handleReconfigure).Methods(http.MethodPost)
	v1.HandleFunc("/connection/account", s.handleSelectAccount).Methods(http.MethodPost)
	v1.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	v1.HandleFunc("/accounts", s.handleAccounts).Methods(http.MethodGet)
	v1.HandleFunc("/balance/{address}", s.handleBalance).Methods(http.MethodGet)
	v1.HandleFunc("/rpc", s.handleRPC).Methods(http.MethodPost)
	v1.HandleFunc("/contracts", s.handleContracts).Methods(http.MethodGet)
	v1.HandleFunc("/contracts/{name}/call/{function}", s.handleCall).Methods(http.MethodPost)
	v1.HandleFunc("/contracts/{name}/tx/{function}", s.handleBuildTx).Methods(http.MethodPost)
	v1.HandleFunc("/contracts/{name}/send/{function}", s.handleSend).Methods(http.MethodPost)
	v1.HandleFunc("/deploy", s.handleDeploy).Methods(http.MethodPost)
	v1.HandleFunc("/session/export", s.handleExport).Methods(http.MethodGet)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request served")
	})
}
