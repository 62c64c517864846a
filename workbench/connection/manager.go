package connection

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/pushchain/piet/workbench/chains/evm"
	"github.com/pushchain/piet/workbench/config"
	"github.com/pushchain/piet/workbench/errors"
)

// Dialer opens a backend for an endpoint URL.
type Dialer func(ctx context.Context, url string) (evm.Backend, error)

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the JSON-RPC dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// WithInjectedProvider sets the endpoint of a wallet-managed provider.
// Without one, injected mode fails as "no wallet present".
func WithInjectedProvider(url string) Option {
	return func(m *Manager) { m.injectedURL = url }
}

// WithLightClientURL sets the verifying gateway used in light-client mode.
func WithLightClientURL(url string) Option {
	return func(m *Manager) { m.lightClientURL = url }
}

// WithRateLimit caps requests per second on dialed providers.
func WithRateLimit(rps float64) Option {
	return func(m *Manager) { m.rps = rps }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Settings are the user-chosen connection parameters.
type Settings struct {
	Mode   Mode   `json:"mode"`
	RPCURL string `json:"rpc_url"`
}

// Manager owns the shared connection State.
type Manager struct {
	mu    sync.RWMutex
	state State

	// serialises Init/Reconfigure so dials never interleave
	reconfigure sync.Mutex

	dial           Dialer
	injectedURL    string
	lightClientURL string
	rps            float64
	logger         zerolog.Logger
}

// NewManager returns a disconnected Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		state: State{
			Mode:              ModeNone,
			RPCURL:            config.DefaultRPCURL,
			UseDefaultAccount: true,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "connection").Logger()
	if m.dial == nil {
		m.dial = func(ctx context.Context, url string) (evm.Backend, error) {
			return evm.Dial(ctx, url, evm.Options{RequestsPerSecond: m.rps, Logger: m.logger})
		}
	}
	return m
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// IsConnected reports whether a provider is configured.
func (m *Manager) IsConnected() bool {
	return m.Snapshot().Connected()
}

// update is the only place the state is written. A backend replaced by fn
// is closed after the swap.
func (m *Manager) update(fn func(s *State)) State {
	m.mu.Lock()
	prev := m.state.Backend
	fn(&m.state)
	next := m.state.clone()
	m.mu.Unlock()

	if prev != nil && prev != next.Backend {
		prev.Close()
	}
	return next
}

// Init picks the starting mode: rpc when rpcURL is given, injected when a
// wallet provider is configured, none otherwise.
func (m *Manager) Init(ctx context.Context, rpcURL string) (State, error) {
	switch {
	case rpcURL != "":
		return m.Reconfigure(ctx, Settings{Mode: ModeRPC, RPCURL: rpcURL})
	case m.injectedURL != "":
		return m.Reconfigure(ctx, Settings{Mode: ModeInjected})
	default:
		return m.Reconfigure(ctx, Settings{Mode: ModeNone})
	}
}

// Reconfigure switches the connection to s. The selected account is always
// reset to the provider default. On any failure the connection is left in
// mode none with no backend and the error is returned with that state.
func (m *Manager) Reconfigure(ctx context.Context, s Settings) (State, error) {
	m.reconfigure.Lock()
	defer m.reconfigure.Unlock()

	rpcURL := s.RPCURL
	if rpcURL == "" {
		rpcURL = m.Snapshot().RPCURL
	}

	backend, netVersion, err := m.connect(ctx, s.Mode, rpcURL)
	if err != nil {
		m.logger.Warn().Err(err).Str("mode", string(s.Mode)).Str("rpc_url", rpcURL).Msg("reconfiguration failed, connection set to none")
		state := m.update(func(st *State) {
			st.Mode = ModeNone
			st.RPCURL = rpcURL
			st.NetVersion = ""
			st.SelectedAccount = nil
			st.UseDefaultAccount = true
			st.Backend = nil
		})
		return state, err
	}

	state := m.update(func(st *State) {
		st.Mode = s.Mode
		st.RPCURL = rpcURL
		st.NetVersion = netVersion
		st.SelectedAccount = nil
		st.UseDefaultAccount = true
		st.Backend = backend
	})
	m.logger.Info().
		Str("mode", string(state.Mode)).
		Str("net_version", state.NetVersion).
		Msg("connection configured")
	return state, nil
}

func (m *Manager) connect(ctx context.Context, mode Mode, rpcURL string) (evm.Backend, string, error) {
	var (
		url          string
		listAccounts = true
	)
	switch mode {
	case ModeNone:
		return nil, "", nil
	case ModeRPC:
		url = rpcURL
	case ModeWebsocket:
		if !strings.HasPrefix(rpcURL, "ws://") && !strings.HasPrefix(rpcURL, "wss://") {
			return nil, "", errors.NewConfigurationError(fmt.Sprintf("websocket mode needs a ws:// or wss:// url, got %q", rpcURL), nil)
		}
		url = rpcURL
	case ModeInjected:
		if m.injectedURL == "" {
			return nil, "", errors.NewConfigurationError("no injected wallet provider present", nil)
		}
		url = m.injectedURL
	case ModeLightClient:
		if m.lightClientURL == "" {
			return nil, "", errors.NewConfigurationError("no light client gateway configured", nil)
		}
		url = m.lightClientURL
		listAccounts = false
	default:
		return nil, "", errors.NewConfigurationError(fmt.Sprintf("unknown connection mode %q", mode), nil)
	}

	backend, err := m.dial(ctx, url)
	if err != nil {
		return nil, "", errors.NewConfigurationError("failed to connect to "+url, err)
	}

	if listAccounts {
		if _, err := backend.Accounts(ctx); err != nil {
			backend.Close()
			return nil, "", errors.NewConfigurationError("failed to list accounts", err)
		}
	}

	netVersion, err := backend.NetVersion(ctx)
	if err != nil {
		backend.Close()
		return nil, "", errors.NewConfigurationError("failed to read net version", err)
	}
	return backend, netVersion, nil
}

// SelectAccount makes addr the sender for subsequent calls. addr must be
// one of the provider's accounts.
func (m *Manager) SelectAccount(ctx context.Context, addr common.Address) (State, error) {
	snap := m.Snapshot()
	if !snap.Connected() {
		return snap, errors.NewConfigurationError("not connected", nil)
	}
	accounts, err := snap.Backend.Accounts(ctx)
	if err != nil {
		return snap, errors.NewProviderError(snap.NetVersion, "failed to list accounts", err)
	}
	found := false
	for _, a := range accounts {
		if a == addr {
			found = true
			break
		}
	}
	if !found {
		return snap, errors.NewValidationError(fmt.Sprintf("account %s is not managed by the provider", addr.Hex()))
	}

	stale := false
	state := m.update(func(st *State) {
		// a reconfiguration in between replaced the provider
		if st.Backend != snap.Backend {
			stale = true
			return
		}
		a := addr
		st.SelectedAccount = &a
		st.UseDefaultAccount = false
	})
	if stale {
		return state, errors.NewConfigurationError("connection changed while selecting account", nil)
	}
	return state, nil
}

// UseDefaultAccount clears the selected account.
func (m *Manager) UseDefaultAccount() State {
	return m.update(func(st *State) {
		st.SelectedAccount = nil
		st.UseDefaultAccount = true
	})
}

// Close drops the backend and leaves the connection in mode none.
func (m *Manager) Close() {
	m.reconfigure.Lock()
	defer m.reconfigure.Unlock()
	m.update(func(st *State) {
		st.Mode = ModeNone
		st.NetVersion = ""
		st.SelectedAccount = nil
		st.UseDefaultAccount = true
		st.Backend = nil
	})
}
