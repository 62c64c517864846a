package connection

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/piet/workbench/chains/evm"
	werrors "github.com/pushchain/piet/workbench/errors"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type fakeBackend struct {
	url         string
	accounts    []common.Address
	accountsErr error
	netVersion  string
	netErr      error
	accountCall atomic.Int32
	closed      atomic.Bool
}

func (f *fakeBackend) Accounts(context.Context) ([]common.Address, error) {
	f.accountCall.Add(1)
	return f.accounts, f.accountsErr
}
func (f *fakeBackend) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg) ([]byte, error) {
	return nil, nil
}
func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 0, nil }
func (f *fakeBackend) NonceAt(context.Context, common.Address) (uint64, error)       { return 0, nil }
func (f *fakeBackend) SendTransaction(context.Context, evm.TxArgs) (common.Hash, error) {
	return common.Hash{}, nil
}
func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}
func (f *fakeBackend) RawCall(context.Context, string, ...any) (json.RawMessage, error) {
	return nil, nil
}
func (f *fakeBackend) NetVersion(context.Context) (string, error) { return f.netVersion, f.netErr }
func (f *fakeBackend) Close()                                     { f.closed.Store(true) }

// fakeDialer hands out configured backends by URL and records dials.
type fakeDialer struct {
	mu       sync.Mutex
	backends map[string]*fakeBackend
	dialErr  map[string]error
	dialed   []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{backends: map[string]*fakeBackend{}, dialErr: map[string]error{}}
}

func (d *fakeDialer) add(url, netVersion string, accounts ...common.Address) *fakeBackend {
	b := &fakeBackend{url: url, netVersion: netVersion, accounts: accounts}
	d.mu.Lock()
	d.backends[url] = b
	d.mu.Unlock()
	return b
}

func (d *fakeDialer) dial(_ context.Context, url string) (evm.Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, url)
	if err := d.dialErr[url]; err != nil {
		return nil, err
	}
	b, ok := d.backends[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return b, nil
}

func newManager(d *fakeDialer, opts ...Option) *Manager {
	opts = append([]Option{WithDialer(d.dial), WithLogger(zerolog.Nop())}, opts...)
	return NewManager(opts...)
}

func TestNewManager(t *testing.T) {
	m := NewManager()
	s := m.Snapshot()
	assert.Equal(t, ModeNone, s.Mode)
	assert.Equal(t, "http://localhost:8545", s.RPCURL)
	assert.True(t, s.UseDefaultAccount)
	assert.Nil(t, s.SelectedAccount)
	assert.False(t, m.IsConnected())
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("rpc url selects rpc mode", func(t *testing.T) {
		d := newFakeDialer()
		d.add("http://node:8545", "1337", alice)
		m := newManager(d)

		s, err := m.Init(ctx, "http://node:8545")
		require.NoError(t, err)
		assert.Equal(t, ModeRPC, s.Mode)
		assert.Equal(t, "1337", s.NetVersion)
		assert.Equal(t, "http://node:8545", s.RPCURL)
		assert.Nil(t, s.SelectedAccount)
		assert.True(t, m.IsConnected())
	})

	t.Run("injected provider when no rpc url", func(t *testing.T) {
		d := newFakeDialer()
		d.add("http://wallet:1248", "5", alice)
		m := newManager(d, WithInjectedProvider("http://wallet:1248"))

		s, err := m.Init(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, ModeInjected, s.Mode)
		assert.Equal(t, "5", s.NetVersion)
		assert.Equal(t, "http://localhost:8545", s.RPCURL)
	})

	t.Run("nothing available stays disconnected", func(t *testing.T) {
		d := newFakeDialer()
		m := newManager(d)

		s, err := m.Init(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, ModeNone, s.Mode)
		assert.Empty(t, s.NetVersion)
		assert.Empty(t, d.dialed)
	})
}

func TestReconfigureFailSafe(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		settings Settings
		setup    func(d *fakeDialer)
		opts     []Option
	}{
		{
			name:     "dial fails",
			settings: Settings{Mode: ModeRPC, RPCURL: "http://down:8545"},
		},
		{
			name:     "account listing fails",
			settings: Settings{Mode: ModeRPC, RPCURL: "http://noaccounts:8545"},
			setup: func(d *fakeDialer) {
				d.add("http://noaccounts:8545", "1").accountsErr = errors.New("unauthorized")
			},
		},
		{
			name:     "net version fails",
			settings: Settings{Mode: ModeRPC, RPCURL: "http://nonet:8545"},
			setup: func(d *fakeDialer) {
				d.add("http://nonet:8545", "").netErr = errors.New("method not found")
			},
		},
		{
			name:     "websocket mode with http url",
			settings: Settings{Mode: ModeWebsocket, RPCURL: "http://node:8545"},
		},
		{
			name:     "injected without wallet",
			settings: Settings{Mode: ModeInjected},
		},
		{
			name:     "light client without gateway",
			settings: Settings{Mode: ModeLightClient},
		},
		{
			name:     "unknown mode",
			settings: Settings{Mode: Mode("ipc")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDialer()
			good := d.add("http://good:8545", "1", alice, bob)
			if tt.setup != nil {
				tt.setup(d)
			}
			m := newManager(d, tt.opts...)

			_, err := m.Init(ctx, "http://good:8545")
			require.NoError(t, err)
			_, err = m.SelectAccount(ctx, bob)
			require.NoError(t, err)

			s, err := m.Reconfigure(ctx, tt.settings)
			require.Error(t, err)
			assert.True(t, werrors.IsCode(err, werrors.ErrCodeConfiguration))
			assert.Equal(t, ModeNone, s.Mode)
			assert.Nil(t, s.SelectedAccount)
			assert.Nil(t, s.Backend)
			assert.False(t, m.IsConnected())
			assert.True(t, good.closed.Load(), "previous backend is released")

			assert.Equal(t, s, m.Snapshot())
		})
	}
}

func TestReconfigureClosesFailedBackend(t *testing.T) {
	d := newFakeDialer()
	b := d.add("http://noaccounts:8545", "1")
	b.accountsErr = errors.New("unauthorized")
	m := newManager(d)

	_, err := m.Reconfigure(context.Background(), Settings{Mode: ModeRPC, RPCURL: "http://noaccounts:8545"})
	require.Error(t, err)
	assert.True(t, b.closed.Load())
	assert.Equal(t, "http://noaccounts:8545", m.Snapshot().RPCURL)
}

func TestReconfigureModes(t *testing.T) {
	ctx := context.Background()

	t.Run("websocket", func(t *testing.T) {
		d := newFakeDialer()
		d.add("ws://node:8546", "1337", alice)
		m := newManager(d)

		s, err := m.Reconfigure(ctx, Settings{Mode: ModeWebsocket, RPCURL: "ws://node:8546"})
		require.NoError(t, err)
		assert.Equal(t, ModeWebsocket, s.Mode)
		assert.Equal(t, "ws://node:8546", s.RPCURL)
	})

	t.Run("light client skips account listing", func(t *testing.T) {
		d := newFakeDialer()
		b := d.add("https://gateway.example", "1")
		m := newManager(d, WithLightClientURL("https://gateway.example"))

		s, err := m.Reconfigure(ctx, Settings{Mode: ModeLightClient})
		require.NoError(t, err)
		assert.Equal(t, ModeLightClient, s.Mode)
		assert.Equal(t, "1", s.NetVersion)
		assert.Zero(t, b.accountCall.Load())
	})

	t.Run("none drops the backend", func(t *testing.T) {
		d := newFakeDialer()
		b := d.add("http://node:8545", "1", alice)
		m := newManager(d)
		_, err := m.Init(ctx, "http://node:8545")
		require.NoError(t, err)

		s, err := m.Reconfigure(ctx, Settings{Mode: ModeNone})
		require.NoError(t, err)
		assert.Equal(t, ModeNone, s.Mode)
		assert.Empty(t, s.NetVersion)
		assert.True(t, b.closed.Load())
	})

	t.Run("switching resets the selected account", func(t *testing.T) {
		d := newFakeDialer()
		d.add("http://a:8545", "1", alice, bob)
		first := d.backends["http://a:8545"]
		d.add("http://b:8545", "2", alice, bob)
		m := newManager(d)

		_, err := m.Init(ctx, "http://a:8545")
		require.NoError(t, err)
		_, err = m.SelectAccount(ctx, bob)
		require.NoError(t, err)

		s, err := m.Reconfigure(ctx, Settings{Mode: ModeRPC, RPCURL: "http://b:8545"})
		require.NoError(t, err)
		assert.Nil(t, s.SelectedAccount)
		assert.True(t, s.UseDefaultAccount)
		assert.Equal(t, "2", s.NetVersion)
		assert.True(t, first.closed.Load())
	})

	t.Run("empty url keeps the current one", func(t *testing.T) {
		d := newFakeDialer()
		d.add("http://localhost:8545", "9", alice)
		m := newManager(d)

		s, err := m.Reconfigure(ctx, Settings{Mode: ModeRPC})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8545", s.RPCURL)
	})
}

func TestSelectAccount(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.add("http://node:8545", "1", alice, bob)
	m := newManager(d)

	_, err := m.SelectAccount(ctx, alice)
	require.Error(t, err, "disconnected")

	_, err = m.Init(ctx, "http://node:8545")
	require.NoError(t, err)

	s, err := m.SelectAccount(ctx, bob)
	require.NoError(t, err)
	require.NotNil(t, s.SelectedAccount)
	assert.Equal(t, bob, *s.SelectedAccount)
	assert.False(t, s.UseDefaultAccount)

	_, err = m.SelectAccount(ctx, common.HexToAddress("0x1"))
	require.Error(t, err)
	assert.True(t, werrors.IsCode(err, werrors.ErrCodeValidation))
	assert.Equal(t, bob, *m.Snapshot().SelectedAccount)

	s = m.UseDefaultAccount()
	assert.Nil(t, s.SelectedAccount)
	assert.True(t, s.UseDefaultAccount)
}

func TestSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.add("http://node:8545", "1", alice)
	m := newManager(d)
	_, err := m.Init(ctx, "http://node:8545")
	require.NoError(t, err)
	_, err = m.SelectAccount(ctx, alice)
	require.NoError(t, err)

	snap := m.Snapshot()
	*snap.SelectedAccount = bob
	assert.Equal(t, alice, *m.Snapshot().SelectedAccount)
}

func TestConcurrentReadersSeeConsistentState(t *testing.T) {
	ctx := context.Background()
	d := newFakeDialer()
	d.add("http://a:8545", "A", alice)
	d.add("http://b:8545", "B", alice)
	m := newManager(d)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var torn atomic.Int32

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := m.Snapshot()
				if s.Mode == ModeNone {
					continue
				}
				b, ok := s.Backend.(*fakeBackend)
				if !ok || b.netVersion != s.NetVersion || b.url != s.RPCURL {
					torn.Add(1)
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		url := "http://a:8545"
		if i%2 == 1 {
			url = "http://b:8545"
		}
		_, err := m.Reconfigure(ctx, Settings{Mode: ModeRPC, RPCURL: url})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, torn.Load())
}

func TestClose(t *testing.T) {
	d := newFakeDialer()
	b := d.add("http://node:8545", "1", alice)
	m := newManager(d)
	_, err := m.Init(context.Background(), "http://node:8545")
	require.NoError(t, err)

	m.Close()
	assert.True(t, b.closed.Load())
	assert.False(t, m.IsConnected())
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"rpc":           ModeRPC,
		"RPC":           ModeRPC,
		"websocket-rpc": ModeWebsocket,
		"light-client":  ModeLightClient,
		"injected":      ModeInjected,
		"none":          ModeNone,
		"":              ModeNone,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("mainnet-incubed")
	assert.Error(t, err)
}

func TestStateJSON(t *testing.T) {
	addr := alice
	s := State{
		Mode:            ModeRPC,
		RPCURL:          "http://node:8545",
		NetVersion:      "1337",
		SelectedAccount: &addr,
		Backend:         &fakeBackend{},
	}
	out, err := json.Marshal(s)
	require.NoError(t, err)

	var view map[string]any
	require.NoError(t, json.Unmarshal(out, &view))
	assert.Equal(t, "rpc", view["mode"])
	assert.Equal(t, "1337", view["net_version"])
	assert.Equal(t, true, view["connected"])
	assert.Equal(t, false, view["use_default_account"])
	assert.NotContains(t, view, "Backend")
}
