// Package connection holds the one blockchain connection shared by every
// consumer in a session. Readers take immutable snapshots; all mutations go
// through the Manager so a reader never sees a half-applied reconfiguration.
package connection

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pushchain/piet/workbench/chains/evm"
	"github.com/pushchain/piet/workbench/config"
)

// Mode is how the session reaches the chain.
type Mode string

const (
	ModeNone        Mode = config.ModeNone
	ModeInjected    Mode = config.ModeInjected
	ModeRPC         Mode = config.ModeRPC
	ModeWebsocket   Mode = config.ModeWebsocket
	ModeLightClient Mode = config.ModeLightClient
)

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeNone, ModeInjected, ModeRPC, ModeWebsocket, ModeLightClient:
		return m, nil
	case "":
		return ModeNone, nil
	default:
		return "", fmt.Errorf("unknown connection mode %q", s)
	}
}

// State is a snapshot of the connection. SelectedAccount nil means the
// provider's default account is used.
type State struct {
	Mode              Mode
	RPCURL            string
	NetVersion        string
	SelectedAccount   *common.Address
	UseDefaultAccount bool
	Backend           evm.Backend
}

// Connected reports whether the snapshot has a usable provider.
func (s State) Connected() bool {
	return s.Mode != ModeNone && s.Backend != nil
}

// View is the serialisable part of a State.
type View struct {
	Mode              Mode            `json:"mode"`
	RPCURL            string          `json:"rpc_url"`
	NetVersion        string          `json:"net_version,omitempty"`
	SelectedAccount   *common.Address `json:"selected_account"`
	UseDefaultAccount bool            `json:"use_default_account"`
	Connected         bool            `json:"connected"`
}

// View drops the backend handle.
func (s State) View() View {
	return View{
		Mode:              s.Mode,
		RPCURL:            s.RPCURL,
		NetVersion:        s.NetVersion,
		SelectedAccount:   s.SelectedAccount,
		UseDefaultAccount: s.UseDefaultAccount,
		Connected:         s.Connected(),
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.View())
}

func (s State) clone() State {
	if s.SelectedAccount != nil {
		addr := *s.SelectedAccount
		s.SelectedAccount = &addr
	}
	return s
}
