// Package registry keeps the local set of named contracts the CLI and API
// address: their ABI, address and, when known, bytecode and source.
package registry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pushchain/piet/workbench/abicodec"
	"github.com/pushchain/piet/workbench/chains/evm"
	"github.com/pushchain/piet/workbench/db"
	"github.com/pushchain/piet/workbench/errors"
	"github.com/pushchain/piet/workbench/store"
)

// ErrNotFound is returned for names that are not registered.
var ErrNotFound = stderrors.New("contract not found")

// Registry stores contract entries in the workbench database.
type Registry struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New returns a registry over database.
func New(database *db.DB, logger zerolog.Logger) *Registry {
	return &Registry{
		db:     database.Client(),
		logger: logger.With().Str("component", "contract_registry").Logger(),
	}
}

// Add validates entry and stores it, replacing any entry with the same name.
func (r *Registry) Add(ctx context.Context, entry *store.ContractEntry) error {
	if err := normalize(entry); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at", "network", "address", "abi", "bytecode", "source"}),
	}).Create(entry).Error
	if err != nil {
		return errors.NewDatabaseError("failed to store contract "+entry.Name, err)
	}
	r.logger.Debug().Str("name", entry.Name).Str("address", entry.Address).Msg("contract registered")
	return nil
}

// Get returns the entry called name.
func (r *Registry) Get(ctx context.Context, name string) (*store.ContractEntry, error) {
	var entry store.ContractEntry
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&entry).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, errors.NewDatabaseError("failed to load contract "+name, err)
	}
	return &entry, nil
}

// List returns every entry ordered by name.
func (r *Registry) List(ctx context.Context) ([]store.ContractEntry, error) {
	var entries []store.ContractEntry
	if err := r.db.WithContext(ctx).Order("name").Find(&entries).Error; err != nil {
		return nil, errors.NewDatabaseError("failed to list contracts", err)
	}
	return entries, nil
}

// Remove deletes the entry called name.
func (r *Registry) Remove(ctx context.Context, name string) error {
	res := r.db.WithContext(ctx).Unscoped().Where("name = ?", name).Delete(&store.ContractEntry{})
	if res.Error != nil {
		return errors.NewDatabaseError("failed to remove contract "+name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// SetAddress records where name was deployed.
func (r *Registry) SetAddress(ctx context.Context, name string, address common.Address, network string) error {
	res := r.db.WithContext(ctx).Model(&store.ContractEntry{}).Where("name = ?", name).
		Updates(map[string]any{"address": address.Hex(), "network": network})
	if res.Error != nil {
		return errors.NewDatabaseError("failed to update contract "+name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// ParsedABI parses the entry's ABI.
func ParsedABI(entry *store.ContractEntry) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(entry.ABI))
	if err != nil {
		return abi.ABI{}, errors.NewValidationError(fmt.Sprintf("invalid ABI for %s: %v", entry.Name, err))
	}
	return parsed, nil
}

// Address returns the entry's deployed address.
func Address(entry *store.ContractEntry) (common.Address, error) {
	if entry.Address == "" {
		return common.Address{}, errors.NewValidationError(fmt.Sprintf("contract %s has no address", entry.Name))
	}
	return common.HexToAddress(entry.Address), nil
}

// Function resolves a method of the entry by name or canonical signature.
func Function(entry *store.ContractEntry, name string) (abicodec.ContractFunction, abi.ABI, error) {
	parsed, err := ParsedABI(entry)
	if err != nil {
		return abicodec.ContractFunction{}, abi.ABI{}, err
	}
	m, err := evm.LookupMethod(parsed, name)
	if err != nil {
		return abicodec.ContractFunction{}, abi.ABI{}, errors.NewValidationError(err.Error())
	}
	fn := abicodec.FunctionFromMethod(m)
	fn.Source = entry.Source
	return fn, parsed, nil
}

// DeploymentData concatenates the entry's bytecode with the packed
// constructor arguments.
func DeploymentData(entry *store.ContractEntry, args []string) ([]byte, error) {
	if entry.Bytecode == "" {
		return nil, errors.NewValidationError(fmt.Sprintf("contract %s has no bytecode", entry.Name))
	}
	code, err := hexutil.Decode(entry.Bytecode)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid bytecode for %s: %v", entry.Name, err))
	}
	parsed, err := ParsedABI(entry)
	if err != nil {
		return nil, err
	}

	fn := abicodec.ContractFunction{Name: "constructor"}
	for _, in := range parsed.Constructor.Inputs {
		fn.Params = append(fn.Params, abicodec.Parameter{Name: in.Name, Type: abicodec.FromABIType(in.Type)})
	}
	encoded, err := abicodec.EncodeArguments(fn, args)
	if err != nil {
		return nil, err
	}
	values, err := evm.CoerceArguments(parsed.Constructor.Inputs, encoded)
	if err != nil {
		return nil, err
	}
	packed, err := parsed.Constructor.Inputs.Pack(values...)
	if err != nil {
		return nil, errors.NewMalformedInputError("", "failed to pack constructor arguments", err)
	}
	return append(code, packed...), nil
}

type artifact struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode json.RawMessage `json:"bytecode"`
	Source   string          `json:"source"`
}

// LoadArtifact builds an entry from a raw ABI array or a Hardhat or
// Foundry build artifact.
func LoadArtifact(name string, data []byte) (*store.ContractEntry, error) {
	data = []byte(strings.TrimSpace(string(data)))
	entry := &store.ContractEntry{Name: name}

	if len(data) > 0 && data[0] == '[' {
		entry.ABI = string(data)
		return entry, normalize(entry)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("unrecognised artifact for %s: %v", name, err))
	}
	if len(a.ABI) == 0 {
		return nil, errors.NewValidationError(fmt.Sprintf("artifact for %s has no abi", name))
	}
	entry.ABI = string(a.ABI)
	entry.Source = a.Source

	if len(a.Bytecode) > 0 {
		// hardhat: "0x..", foundry: {"object": "0x.."}
		var code string
		if err := json.Unmarshal(a.Bytecode, &code); err != nil {
			var obj struct {
				Object string `json:"object"`
			}
			if err := json.Unmarshal(a.Bytecode, &obj); err != nil {
				return nil, errors.NewValidationError(fmt.Sprintf("invalid bytecode for %s: %v", name, err))
			}
			code = obj.Object
		}
		if code != "" && code != "0x" {
			if !strings.HasPrefix(code, "0x") {
				code = "0x" + code
			}
			entry.Bytecode = code
		}
	}
	return entry, normalize(entry)
}

func normalize(entry *store.ContractEntry) error {
	entry.Name = strings.TrimSpace(entry.Name)
	if entry.Name == "" {
		return errors.NewValidationError("contract name is required")
	}
	if _, err := ParsedABI(entry); err != nil {
		return err
	}
	if entry.Address != "" {
		if !common.IsHexAddress(entry.Address) {
			return errors.NewValidationError(fmt.Sprintf("invalid address %q", entry.Address))
		}
		entry.Address = common.HexToAddress(entry.Address).Hex()
	}
	if entry.Bytecode != "" {
		if _, err := hexutil.Decode(entry.Bytecode); err != nil {
			return errors.NewValidationError(fmt.Sprintf("invalid bytecode for %s: %v", entry.Name, err))
		}
	}
	return nil
}
