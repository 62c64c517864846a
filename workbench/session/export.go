// Package session writes the portable export of a workbench session.
package session

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pushchain/piet/workbench/errors"
	"github.com/pushchain/piet/workbench/store"
)

// FileVersion is the export format version.
const FileVersion = "0.0.1"

// Contract is one exported contract descriptor.
type Contract struct {
	Name     string          `json:"name"`
	Network  string          `json:"network,omitempty"`
	Address  string          `json:"address,omitempty"`
	ABI      json.RawMessage `json:"abi"`
	Bytecode string          `json:"bytecode,omitempty"`
	Source   string          `json:"source,omitempty"`
}

// Export is the saved session document. Graph is carried opaquely and
// SelectedElement, when set, names one of Contracts.
type Export struct {
	PietFileVersion string          `json:"pietFileVersion"`
	Contracts       []Contract      `json:"contracts"`
	Graph           json.RawMessage `json:"graph"`
	SelectedElement *string         `json:"selectedElement"`
}

// FromRegistry builds an export of entries. An empty selected leaves the
// selection null.
func FromRegistry(entries []store.ContractEntry, graph json.RawMessage, selected string) (Export, error) {
	e := Export{
		PietFileVersion: FileVersion,
		Contracts:       make([]Contract, 0, len(entries)),
	}
	if len(graph) > 0 {
		if !json.Valid(graph) {
			return Export{}, errors.NewValidationError("graph is not valid JSON")
		}
		e.Graph = graph
	}

	found := selected == ""
	for _, entry := range entries {
		e.Contracts = append(e.Contracts, Contract{
			Name:     entry.Name,
			Network:  entry.Network,
			Address:  entry.Address,
			ABI:      json.RawMessage(entry.ABI),
			Bytecode: entry.Bytecode,
			Source:   entry.Source,
		})
		if entry.Name == selected {
			found = true
		}
	}
	if !found {
		return Export{}, errors.NewValidationError(fmt.Sprintf("selected element %q is not an exported contract", selected))
	}
	if selected != "" {
		e.SelectedElement = &selected
	}
	return e, nil
}

// FileName is the name an export taken at now is saved under.
func FileName(now time.Time) string {
	return fmt.Sprintf("export%d.piet.json", now.UnixMilli())
}

// Write encodes e as 2-space indented JSON.
func Write(w io.Writer, e Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// Save writes e into dir under FileName(now) and returns the path.
func Save(dir string, e Export, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.Wrapf(err, "failed to create export directory %s", dir)
	}
	path := filepath.Join(dir, FileName(now))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to create export file")
	}
	defer f.Close()
	if err := Write(f, e); err != nil {
		return "", errors.Wrap(err, "failed to write export")
	}
	return path, nil
}
