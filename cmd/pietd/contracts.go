package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pushchain/piet/workbench/constant"
	"github.com/pushchain/piet/workbench/db"
	"github.com/pushchain/piet/workbench/orchestrator"
	"github.com/pushchain/piet/workbench/registry"
)

// ContractListOutput is the printed form of a registry entry
type ContractListOutput struct {
	Name        string `yaml:"name" json:"name"`
	Network     string `yaml:"network,omitempty" json:"network,omitempty"`
	Address     string `yaml:"address,omitempty" json:"address,omitempty"`
	HasBytecode bool   `yaml:"has_bytecode" json:"has_bytecode"`
	HasSource   bool   `yaml:"has_source" json:"has_source"`
}

func contractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "contract",
		Aliases: []string{"c"},
		Short:   "Manage the local contract registry",
	}

	cmd.AddCommand(
		contractAddCmd(),
		contractListCmd(),
		contractRemoveCmd(),
	)
	return cmd
}

func contractAddCmd() *cobra.Command {
	var (
		address    string
		network    string
		sourceFile string
	)

	cmd := &cobra.Command{
		Use:   "add <name> <artifact.json>",
		Short: "Register a contract from an ABI file or a Hardhat/Foundry artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filepath.Clean(args[1]))
			if err != nil {
				return fmt.Errorf("failed to read artifact: %w", err)
			}
			entry, err := registry.LoadArtifact(args[0], data)
			if err != nil {
				return err
			}
			if address != "" {
				if !common.IsHexAddress(address) {
					return fmt.Errorf("invalid address %q", address)
				}
				entry.Address = address
			}
			entry.Network = network
			if sourceFile != "" {
				src, err := os.ReadFile(filepath.Clean(sourceFile))
				if err != nil {
					return fmt.Errorf("failed to read source: %w", err)
				}
				entry.Source = string(src)
			}

			return withRegistry(func(r *registry.Registry) error {
				if err := r.Add(cmd.Context(), entry); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", entry.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Deployed contract address")
	cmd.Flags().StringVar(&network, "network", "", "Network id the address belongs to")
	cmd.Flags().StringVar(&sourceFile, "source", "", "Solidity source file to keep with the contract")
	return cmd
}

func contractListCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(r *registry.Registry) error {
				entries, err := r.List(cmd.Context())
				if err != nil {
					return err
				}
				out := make([]ContractListOutput, 0, len(entries))
				for _, e := range entries {
					out = append(out, ContractListOutput{
						Name:        e.Name,
						Network:     e.Network,
						Address:     e.Address,
						HasBytecode: e.Bytecode != "",
						HasSource:   e.Source != "",
					})
				}
				return printOutput(out, outputFormat)
			})
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func contractRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a contract from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(r *registry.Registry) error {
				if err := r.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func signatureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signature <name> <function>",
		Short: "Print the 4-byte selector of a contract function",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(r *registry.Registry) error {
				entry, err := r.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				parsed, err := registry.ParsedABI(entry)
				if err != nil {
					return err
				}
				sig, err := orchestrator.FunctionSignature(parsed, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sig)
				return nil
			})
		},
	}
}

// withRegistry opens the registry under the node home for one command.
func withRegistry(fn func(r *registry.Registry) error) error {
	database, err := db.OpenFileDB(filepath.Join(nodeHome, constant.DataSubdir), db.DefaultFileName, true)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer database.Close()

	return fn(registry.New(database, zerolog.Nop()))
}
