package main

import (
	"github.com/spf13/cobra"

	"github.com/pushchain/piet/workbench/constant"
)

var (
	nodeHome string
	rpcURL   string
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pietd",
		Short:         "Piet smart contract workbench daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&nodeHome, "home", constant.DefaultNodeHome, "Node home directory")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc", "", "RPC endpoint to connect to, overriding the configured connection")

	InitRootCmd(rootCmd)

	return rootCmd
}
