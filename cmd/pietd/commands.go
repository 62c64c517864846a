package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pushchain/piet/workbench/config"
	"github.com/pushchain/piet/workbench/core"
	"github.com/pushchain/piet/workbench/logger"
)

// Set at build time with -ldflags "-X main.Version=... -X main.Commit=...".
var (
	Version = "dev"
	Commit  = ""
)

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(connectionCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(accountsCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(callCmd())
	rootCmd.AddCommand(txCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(deployCmd())
	rootCmd.AddCommand(rpcCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(contractCmd())
	rootCmd.AddCommand(signatureCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the node home",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefaultConfig()
			if err != nil {
				return err
			}
			cfg.NodeHome = nodeHome
			if err := config.Save(cfg, nodeHome); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", nodeHome)
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the workbench daemon and its query server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithEnv(nodeHome)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if rpcURL != "" {
				cfg.ConnectionMode = config.ModeRPC
				cfg.RPCURL = rpcURL
			}
			log := logger.Init(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := core.NewClient(ctx, log, cfg)
			if err != nil {
				return err
			}
			return client.Start()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print pietd version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Name:       %s\n", "pietd")
			fmt.Printf("Version:    %s\n", Version)
			fmt.Printf("Commit:     %s\n", Commit)
			fmt.Printf("Go:         %s\n", runtime.Version())
		},
	}
}
