// Package cli defines the jira-bridge command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/jira-bridge/internal/app"
	"github.com/dwizi/jira-bridge/internal/config"
	"github.com/dwizi/jira-bridge/internal/store"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "jira-bridge",
		Short: "Jira Bridge is a Microsoft Teams bot for Jira Cloud and Server",
	}

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newRegisterPeerCommand(logger))
	root.AddCommand(newListPeersCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the add-on bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newRegisterPeerCommand(logger *slog.Logger) *cobra.Command {
	var displayName string
	command := &cobra.Command{
		Use:   "register-peer <key> <secret>",
		Short: "Register a Jira Server add-on allowed to open the bridge socket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			sqlStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			if err := sqlStore.RegisterPeer(cmd.Context(), args[0], args[1], displayName); err != nil {
				return err
			}
			logger.Info("peer registered", "peer_key", args[0])
			return nil
		},
	}
	command.Flags().StringVar(&displayName, "display-name", "", "human-readable name for the add-on")
	return command
}

func newListPeersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-peers",
		Short: "List registered Jira Server add-ons",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			sqlStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			peers, err := sqlStore.ListPeers(cmd.Context())
			if err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(peers, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(encoded))
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(ctx); err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return sqlStore, nil
}
