package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tokenledger/internal/config"
	"tokenledger/internal/source"
)

func newBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Look up token and native balances for an address",
		Args:  cobra.ExactArgs(1),
		RunE:  runBalance,
	}
	cmd.Flags().String("source-url", "", "tokenization service base URL")
	cmd.Flags().Duration("http-timeout", 0, "per-call HTTP timeout")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.SourceURL == "" {
		return fmt.Errorf("source url is required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := source.NewRPCClient(cfg.SourceURL, cfg.HTTPTimeout, logger)
	tokens, native, err := client.Balance(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("tokens\t%s\nnative\t%s\n", tokens, native)
	return nil
}
