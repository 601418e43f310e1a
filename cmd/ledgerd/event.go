package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tokenledger/internal/config"
	"tokenledger/internal/source"
)

func newEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event <tx-hash>",
		Short: "Look up a single feed event by transaction hash",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvent,
	}
	cmd.Flags().String("source-url", "", "tokenization service base URL")
	cmd.Flags().Duration("http-timeout", 0, "per-call HTTP timeout")
	cmd.Flags().Float64("source-rps", 0, "event feed request rate limit")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runEvent(cmd *cobra.Command, args []string) error {
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

	client := source.NewClient(cfg.SourceURL, cfg.HTTPTimeout, cfg.SourceRPS, logger)
	ev, err := client.EventByHash(ctx, args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
