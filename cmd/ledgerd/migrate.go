package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tokenledger/internal/config"
	"tokenledger/internal/store/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE:  runMigrate,
	}
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("schema up to date")
	return nil
}
