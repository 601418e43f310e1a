package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tokenledger/internal/config"
	"tokenledger/internal/report"
	"tokenledger/internal/store/postgres"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the ledger by category over a period",
		RunE:  runReport,
	}
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("from", "", "period start (RFC3339 or YYYY-MM-DD), default 30 days ago")
	cmd.Flags().String("to", "", "period end (RFC3339 or YYYY-MM-DD), default now")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	from, to, err := reportPeriod(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	summary, err := report.NewReporter(pg).Summarize(ctx, from, to)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "period\t%s .. %s\n", summary.From.Format(time.RFC3339), summary.To.Format(time.RFC3339))
	fmt.Fprintf(w, "entries\t%d\n", summary.Entries)
	fmt.Fprintf(w, "net supply\t%s\n", summary.NetSupply)
	fmt.Fprintln(w, "category\tcount\ttokens")
	for _, t := range summary.Totals {
		fmt.Fprintf(w, "%s\t%d\t%s\n", t.Category, t.Count, t.Tokens)
	}
	return w.Flush()
}

func reportPeriod(cmd *cobra.Command) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if s, _ := cmd.Flags().GetString("from"); s != "" {
		parsed, err := parseTime(s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --from: %w", err)
		}
		from = parsed
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		parsed, err := parseTime(s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --to: %w", err)
		}
		to = parsed
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("period end must be after start")
	}
	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
