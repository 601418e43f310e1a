package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"tokenledger/internal/config"
	"tokenledger/internal/decode"
	"tokenledger/internal/distribute"
	"tokenledger/internal/ipfs"
	"tokenledger/internal/notify"
	"tokenledger/internal/reconcile"
	"tokenledger/internal/resolve"
	"tokenledger/internal/scheduler"
	"tokenledger/internal/source"
	"tokenledger/internal/store/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "ledgerd",
		Short:        "Token ledger reconciliation service",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduled jobs daemon",
		RunE:  runDaemon,
	}
	addServiceFlags(runCmd.Flags())
	runCmd.Flags().Duration("events-interval", 2*time.Minute, "reconciliation job interval")
	runCmd.Flags().Int("distribute-hour", 3, "daily distribution hour (local time)")
	runCmd.Flags().Int("distribute-minute", 15, "daily distribution minute")
	runCmd.Flags().Duration("housekeeping-interval", 2*time.Hour, "register prune interval")
	runCmd.Flags().Duration("register-max-age", 7*24*time.Hour, "register audit row retention")
	runCmd.Flags().String("metrics-addr", ":9090", "Prometheus metrics listen address")
	root.AddCommand(runCmd)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass and exit",
		RunE:  runSync,
	}
	addServiceFlags(syncCmd.Flags())
	root.AddCommand(syncCmd)

	root.AddCommand(newEventCmd())
	root.AddCommand(newBalanceCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newMigrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addServiceFlags(fs *pflag.FlagSet) {
	fs.String("source-url", "", "tokenization service base URL")
	fs.String("ipfs-gateway-url", "", "IPFS gateway base URL")
	fs.String("ipfs-gateway-token", "", "IPFS gateway access token")
	fs.String("pg-dsn", "", "Postgres DSN")
	fs.String("explorer-url", "", "block explorer base URL")
	fs.Int("page-size", 10, "events per page")
	fs.Duration("http-timeout", 15*time.Second, "per-call HTTP timeout")
	fs.Float64("source-rps", 10, "event feed request rate limit")
	fs.Int("max-retries", 5, "maximum retry attempts per fetch")
	fs.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fs.Duration("profile-cache-ttl", time.Minute, "profile resolver cache TTL")
	fs.String("admin-email", "", "operator notification recipient")
	fs.String("mailgun-domain", "", "Mailgun sending domain")
	fs.String("mailgun-api-key", "", "Mailgun API key")
	fs.String("mail-sender", "", "notification sender address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
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
	if err := pg.Migrate(ctx); err != nil {
		return err
	}

	reconciler := buildReconciler(cfg, pg, logger)
	rpcClient := source.NewRPCClient(cfg.SourceURL, cfg.HTTPTimeout, logger)
	distributor := distribute.NewDistributor(pg, pg, rpcClient, pg, logger)

	sched := scheduler.New(logger)
	if err := sched.Add(reconcile.JobKey, scheduler.Every(cfg.EventsInterval), reconciler.Run); err != nil {
		return err
	}
	if err := sched.Add(distribute.JobKey, scheduler.DailyAt(cfg.DistributeHour, cfg.DistributeMinute), distributor.Run); err != nil {
		return err
	}
	if err := sched.Add("housekeeping", scheduler.Every(cfg.HousekeepingInterval), func(ctx context.Context) error {
		pruned, err := pg.PruneOlderThan(ctx, time.Now().Add(-cfg.RegisterMaxAge))
		if err != nil {
			return err
		}
		logger.Info("register audit rows pruned", zap.Int64("rows", pruned))
		return nil
	}); err != nil {
		return err
	}

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}

	logger.Info("ledgerd start",
		zap.String("source", cfg.SourceURL),
		zap.Duration("events_interval", cfg.EventsInterval),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
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
	if err := pg.Migrate(ctx); err != nil {
		return err
	}

	return buildReconciler(cfg, pg, logger).Run(ctx)
}

func buildReconciler(cfg config.Config, pg *postgres.Store, logger *zap.Logger) *reconcile.Reconciler {
	src := source.NewClient(cfg.SourceURL, cfg.HTTPTimeout, cfg.SourceRPS, logger)
	gateway := ipfs.NewClient(cfg.IPFSGatewayURL, cfg.IPFSGatewayToken, cfg.HTTPTimeout, logger)
	resolver := resolve.NewResolver(pg, cfg.ProfileCacheTTL, logger)
	decoder := decode.NewDecoder(resolver, gateway, logger)

	var notifier notify.Notifier
	if cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "" && cfg.MailSender != "" && cfg.AdminEmail != "" {
		notifier = notify.NewMailgunNotifier(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailSender, logger)
	} else {
		logger.Warn("mail provider not configured, burn notifications go to the log")
		notifier = notify.NewLogNotifier(logger)
	}

	return reconcile.NewReconciler(reconcile.Config{
		PageSize:     cfg.PageSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		AdminEmail:   cfg.AdminEmail,
		ExplorerURL:  cfg.ExplorerURL,
	}, src, decoder, pg, pg, notifier, logger)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
