package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/havenwatch/haven"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	configPath  string
	dataDir     string
	sqlitePath  string
	haURL       string
	haToken     string
	webhookURL  string
	metricsAddr string
	encryptPass string
	logLevel    string
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "haven",
		Short:        "Behavioral monitoring for home-automation entities",
		Long:         "haven learns per-entity activity baselines from Home Assistant state changes and alerts on deviations, with welfare semantics for elder care.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "haven.yaml", "path to configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring coordinator",
		RunE:  a.run,
	}
	run.Flags().StringVar(&a.dataDir, "data-dir", "data", "directory for snapshot files")
	run.Flags().StringVar(&a.sqlitePath, "sqlite", "", "store snapshots and the notification log in this SQLite file instead of plain files")
	run.Flags().StringVar(&a.haURL, "ha-url", envOr("HAVEN_HA_URL", "ws://localhost:8123/api/websocket"), "Home Assistant WebSocket API URL")
	run.Flags().StringVar(&a.haToken, "ha-token", os.Getenv("HAVEN_HA_TOKEN"), "Home Assistant long-lived access token")
	run.Flags().StringVar(&a.webhookURL, "webhook", "", "also POST notifications to this webhook URL")
	run.Flags().StringVar(&a.metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address, e.g. :9641")
	run.Flags().StringVar(&a.encryptPass, "encrypt-password", os.Getenv("HAVEN_ENCRYPT_PASSWORD"), "encrypt snapshots at rest with this password")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file and exit",
		RunE:  a.validate,
	}

	root.AddCommand(run, validate)
	return root
}

func (a *app) validate(cmd *cobra.Command, _ []string) error {
	cfg, err := haven.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: %d monitored entities, sensitivity %s\n",
		len(cfg.MonitoredEntities), cfg.Sensitivity)
	return nil
}

func (a *app) run(cmd *cobra.Command, _ []string) error {
	logger := newLogger(a.logLevel)
	slog.SetDefault(logger)

	cfg, err := haven.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.haToken == "" {
		return fmt.Errorf("a Home Assistant access token is required (--ha-token or HAVEN_HA_TOKEN)")
	}

	store, notifyLog, err := a.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	source := haven.NewHASource(haven.HASourceConfig{
		URL:         a.haURL,
		AccessToken: a.haToken,
		Logger:      logger,
	})

	notifierOpts := []haven.NotifierOption{haven.WithNotifierLogger(logger)}
	for _, name := range cfg.NotifySinks {
		sink, err := haven.NewServiceSink(name, source)
		if err != nil {
			logger.Warn("skipping malformed notification sink", "sink", name, "error", err)
			continue
		}
		notifierOpts = append(notifierOpts, haven.WithSink(sink))
	}
	if a.webhookURL != "" {
		notifierOpts = append(notifierOpts, haven.WithSink(haven.NewWebhookSink(a.webhookURL, nil)))
	}
	notifier := haven.NewNotifier(notifyLog, notifierOpts...)

	coord, err := haven.NewCoordinator(cfg,
		haven.WithStore(store),
		haven.WithNotifier(notifier),
		haven.WithEventSource(source),
		haven.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if a.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(
			coord.Metrics().Registry(), promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: a.metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() { _ = srv.Close() }()
		logger.Info("metrics exposed", "addr", a.metricsAddr)
	}

	if err := coord.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	cancel()
	return coord.Stop(stopCtx)
}

// openStore builds the snapshot store and the notification log from the
// storage flags. SQLite hosts both; the file backend pairs with an
// in-memory notification log.
func (a *app) openStore() (*haven.SnapshotStore, haven.NotificationLog, error) {
	var opts []haven.StoreOption
	opts = append(opts, haven.WithCompression())
	if a.encryptPass != "" {
		enc, err := haven.NewEncryptor(a.encryptPass)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, haven.WithEncryptor(enc))
	}

	if a.sqlitePath != "" {
		backend, err := haven.NewSQLiteBackend(haven.DefaultSQLiteBackendConfig(a.sqlitePath))
		if err != nil {
			return nil, nil, err
		}
		return haven.NewSnapshotStore(backend, opts...), backend, nil
	}

	backend, err := haven.NewFileBackend(a.dataDir)
	if err != nil {
		return nil, nil, err
	}
	return haven.NewSnapshotStore(backend, opts...), haven.NewMemoryNotificationLog(200), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
