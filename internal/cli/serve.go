package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wheresmyhair/Shell-Queue-Manager/internal/config"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/notify"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/queue"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/server"
	"github.com/wheresmyhair/Shell-Queue-Manager/internal/worker"
	"github.com/wheresmyhair/Shell-Queue-Manager/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the queue manager server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("http-port", "8080", "HTTP server port")
	serveCmd.Flags().String("metrics-addr", ":9091", "Prometheus metrics server address")
	serveCmd.Flags().Int("max-history", 1000, "maximum task IDs kept in submission history")
	serveCmd.Flags().Int("queue-low-threshold", 1, "queue size at or below which the low-queue notification fires")
	serveCmd.Flags().Bool("notify-on-failure", true, "send a notification when a task fails")
	serveCmd.Flags().Bool("email-enabled", false, "enable email notifications")
	serveCmd.Flags().String("email-host", "smtp.example.com", "SMTP server host")
	serveCmd.Flags().Int("email-port", 587, "SMTP server port")
	serveCmd.Flags().String("email-username", "", "SMTP auth username")
	serveCmd.Flags().String("email-password", "", "SMTP auth password or app password")
	serveCmd.Flags().String("email-from", "shell-queue@example.com", "sender address")
	serveCmd.Flags().StringSlice("email-recipients", []string{"admin@example.com"}, "notification recipients")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("http_port", serveCmd.Flags(), "http-port")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	bindFlag("max_history", serveCmd.Flags(), "max-history")
	bindFlag("queue_low_threshold", serveCmd.Flags(), "queue-low-threshold")
	bindFlag("notify_on_failure", serveCmd.Flags(), "notify-on-failure")
	bindFlag("email_enabled", serveCmd.Flags(), "email-enabled")
	bindFlag("email_host", serveCmd.Flags(), "email-host")
	bindFlag("email_port", serveCmd.Flags(), "email-port")
	bindFlag("email_username", serveCmd.Flags(), "email-username")
	bindFlag("email_password", serveCmd.Flags(), "email-password")
	bindFlag("email_from", serveCmd.Flags(), "email-from")
	bindFlag("email_recipients", serveCmd.Flags(), "email-recipients")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	logger := buildLogger(cfg.LogLevel, "shellqueue")

	shutdownTracer, err := telemetry.InitTracer(context.Background(), "shellqueue", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	var notifier notify.Notifier = notify.Nop{}
	if cfg.EmailEnabled {
		notifier = notify.NewEmailNotifier(notify.EmailConfig{
			Enabled:    true,
			Host:       cfg.EmailHost,
			Port:       cfg.EmailPort,
			Username:   cfg.EmailUsername,
			Password:   cfg.EmailPassword,
			From:       cfg.EmailFrom,
			Recipients: cfg.EmailRecipients,
		}, logger)
		logger.Info("email notifications enabled",
			slog.String("host", cfg.EmailHost),
			slog.Int("recipients", len(cfg.EmailRecipients)),
		)
	} else {
		logger.Info("email notifications disabled")
	}

	store := queue.NewStore(
		queue.WithMaxHistory(cfg.MaxHistory),
		queue.WithLogger(logger),
	)

	w := worker.New(store, notifier,
		worker.WithLogger(logger),
		worker.WithNotifyOnFailure(cfg.NotifyOnFailure),
		worker.WithQueueLowThreshold(cfg.QueueLowThreshold),
	)
	w.Start()
	defer w.Stop()

	srv := server.New(store, w, logger)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, logger)

	go func() {
		logger.Info("shellqueue HTTP starting", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-quit
	logger.Info("shutting down...")
	runCancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("stopped")
	return nil
}
