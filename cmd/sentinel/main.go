package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/verimem/sentinel/internal/alerting"
	"github.com/verimem/sentinel/internal/api"
	"github.com/verimem/sentinel/internal/checks"
	"github.com/verimem/sentinel/internal/config"
	"github.com/verimem/sentinel/internal/logging"
	"github.com/verimem/sentinel/internal/probe"
	"github.com/verimem/sentinel/internal/runner"
	"github.com/verimem/sentinel/internal/storage"
	"github.com/verimem/sentinel/internal/summary"
	"github.com/verimem/sentinel/internal/telegram"
	"github.com/verimem/sentinel/internal/tickets"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	flagStandalone bool
	flagNoAPI      bool
	flagAPIPort    int
)

var rootCmd = &cobra.Command{
	Use:     "sentinel",
	Short:   "Sentinel - continuous black-box monitor for the memory service",
	Long:    `Sentinel probes a deployed memory/retrieval service end to end, persists results, and raises alerts when checks fail repeatedly.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Sentinel %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVar(&flagStandalone, "standalone", false, "disable external alert sinks, log channel only")
	rootCmd.Flags().BoolVar(&flagNoAPI, "no-api", false, "do not start the query API server")
	rootCmd.Flags().IntVar(&flagAPIPort, "api-port", 0, "query API port (overrides SENTINEL_API_PORT)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.SilenceUsage = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runEngine() error {
	cfg := config.Load()
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     cfg.LogLevel,
		Component: "sentinel",
	})
	cfg.ValidateOperationalTags()

	log.Info().
		Str("version", Version).
		Str("target", cfg.TargetBaseURL).
		Str("environment", cfg.Environment).
		Dur("interval", cfg.CheckInterval).
		Msg("Sentinel starting")

	store, err := storage.New(storage.DefaultConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer store.Close()

	client := probe.New(cfg.TargetBaseURL, cfg.APIKey)
	active := checks.Active(client, cfg.EnabledChecks, checks.Options{})
	if len(active) == 0 {
		return fmt.Errorf("no checks enabled")
	}

	var sink *telegram.Sink
	channels := []alerting.Channel{alerting.LogChannel{}}
	if flagStandalone {
		log.Info().Msg("Standalone mode, external alert sinks disabled")
	} else {
		if cfg.TelegramConfigured() {
			sink = telegram.New(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.TelegramRateLimit)
			if sink.TestConnection() {
				log.Info().Msg("Telegram sink connected")
			} else {
				log.Warn().Msg("Telegram connectivity test failed, alerts will be retried per send")
			}
			channels = append(channels, alerting.TelegramChannel{Sink: sink})
		} else {
			log.Info().Msg("Telegram not configured, chat alerts disabled")
		}
		if cfg.TicketsConfigured() {
			channels = append(channels, alerting.TicketChannel{Client: tickets.New(cfg.GitHubToken, cfg.GitHubRepo)})
			log.Info().Str("repo", cfg.GitHubRepo).Msg("Ticket sink enabled")
		}
	}

	manager := alerting.New(store, channels, alerting.Config{
		ThresholdFailures: cfg.AlertThresholdFailures,
		FailureWindow:     cfg.FailureWindow,
		DedupWindow:       cfg.DedupWindow,
	})

	run := runner.New(runner.Config{Interval: cfg.CheckInterval}, store, manager, active)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := summary.New(store, sink, run.Reports(), cfg.SummaryInterval)
	go gen.Run(ctx)

	if sink != nil {
		go drainTelegramQueue(ctx, sink)
	}

	if !flagNoAPI {
		hub := api.NewHub(func() any { return run.StatusSummary() })
		go hub.Run(ctx)
		run.SetResultHook(hub.BroadcastResult)

		port := cfg.APIPort
		if flagAPIPort > 0 {
			port = flagAPIPort
		}
		server := api.NewServer(fmt.Sprintf(":%d", port), api.NewRouter(run, hub))
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("Query API server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	if err := run.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	log.Info().Msg("Sentinel stopped")
	return nil
}

// drainTelegramQueue periodically flushes messages deferred by rate limiting.
func drainTelegramQueue(ctx context.Context, sink *telegram.Sink) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sink.ProcessQueue(); n > 0 {
				log.Debug().Int("delivered", n).Msg("Drained deferred chat messages")
			}
		}
	}
}
