package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"webtrace/internal/browser"
	"webtrace/internal/capture"
	"webtrace/internal/config"
	"webtrace/internal/logging"
	"webtrace/internal/registry"
	"webtrace/internal/sink"
)

const version = "0.1.0"

var (
	verbose    bool
	configPath string
	duration   time.Duration

	cfg    config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "webtrace",
	Short: "webtrace - network capture instrumentation for browser tests",
	Long: `webtrace brackets browser-driven test runs with network capture.

It opens a DevTools channel against a fresh browser session, records every
request and response the run provokes, and flushes the captured activity to
a per-run log when the run ends - whether it completed or failed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging.Level, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// recordCmd runs one capture lifecycle around a navigation
var recordCmd = &cobra.Command{
	Use:   "record [url]",
	Short: "Record the network activity of one page visit",
	Long: `Starts a browser session, navigates to the URL, and records every
network request and response until the duration elapses or Ctrl+C is hit.
The captured activity is flushed to the configured sink on exit.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the webtrace version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("webtrace %s\n", version)
	},
}

func runRecord(cmd *cobra.Command, args []string) error {
	url := args[0]
	logger.Info("recording network activity", zap.String("url", url), zap.Duration("duration", duration))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drv := browser.NewDriver(cfg.Browser, logger)
	if err := drv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() { _ = drv.Shutdown(context.Background()) }()

	snk, err := buildSink()
	if err != nil {
		return err
	}

	reg := registry.Default()
	lc := capture.New(drv, browser.NewNetworkFeed(logger), reg, snk, logger)

	runName := fmt.Sprintf("record-%s", time.Now().Format("150405"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return capture.Run(ctx, lc, runName, func() error {
			cur, ok := reg.Current()
			if !ok {
				return fmt.Errorf("no current session")
			}
			if err := drv.Navigate(ctx, cur, url); err != nil {
				return fmt.Errorf("navigate to %s: %w", url, err)
			}
			select {
			case <-time.After(duration):
			case <-ctx.Done():
			}
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("capture flushed", zap.String("run", runName), zap.String("sink", cfg.Capture.Sink))
	return nil
}

func buildSink() (sink.Sink, error) {
	switch cfg.Capture.Sink {
	case config.SinkFile:
		return sink.NewFileSink(cfg.Capture.LogDir), nil
	case config.SinkConsole:
		return sink.NewConsoleSink(nil), nil
	case config.SinkLog:
		return sink.NewLogSink(logger), nil
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Capture.Sink)
	}
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "webtrace.yaml", "path to config file")
	recordCmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to keep recording after navigation")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
