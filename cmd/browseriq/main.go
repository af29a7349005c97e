package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"browseriq/internal/config"
	"browseriq/internal/llm"
	"browseriq/internal/logging"
	"browseriq/internal/metrics"
	"browseriq/internal/monitor"
	"browseriq/internal/report"
)

var version = "dev"

var (
	configPath string
	debug      bool
	duration   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "browseriq",
	Short: "browseriq - AI-powered browser test monitoring",
	Long: `browseriq attaches to a running browser, captures console, network,
and exception events during test execution, and uses a language model
(hosted OpenAI-compatible or local Ollama) to turn them into actionable
findings and per-session reports.`,
	SilenceUsage: true,
}

var monitorCmd = &cobra.Command{
	Use:   "monitor <url>",
	Short: "Monitor a page until interrupted and write its report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, err := llm.New(cfg)
		if err != nil {
			return err
		}

		sink, err := report.NewJSONSink(cfg.ReportDir)
		if err != nil {
			return fmt.Errorf("failed to create report sink: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.MetricsAddr != "" {
			srv, err := serveMetrics(cfg.MetricsAddr)
			if err != nil {
				return err
			}
			defer srv.Close()
		}

		m := monitor.New(cfg, client, sink)

		if !client.IsAvailable(ctx) {
			fmt.Fprintf(os.Stderr, "warning: %s backend not reachable, analyses will fail until it comes up\n", cfg.Provider)
		}

		browser := rod.New().Context(ctx)
		if err := browser.Connect(); err != nil {
			return fmt.Errorf("failed to connect to browser: %w", err)
		}
		defer browser.Close()

		page, err := browser.Page(proto.TargetCreateTarget{URL: args[0]})
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}

		sessionID, err := m.StartMonitoring(ctx, page, "")
		if err != nil {
			return err
		}
		fmt.Printf("monitoring %s (session %s), press Ctrl-C to stop\n", args[0], sessionID)

		if duration > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(duration):
			}
		} else {
			<-ctx.Done()
		}

		m.StopMonitoring(sessionID)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}

		if path := m.GenerateReport(); path != "" {
			fmt.Printf("comprehensive report: %s\n", path)
		}
		printStats(m.Stats())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the browseriq version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("browseriq %s\n", version)
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if cfg.Debug {
		if err := logging.Initialize(cfg.LogDir, cfg.LogLevel); err != nil {
			return nil, err
		}
		logging.Boot("browseriq %s starting: provider=%s", version, cfg.Provider)
	}
	return cfg, nil
}

// serveMetrics registers the browseriq collectors on a fresh registry and
// exposes them at /metrics on addr.
func serveMetrics(addr string) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
	fmt.Printf("metrics exposed at http://%s/metrics\n", addr)
	return srv, nil
}

func printStats(stats monitor.Stats) {
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(out))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "browseriq.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	monitorCmd.Flags().DurationVar(&duration, "duration", 0, "stop automatically after this long (0 = run until interrupted)")

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	defer logging.CloseAll()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
