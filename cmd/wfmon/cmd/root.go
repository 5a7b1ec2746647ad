package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mjstealey/workflow-monitor/internal/braindump"
	"github.com/mjstealey/workflow-monitor/internal/condor"
	"github.com/mjstealey/workflow-monitor/internal/config"
	"github.com/mjstealey/workflow-monitor/internal/display"
	"github.com/mjstealey/workflow-monitor/internal/logger"
	"github.com/mjstealey/workflow-monitor/internal/monitor"
	"github.com/mjstealey/workflow-monitor/internal/observability"
	"github.com/mjstealey/workflow-monitor/internal/store/sqlite"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wfmon [target]",
	Short: "Live terminal monitor for a running batch workflow",
	Long: `wfmon reconstructs the current status of a planned workflow from the
stampede event database written by the monitor daemon, optionally
cross-references the live HTCondor queue, and refreshes the view until
the workflow terminates.

TARGET may be:
  - a submit directory (contains braindump.yml)
  - a workflow base directory (latest run is discovered automatically)
  - a braindump.yml file directly

Configuration:
  Every flag may also be set via a WFMON_ environment variable, e.g.
    WFMON_INTERVAL=5  WFMON_COLLECTOR=cm.example.org:9618`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMonitor,
}

func Execute() error {
	return rootCmd.Execute()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}

	opts, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	// Both fatal conditions happen here, before the refresh loop starts.
	info, err := braindump.Load(target)
	if err != nil {
		if errors.Is(err, braindump.ErrNotFound) {
			return fmt.Errorf("workflow not found: %w", err)
		}
		return err
	}
	dbPath, ok := info.StampedeDB()
	if !ok {
		return fmt.Errorf(
			"event database not found: %s\nthe workflow was planned but monitoring has not produced a database yet (is the monitor daemon running?)",
			dbPath)
	}

	log := logger.WithWorkflow(logger.New(opts.Debug), info.DaxLabel, info.WfUUID)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *observability.MonitorMetrics
	if opts.MetricsAddr != "" {
		handler, shutdown, err := observability.InitMetrics()
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer shutdown(context.Background())

		metrics, err = observability.NewMonitorMetrics()
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}

		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", handler)
			log.Info("metrics listening", "addr", opts.MetricsAddr)
			if err := http.ListenAndServe(opts.MetricsAddr, mux); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}
	if opts.OTELEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, "wfmon", opts.OTELEndpoint)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown(context.Background())
	}

	st, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	queue := condor.NewClient(condor.Options{
		Constraint:   opts.Constraint,
		ScheddName:   opts.Schedd,
		Collector:    opts.Collector,
		TokenPath:    opts.TokenPath,
		CertPath:     opts.CertPath,
		KeyPath:      opts.KeyPath,
		PasswordFile: opts.PasswordFile,
	})

	renderer := display.New(cmd.OutOrStdout(), info, opts.AllJobs, opts.Events, !opts.Once)

	m := monitor.New(st, queue.Query, renderer, monitor.Config{
		Interval:   opts.Interval,
		EventLimit: opts.Events,
		Once:       opts.Once,
	}, log, metrics)

	return m.Run(ctx)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".wfmon")
			viper.SetConfigType("yaml")
		}
	}

	config.BindEnv(viper.GetViper())

	// A config file is optional.
	_ = viper.ReadInConfig()
}

func bindFlags() {
	flags := rootCmd.Flags()
	for _, name := range []string{
		"interval", "events", "all-jobs", "once",
		"schedd", "collector", "constraint",
		"token", "cert", "key", "password-file",
		"metrics-addr", "otel-endpoint", "debug",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wfmon.yaml)")

	rootCmd.Flags().Float64P("interval", "i", 2.0, "refresh interval in seconds")
	rootCmd.Flags().IntP("events", "e", 15, "number of recent events to display")
	rootCmd.Flags().BoolP("all-jobs", "a", false, "show all job types, not just compute jobs")
	rootCmd.Flags().Bool("once", false, "print current status once and exit")

	rootCmd.Flags().String("schedd", "", "query a specific condor_schedd by name")
	rootCmd.Flags().String("collector", "", "collector host[:port] for remote pool queries")
	rootCmd.Flags().String("constraint", "", "ClassAd expression to filter live-queue jobs")
	rootCmd.Flags().String("token", "", "path to an HTCondor IDTOKEN file or directory")
	rootCmd.Flags().String("cert", "", "path to an X.509 / GSI certificate file")
	rootCmd.Flags().String("key", "", "path to an X.509 / GSI private key file")
	rootCmd.Flags().String("password-file", "", "path to an HTCondor password file")

	rootCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (off when empty)")
	rootCmd.Flags().String("otel-endpoint", "", "export poll-cycle traces to this OTLP gRPC endpoint (off when empty)")
	rootCmd.Flags().Bool("debug", false, "enable debug logging")

	bindFlags()
}
