package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/internal/telemetry"
	"github.com/eclipse-pass/depositsvc/pkg/adminapi"
	"github.com/eclipse-pass/depositsvc/pkg/aggregate"
	"github.com/eclipse-pass/depositsvc/pkg/archiver"
	"github.com/eclipse-pass/depositsvc/pkg/config"
	"github.com/eclipse-pass/depositsvc/pkg/cri"
	depositpkg "github.com/eclipse-pass/depositsvc/pkg/deposit"
	"github.com/eclipse-pass/depositsvc/pkg/dispatch"
	"github.com/eclipse-pass/depositsvc/pkg/errhandler"
	"github.com/eclipse-pass/depositsvc/pkg/ingress"
	"github.com/eclipse-pass/depositsvc/pkg/metrics"
	_ "github.com/eclipse-pass/depositsvc/pkg/metrics/prometheus"
	"github.com/eclipse-pass/depositsvc/pkg/status"
	"github.com/eclipse-pass/depositsvc/pkg/store/gormstore"
	"github.com/spf13/cobra"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the deposit service",
	Long: `Start the deposit orchestration service with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/depositsvc/config.yaml.

Examples:
  # Start in background (default)
  depositsvc start

  # Start in foreground
  depositsvc start --foreground

  # Start with custom config file
  depositsvc start --config /etc/depositsvc/config.yaml

  # Start with environment variable overrides
  DEPOSITSVC_LOGGING_LEVEL=DEBUG depositsvc start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/depositsvc/depositsvc.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/depositsvc/depositsvc.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceVersion = Version
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingCfg := cfg.Profiling
	profilingCfg.ServiceVersion = Version
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("depositsvc - deposit orchestration service")
	logger.Info("log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Profiling.Endpoint, "profile_types", cfg.Profiling.ProfileTypes)
	} else {
		logger.Info("profiling disabled")
	}

	rs, err := gormstore.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer func() { _ = rs.Close() }()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}
	criOptions := cri.Options{Metrics: metrics.NewCRIMetrics()}

	resolver := config.NewConfigResolver(rs, cfg.Repositories, http.DefaultClient)
	errHandler := errhandler.New(rs)
	errHandler.Options = criOptions

	depositRunner := depositpkg.New(rs, resolver, FilesystemSubmissionLoader{}, errHandler)
	depositRunner.CRIOptions = criOptions
	depositRunner.PkgMetrics = metrics.NewPackageStreamMetrics()

	if cfg.Archiver.Enabled {
		auditArchiver, err := archiver.NewFromConfig(ctx, cfg.Archiver)
		if err != nil {
			return fmt.Errorf("failed to initialize audit archiver: %w", err)
		}
		depositRunner.Archiver = auditArchiver
		logger.Info("audit archiver enabled", "bucket", cfg.Archiver.Bucket)
	} else {
		logger.Info("audit archiver disabled")
	}

	pool := dispatch.NewPool(depositRunner, dispatch.PoolConfig{
		QueueSize: cfg.Dispatch.QueueSize,
		Workers:   cfg.Dispatch.Workers,
	})
	pool.SetMetrics(metrics.NewDispatchMetrics())
	pool.Start(ctx)
	defer pool.Stop(cfg.ShutdownTimeout)

	dispatcher := dispatch.New(rs, pool)
	dispatcher.CRIOptions = criOptions

	statusResolver := status.New(rs, status.NewHTTPFetcher(http.DefaultClient), resolver)
	statusResolver.RetryPolicy = status.RetryPolicy{
		InitialDelay: cfg.Status.InitialDelay,
		Factor:       cfg.Status.Factor,
		MaxDelay:     cfg.Status.MaxDelay,
		TotalCap:     cfg.Status.TotalCap,
	}
	statusResolver.CRIOptions = criOptions
	statusResolver.Metrics = metrics.NewStatusMetrics()

	source := ingress.NewChannelSource(256)
	subscriber := ingress.New(rs, source, dispatcher, statusResolver, ingress.Config{
		Workers:      cfg.Ingress.Workers,
		DrainTimeout: cfg.Ingress.DrainTimeout,
	})
	subscriber.Start(ctx)
	defer subscriber.Stop()

	aggregator := aggregate.New(rs, cfg.Aggregate.Interval)
	aggregator.CRIOptions = criOptions
	aggregator.Metrics = metrics.NewAggregateMetrics()
	aggregator.Start(ctx)
	defer aggregator.Stop(cfg.ShutdownTimeout)

	adminRouter := adminapi.NewRouter(rs, adminapi.Config{
		OperatorSecret: cfg.AdminAPI.OperatorSecret,
		Issuer:         cfg.AdminAPI.Issuer,
	})
	httpServer := &http.Server{
		Addr:    cfg.AdminAPI.ListenAddr,
		Handler: adminRouter,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metricsMux,
		}
		go func() {
			logger.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "addr", cfg.AdminAPI.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("depositsvc is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin API shutdown error", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
		}
		cancel()
		<-serverDone
		logger.Info("depositsvc stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		cancel()
		if err != nil {
			logger.Error("admin API error", "error", err)
			return err
		}
		logger.Info("depositsvc stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// startDaemon starts the server as a background daemon process.
func startDaemon() error {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	depositsvcStateDir := filepath.Join(stateDir, "depositsvc")

	if err := os.MkdirAll(depositsvcStateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = filepath.Join(depositsvcStateDir, "depositsvc.pid")
	}

	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("depositsvc is already running (PID %d)\nUse 'depositsvc stop' to stop the running instance", pid)
					}
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	logPath := logFile
	if logPath == "" {
		logPath = filepath.Join(depositsvcStateDir, "depositsvc.log")
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	cmd := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	_ = logFileHandle.Close()

	fmt.Printf("depositsvc started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'depositsvc stop' to stop the server")
	fmt.Println("Use 'depositsvc status' to check server status")

	return nil
}
