// Command filterserviced is the daemon entry point: wires the Config
// Provider, Log Facade, Metrics Registry, Reference List Store, Signal
// Router and Supervisor together, grounded on rclone's cmd/rclone cobra
// wiring and the original service's main().
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TransportDebuger/filterservice/internal/config"
	"github.com/TransportDebuger/filterservice/internal/logging"
	"github.com/TransportDebuger/filterservice/internal/metrics"
	"github.com/TransportDebuger/filterservice/internal/pidfile"
	"github.com/TransportDebuger/filterservice/internal/reflist"
	"github.com/TransportDebuger/filterservice/internal/signalrouter"
	"github.com/TransportDebuger/filterservice/internal/supervisor"
	"github.com/TransportDebuger/filterservice/internal/version"
)

const serviceName = "filterserviced"

type options struct {
	reload      bool
	daemon      bool
	configFile  string
	environment string
	overrides   []string
	logType     string
	logLevel    string
}

func main() {
	opts := &options{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "XML reference-list filtering daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.reload {
				return runReload()
			}
			return run(opts)
		},
	}
	root.Flags().BoolVarP(&opts.reload, "reload", "r", false, "read PID file, send reload signal, exit")
	root.Flags().BoolVar(&opts.daemon, "daemon", false, "detach from terminal, write PID file under /var/run")
	root.Flags().StringVar(&opts.configFile, "config-file", "", "path to configuration file")
	root.Flags().StringVar(&opts.environment, "environment", "production", "environment to merge")
	root.Flags().StringArrayVar(&opts.overrides, "override", nil, "KEY:VAL deep-patch override, repeatable")
	root.Flags().StringVar(&opts.logType, "log-type", "console", "comma-separated sinks: console,sync_file,async_file")
	root.Flags().StringVar(&opts.logLevel, "log-level", "info", "debug|info|warning|error|critical")
	root.SetVersionTemplate(fmt.Sprintf("%s version {{.Version}}\n", serviceName))

	if err := root.Execute(); err != nil {
		bootLog := logging.New()
		logging.NewConsoleSink(bootLog, logging.LevelCritical)
		bootLog.Criticalf("%v", err)
		os.Exit(1)
	}
}

func runReload() error {
	path := pidfile.Path(serviceName, true)
	data, err := os.ReadFile(path)
	if err != nil {
		path = pidfile.Path(serviceName, false)
		data, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reload: cannot read pid file: %w", err)
		}
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("reload: malformed pid file %s: %w", path, err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("reload: signal pid %d: %w", pid, err)
	}
	return nil
}

func run(opts *options) error {
	if opts.configFile == "" {
		return fmt.Errorf("--config-file is required")
	}

	if opts.daemon {
		isParent, err := pidfile.Daemonize()
		if err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
		if isParent {
			os.Exit(0)
		}
	}

	provider := config.NewProvider()
	if err := provider.Initialize(opts.configFile); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(opts.overrides) > 0 {
		ov := make(map[string]string)
		for _, kv := range opts.overrides {
			parts := strings.SplitN(kv, ":", 2)
			if len(parts) != 2 {
				return fmt.Errorf("--override must be KEY:VAL, got %q", kv)
			}
			ov[parts[0]] = parts[1]
		}
		if err := provider.ApplyOverrides(ov); err != nil {
			return fmt.Errorf("config override: %w", err)
		}
	}

	merged, err := provider.GetMerged(opts.environment)
	if err != nil {
		return fmt.Errorf("config merge: %w", err)
	}

	log := logging.New()
	attachSinks(log, merged.Logging, opts.logType, opts.logLevel)

	pid, err := pidfile.New(pidfile.Path(serviceName, opts.daemon))
	if err != nil {
		return fmt.Errorf("pidfile: %w", err)
	}
	if err := pid.Write(); err != nil {
		return fmt.Errorf("pidfile: %w", err)
	}
	defer pid.Remove()

	reg := metrics.New(serviceName)
	_ = reg.RegisterCounter("files_failed", "files routed to bad_dir after filter failure")
	_ = reg.RegisterCounter("workers_restarted", "worker restarts triggered by health checks")

	store := reflist.New(log)
	if refPath := firstComparisonListPath(merged); refPath != "" {
		if err := store.Initialize(refPath); err != nil {
			pid.Remove()
			return fmt.Errorf("reflist: %w", err)
		}
	}

	sup := supervisor.New(func() (config.Merged, error) {
		m, err := provider.GetMerged(opts.environment)
		if err != nil {
			return config.Merged{}, err
		}
		return *m, nil
	}, log, reg, store)

	router := signalrouter.New()
	shutdown := make(chan struct{})

	_ = router.Register(syscall.SIGTERM, func(os.Signal) { close(shutdown) })
	_ = router.Register(syscall.SIGINT, func(os.Signal) { close(shutdown) })
	_ = router.Register(syscall.SIGHUP, func(os.Signal) {
		txn := config.Begin(provider)
		if err := txn.Reload(); err != nil {
			log.Errorf("config reload failed: %v", err)
			return
		}
		txn.Commit()
		if err := sup.Reload(); err != nil {
			log.Errorf("supervisor reload failed: %v", err)
		}
		if store.IsInitialized() {
			if err := store.Reload(); err != nil {
				log.Errorf("reflist reload failed: %v", err)
			}
		}
	})
	router.Start()
	defer router.Stop()

	if err := sup.Start(); err != nil {
		router.Stop()
		pid.Remove()
		return fmt.Errorf("supervisor start: %w", err)
	}

	healthTicker := time.NewTicker(30 * time.Second)
	defer healthTicker.Stop()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-healthTicker.C:
			sup.HealthCheck()
		}
	}

	sup.Stop()
	return nil
}

func firstComparisonListPath(m *config.Merged) string {
	for _, src := range m.Sources {
		if src.ComparisonListPath != "" {
			return src.ComparisonListPath
		}
		if src.Filter.ComparisonListPath != "" {
			return src.Filter.ComparisonListPath
		}
	}
	return ""
}

// attachSinks prefers the configuration's logging section; when it is
// empty, falls back to the --log-type/--log-level CLI flags (console only,
// since file sinks require a path the CLI does not carry).
func attachSinks(log *logging.Facade, configured []config.LogSinkConfig, cliTypes, cliLevel string) {
	if len(configured) > 0 {
		for _, c := range configured {
			level, err := logging.ParseLevel(c.Level)
			if err != nil {
				level = logging.LevelInfo
			}
			switch c.Type {
			case "console":
				logging.NewConsoleSink(log, level)
			case "sync_file":
				logging.NewFileSink(log, level, c.Path, c.Fallback, rotationConfig(c))
			case "async_file":
				qsize := c.QueueSize
				if qsize <= 0 {
					qsize = 1024
				}
				logging.NewAsyncFileSink(log, level, c.Path, c.Fallback, rotationConfig(c), qsize)
			}
		}
		return
	}

	level, err := logging.ParseLevel(cliLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	for _, t := range strings.Split(cliTypes, ",") {
		if strings.TrimSpace(t) == "console" {
			logging.NewConsoleSink(log, level)
		}
	}
}

func rotationConfig(c config.LogSinkConfig) logging.RotationConfig {
	switch c.Rotation.Mode {
	case "size":
		return logging.RotationConfig{Mode: logging.RotationSize, MaxBytes: c.Rotation.MaxBytes}
	case "time":
		return logging.RotationConfig{Mode: logging.RotationTime, Interval: c.Rotation.Interval}
	default:
		return logging.RotationConfig{Mode: logging.RotationNone}
	}
}
