package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/codefionn/pulseterm/internal/cli"
	"github.com/codefionn/pulseterm/internal/config"
	"github.com/codefionn/pulseterm/internal/consts"
	"github.com/codefionn/pulseterm/internal/features"
	"github.com/codefionn/pulseterm/internal/logger"
	"github.com/codefionn/pulseterm/internal/metrics"
	"github.com/codefionn/pulseterm/internal/pprof"
	"github.com/codefionn/pulseterm/internal/session"
	"github.com/codefionn/pulseterm/internal/socketclient"
	"github.com/codefionn/pulseterm/internal/tui"
	"github.com/codefionn/pulseterm/internal/web"
)

// options are the parsed command line
type options struct {
	configPath  string
	host        string
	port        int
	logLevel    string
	metricsAddr string
	pprofAddr   string
	cpuProfile  string
	question    string
	ask         bool
	serveMock   bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	opts, parseErr := parseArgs(os.Args[1:])
	if parseErr != nil {
		if errors.Is(parseErr, flag.ErrHelp) {
			return nil
		}
		return parseErr
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()
	slog.SetDefault(logger.Slog(logger.Global()))

	logger.Info("%s starting", consts.AppName)
	logger.Debug("Configuration loaded: endpoint=%s, log_level=%s, log_path=%s", cfg.Endpoint(), cfg.LogLevel, cfg.LogPath)

	if opts.pprofAddr != "" || opts.cpuProfile != "" {
		profiler := pprof.NewHandler(pprof.Config{HTTPAddr: opts.pprofAddr, CPUProfile: opts.cpuProfile})
		if err := profiler.Start(); err != nil {
			return err
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				logger.Warn("profiling: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.serveMock {
		return runStandIn(ctx, cfg)
	}

	flags := features.NewFeatureFlags()
	flags.SetMarkdownEnabled(cfg.Markdown)
	flags.SetAnimationsEnabled(!cfg.DisableAnimations)
	flags.SetFailStreamOnDisconnect(cfg.FailStreamOnDisconnect)

	go watchConfig(ctx, opts.configPath, flags)

	collector := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := collector.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("metrics endpoint: %v", err)
			}
		}()
	}

	client, err := socketclient.New(&socketclient.Config{
		URL:            cfg.Endpoint(),
		ConnectTimeout: cfg.DialTimeout(),
		WriteTimeout:   consts.Timeout10Seconds,
		ReadLimit:      consts.BufferSize64KB,
		BaseDelay:      cfg.BaseDelay(),
		MaxDelay:       cfg.MaxDelay(),
		MaxRetries:     cfg.Reconnect.MaxRetries,
	}, socketclient.WithObserver(collector))
	if err != nil {
		return fmt.Errorf("failed to create connection manager: %w", err)
	}
	defer client.Disconnect()

	sess := session.New(client,
		session.WithFeatures(flags),
		session.WithRecorder(collector),
	)
	sess.Attach(client)

	if opts.ask {
		logger.Info("Running in CLI mode")
		runner := cli.New(client, sess, &cli.Options{ConnectTimeout: cfg.DialTimeout()})
		return runner.Run(ctx, opts.question)
	}

	logger.Info("Running in TUI mode")
	model := tui.New(sess, client, flags)
	client.Connect()
	return tui.Run(model)
}

func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet(consts.AppName, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", config.GetConfigPath(), "Path to the configuration file")
	fs.StringVar(&opts.host, "host", "", "Query service host (overrides config)")
	fs.IntVar(&opts.port, "port", 0, "Query service port (overrides config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	fs.StringVar(&opts.metricsAddr, "metrics", "", "Expose Prometheus metrics on this address, e.g. localhost:2112")
	fs.StringVar(&opts.pprofAddr, "pprof", "", "Serve runtime profiles on this address, e.g. localhost:6060")
	fs.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	fs.StringVar(&opts.question, "p", "", "Ask one question, print the answer and exit")
	fs.BoolVar(&opts.serveMock, "serve-mock", false, "Run the local stand-in query service instead of the client")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(fs.Output(), "       %s [options] ask \"your question\"\n\n", os.Args[0])
		fmt.Fprintln(fs.Output(), "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	remaining := fs.Args()
	if len(remaining) > 0 {
		if remaining[0] != "ask" {
			fs.Usage()
			return nil, fmt.Errorf("unknown command %q", remaining[0])
		}
		if opts.question != "" {
			return nil, errors.New("use either -p or ask, not both")
		}
		opts.question = strings.Join(remaining[1:], " ")
		opts.ask = true
	} else if opts.question != "" {
		opts.ask = true
	}

	if opts.ask && strings.TrimSpace(opts.question) == "" {
		return nil, errors.New("question must not be empty")
	}
	if opts.ask && opts.serveMock {
		return nil, errors.New("-serve-mock cannot be combined with a question")
	}

	return opts, nil
}

// loadConfig reads the config file and applies environment and flag overrides
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if opts.host != "" {
		cfg.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// watchConfig applies log level and display settings when the file changes
func watchConfig(ctx context.Context, path string, flags *features.FeatureFlags) {
	err := config.Watch(ctx, path, func(cfg *config.Config) {
		logger.Global().SetLevel(logger.ParseLevel(cfg.LogLevel))
		flags.SetMarkdownEnabled(cfg.Markdown)
		flags.SetAnimationsEnabled(!cfg.DisableAnimations)
		flags.SetFailStreamOnDisconnect(cfg.FailStreamOnDisconnect)
		logger.Info("configuration reloaded")
	})
	if err != nil {
		logger.Debug("config watcher not running: %v", err)
	}
}

// runStandIn serves the local stand-in service on the configured endpoint
func runStandIn(ctx context.Context, cfg *config.Config) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	srv := web.NewServer(addr, &web.EchoResponder{TokenDelay: 40 * time.Millisecond, Sources: 6})
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Stand-in query service listening on %s (Ctrl+C to stop)\n", srv.URL())

	<-ctx.Done()
	return srv.Stop()
}
