package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/dm/pmon/internal/client"
	"github.com/dm/pmon/internal/config"
	"github.com/dm/pmon/internal/engine"
	"github.com/dm/pmon/internal/model"
	"github.com/dm/pmon/internal/observability"
	"github.com/dm/pmon/internal/page"
	"github.com/dm/pmon/internal/recorder"
	"github.com/dm/pmon/internal/session"
	"github.com/dm/pmon/internal/tui"
	"github.com/dm/pmon/internal/web"
)

// stateTTL bounds how long an untouched page state survives in Redis.
const stateTTL = 30 * 24 * time.Hour

// options are the command-line settings that are not part of config.Config.
type options struct {
	insecure bool
}

// parseArgs applies command-line flags on top of cfg. Flags override the
// environment; only flags that were given are applied. The optional
// positional argument is the cluster directory.
func parseArgs(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("pmon", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts     options
		mode     = fs.String("mode", cfg.Mode, "tui (interactive dashboard) or serve (headless control loops + HTTP)")
		addr     = fs.String("addr", cfg.HTTPAddr, "HTTP listen address in serve mode")
		target   = fs.Duration("target", cfg.TargetInterval, "initial target refresh interval (>= 1s)")
		logLevel = fs.String("log-level", cfg.LogLevel, "debug, info, warn or error")
		logFile  = fs.String("log-file", cfg.LogFile, "log file in tui mode")
	)
	fs.BoolVar(&opts.insecure, "insecure", false, "skip TLS certificate verification for Redfish BMCs")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: pmon [--mode tui|serve] [--addr :8080] [--target 5s] [--insecure] [cluster-dir]\n\n")
		fmt.Fprintf(stderr, "examples:\n")
		fmt.Fprintf(stderr, "  pmon ./clusters\n")
		fmt.Fprintf(stderr, "  pmon --target 10s --insecure ./clusters\n")
		fmt.Fprintf(stderr, "  pmon --mode serve --addr :9100 ./clusters\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	// Reject extra positional arguments. Parse stops at the first non-flag
	// argument, so trailing --flags would also be silently ignored.
	rest := fs.Args()
	if len(rest) > 1 {
		extra := rest[1]
		if len(extra) > 1 && extra[0] == '-' {
			return opts, fmt.Errorf("flag %q must be placed before the cluster directory", extra)
		}
		return opts, fmt.Errorf("unexpected argument %q", extra)
	}
	if len(rest) == 1 {
		cfg.ClusterDir = rest[0]
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = *mode
		case "addr":
			cfg.HTTPAddr = *addr
		case "target":
			cfg.TargetInterval = *target
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-file":
			cfg.LogFile = *logFile
		}
	})
	return opts, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	opts, err := parseArgs(os.Args[1:], cfg, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Bubble Tea owns the terminal, so the dashboard logs to a file.
	logOut := io.Writer(os.Stderr)
	if cfg.Mode == config.ModeTUI {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, log); err != nil {
		log.Error("pmon stopped", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log *slog.Logger) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, closeSink, err := openRecordSink(cfg, log)
	if err != nil {
		return err
	}
	defer closeSink()

	var hub *web.Hub
	observers := []engine.Observer{observability.NewCollector()}
	if cfg.Mode == config.ModeServe {
		hub = web.NewHub(log)
		observers = append(observers, hub)
	}

	reg, err := page.Build(ctx, buildDeps(cfg, opts, store, sink, observers, hub, log))
	if err != nil {
		return fmt.Errorf("load clusters from %s: %w", cfg.ClusterDir, err)
	}

	if cfg.Mode == config.ModeServe {
		return serve(ctx, cfg, reg, hub, log)
	}

	app := tui.NewApp(ctx, reg, tui.Options{
		StatusConcurrency: cfg.PollConcurrency,
		Log:               log,
	})
	_, err = tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func serve(ctx context.Context, cfg *config.Config, reg *page.Registry, hub *web.Hub, log *slog.Logger) error {
	srv := web.NewServer(web.Config{
		Addr:              cfg.HTTPAddr,
		ActionRate:        cfg.ActionRate,
		ActionBurst:       cfg.ActionBurst,
		StatusConcurrency: cfg.PollConcurrency,
	}, reg, hub, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error { return reg.RunAll(gctx) })
	return g.Wait()
}

func buildDeps(cfg *config.Config, opts options, store session.Store, sink recorder.Sink,
	observers []engine.Observer, hub *web.Hub, log *slog.Logger) page.Deps {
	sched := engine.DefaultSchedulerConfig()
	sched.Samples = cfg.AvgSamples
	sched.Trim = cfg.AvgTrim

	return page.Deps{
		Dir: cfg.ClusterDir,
		Factory: client.NewFactory(client.Options{
			Timeout:            cfg.MgmtTimeout,
			InsecureSkipVerify: opts.insecure,
		}),
		Prober:      client.NewTCPProber(cfg.ProbeTimeout),
		Store:       store,
		Records:     sink,
		Scheduler:   sched,
		Concurrency: cfg.PollConcurrency,
		Target:      cfg.TargetInterval,
		AutoStart:   cfg.Mode == config.ModeServe,
		Wait:        engine.DefaultWaitPolicy(),
		Observers:   observers,
		OnStatus: func(pageKey, host string, s model.MachineStatus) {
			observability.ObserveStatus(pageKey, host, s)
			if hub != nil {
				hub.ObserveStatus(pageKey, host, s)
			}
		},
		OnAction: func(pageKey, host string, a page.Action, err error) {
			observability.ObserveAction(host, string(a), err)
			if hub != nil {
				hub.ObserveAction(pageKey, host, a, err)
			}
		},
		Log: log,
	}
}

// openStore returns the Redis store when an address is configured and the
// in-memory store otherwise.
func openStore(cfg *config.Config) (session.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return session.NewMemoryStore(), func() {}, nil
	}
	rs, err := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, stateTTL)
	if err != nil {
		return nil, nil, err
	}
	return rs, func() { _ = rs.Close() }, nil
}

// openRecordSink opens the SQLite record mirror when a path is configured.
// Without one the returned sink is a nil interface and records stay in
// memory.
func openRecordSink(cfg *config.Config, log *slog.Logger) (recorder.Sink, func(), error) {
	if cfg.RecordDB == "" {
		return nil, func() {}, nil
	}
	db, err := recorder.OpenSQLite(cfg.RecordDB, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open record db: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}
