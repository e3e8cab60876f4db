package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	tea "charm.land/bubbletea/v2"
	"github.com/workping/admin-cli/api"
	"github.com/workping/admin-cli/auth"
	"github.com/workping/admin-cli/tui"
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
}

// app holds everything a command needs.
type app struct {
	cfg      *Config
	d        tui.Displayer
	log      *slog.Logger
	out      io.Writer
	store    *auth.TokenStore
	manager  *auth.Manager
	api      *api.Client
	registry *prometheus.Registry
	cleared  <-chan struct{}
	closers  []func() error
}

// clearWatcher forwards session events to the Displayer and closes cleared
// the first time the session is dropped.
type clearWatcher struct {
	tui.Displayer
	once    sync.Once
	cleared chan struct{}
}

func (w *clearWatcher) SessionCleared() {
	w.Displayer.SessionCleared()
	w.once.Do(func() { close(w.cleared) })
}

func newApp(cfg *Config, d tui.Displayer, log *slog.Logger, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, d: d, log: log, out: out, registry: prometheus.NewRegistry()}

	backend, err := a.newBackend()
	if err != nil {
		return nil, err
	}
	a.store = auth.NewTokenStore(backend, log)

	// Initialize HTTP client
	baseHTTPClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	// Wrap with retry logic using go-httpretry; used for login and password calls only
	retryClient, err := retry.NewBackgroundClient(
		retry.WithHTTPClient(baseHTTPClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}

	watcher := &clearWatcher{Displayer: d, cleared: make(chan struct{})}
	a.cleared = watcher.cleared

	a.manager, err = auth.NewManager(a.store, auth.Config{
		BaseURL:     cfg.ServerURL,
		HTTPClient:  baseHTTPClient,
		RetryClient: retryClient,
		Logger:      log,
		Observer:    watcher,
		Metrics:     auth.NewMetrics(a.registry),
	})
	if err != nil {
		return nil, err
	}

	a.api = api.New(cfg.ServerURL, &http.Client{
		Timeout:   30 * time.Second,
		Transport: a.manager.Transport(baseHTTPClient.Transport),
	})
	return a, nil
}

func (a *app) newBackend() (auth.Backend, error) {
	switch a.cfg.Store {
	case storeMemory:
		return auth.NewMemoryBackend(), nil
	case storeRedis:
		opts, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, rdb.Close)
		return auth.NewRedisBackend(rdb, a.cfg.RedisPrefix), nil
	default:
		// One file can hold sessions for several servers.
		return auth.NewFileBackend(a.cfg.TokenFile, a.cfg.ServerURL), nil
	}
}

func (a *app) close() {
	a.manager.Scheduler().Stop()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Debug("close failed", "error", err)
		}
	}
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		w := fs.Output()
		fmt.Fprintln(w, "Usage: workping-admin [global flags] <command> [flags]")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Commands:")
		for _, c := range commands {
			fmt.Fprintf(w, "  %-16s %s\n", c.name, c.summary)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Global flags:")
		fs.PrintDefaults()
	}
}

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	fs := flag.NewFlagSet("workping-admin", flag.ContinueOnError)
	gf := newGlobalFlags(fs)
	fs.Usage = usage(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, ok := lookupCommand(fs.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(gf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	level, _ := cfg.slogLevel()

	// Warn if using HTTP instead of HTTPS
	if strings.HasPrefix(strings.ToLower(cfg.ServerURL), "http://") {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		fmt.Fprintln(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd.interactive && isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		// The TUI owns the terminal; log lines would tear it.
		runErr := run(ctx, cmd, cfg, tui.NewProgramDisplayer(p), newLogger(io.Discard, level), fs.Args()[1:])
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		return exitCode(runErr)
	}

	d := tui.NewPlainDisplayer(os.Stderr)
	return exitCode(run(ctx, cmd, cfg, d, newLogger(os.Stderr, level), fs.Args()[1:]))
}

func run(
	ctx context.Context,
	cmd command,
	cfg *Config,
	d tui.Displayer,
	log *slog.Logger,
	args []string,
) error {
	a, err := newApp(cfg, d, log, os.Stdout)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer a.close()

	if err := cmd.run(ctx, a, args); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			d.Fatal(err)
		}
		return err
	}
	return nil
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		return 1
	}
}
