package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/csc/internal/engine"
	"github.com/roach88/csc/internal/metrics"
	"github.com/roach88/csc/internal/session"
	"github.com/roach88/csc/internal/verb"
	"github.com/roach88/csc/internal/watch"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Events         string // "-" reads stdin
	Watch          bool
	MetricsAddr    string
	Database       string
	Journal        string
	RunID          string
	AllowAnyWindow bool

	// RunIDGenerator overrides the run id source (for testing).
	RunIDGenerator engine.RunIDGenerator
	// DebounceInterval overrides watch.DefaultInterval (for testing).
	DebounceInterval time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <spec>",
		Short: "Evaluate a live stream of events",
		Long: `Evaluate JSONL events as they arrive and print one result per window.

Events are read from stdin by default, one {"window": ..., "snapshot": {...}}
or {"advance": ...} object per line. With --watch, edits to the spec file are
recompiled and swapped in between windows; a spec that fails to compile is
logged and the running rules are kept. With --metrics-addr, Prometheus
metrics are served on /metrics.

Examples:
  simulator | csc serve strategy.yaml --format json
  csc serve strategy.yaml --events session.jsonl --watch --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Events, "events", "-", "JSONL event stream (- for stdin)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload the spec when the file changes")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "SQLite attempt store (env CSC_DB)")
	cmd.Flags().StringVar(&opts.Journal, "journal", rootOpts.Config.Journal, "append attempts to a JSONL journal (env CSC_JOURNAL)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id (default: generated UUIDv7)")
	cmd.Flags().BoolVar(&opts.AllowAnyWindow, "allow-any-window", false, "accept window names outside the standard set")

	return cmd
}

func runServe(opts *ServeOptions, specPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	reg := verb.DefaultRegistry()
	loaded, err := CompileSpec(specPath, reg)
	if err != nil {
		return specFailure(formatter, err)
	}

	input, closeInput, err := openEventStream(opts.Events, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeEvents, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open events", err)
	}
	defer closeInput()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runID := opts.RunID
	if runID == "" {
		gen := opts.RunIDGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		runID = gen.Generate()
	}

	sinks, closeSinks, err := openSinks(ctx, opts.Database, opts.Journal, runID, loaded)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer closeSinks()

	m := metrics.New(opts.Config.MetricsNamespace, nil)
	eng := engine.New(loaded.Rules, reg, sinks, engine.WithObserver(m))

	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(opts.MetricsAddr, m)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
		defer stop()
	}

	if opts.Watch {
		w, err := watch.New(specPath, opts.DebounceInterval)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to watch spec", err)
		}
		defer w.Close()
		go func() {
			if err := w.Watch(ctx, newReloader(specPath, reg, eng, m)); err != nil {
				slog.Error("spec watcher stopped", "error", err)
			}
		}()
	}

	slog.Info("serving", "run_id", runID, "spec", specPath, "rules", len(loaded.Rules))

	emit := windowEmitter(formatter)
	done := make(chan error, 1)
	go func() {
		done <- session.Stream(ctx, input, eng, session.Options{AllowAnyWindow: opts.AllowAnyWindow}, emit)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			_ = formatter.Error(ErrCodeEvents, err.Error(), nil)
			return WrapExitError(ExitFailure, "event stream failed", err)
		}
	case <-ctx.Done():
	}

	slog.Info("serve stopped", "run_id", runID)
	return nil
}

// newReloader recompiles the spec and swaps it into eng. A spec that fails
// to compile leaves the running rules in place.
func newReloader(specPath string, reg *verb.Registry, eng *engine.Engine, m *metrics.EngineMetrics) func() error {
	return func() error {
		loaded, err := CompileSpec(specPath, reg)
		m.RecordReload(err)
		if err != nil {
			return err
		}
		eng.Swap(loaded.Rules)
		slog.Info("spec reloaded", "path", specPath, "rules", len(loaded.Rules), "spec_hash", loaded.Hash)
		return nil
	}
}

func openEventStream(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// windowEmitter prints each window outcome as it happens: a JSON object per
// line in json format, the run command's line layout otherwise.
func windowEmitter(formatter *OutputFormatter) func(session.Outcome) error {
	enc := json.NewEncoder(formatter.Writer)
	return func(o session.Outcome) error {
		out := WindowOutput{Line: o.Line, Window: o.Window, RollIndex: o.RollIndex}
		if o.Intent != nil {
			out.RuleID = o.RuleID
			out.Intent = o.Intent.Map()
		}
		if formatter.JSON() {
			return enc.Encode(out)
		}
		if out.Intent == nil {
			_, err := fmt.Fprintf(formatter.Writer, "line %d %s roll %d → none\n", out.Line, out.Window, out.RollIndex)
			return err
		}
		_, err := fmt.Fprintf(formatter.Writer, "line %d %s roll %d → %s [%s]\n",
			out.Line, out.Window, out.RollIndex, formatIntent(out.Intent), out.RuleID)
		return err
	}
}

// serveMetrics starts the metrics endpoint and returns a shutdown func.
func serveMetrics(addr string, m *metrics.EngineMetrics) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return nil, err
	case <-time.After(50 * time.Millisecond):
	}
	slog.Info("metrics server listening", "addr", addr)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown", "error", err)
		}
	}, nil
}
