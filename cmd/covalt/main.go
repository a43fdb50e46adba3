package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/SethBurkart123/covalt/pkg/api"
	"github.com/SethBurkart123/covalt/pkg/executor"
	"github.com/SethBurkart123/covalt/pkg/flow"
	"github.com/SethBurkart123/covalt/pkg/flow/catalog"
	"github.com/SethBurkart123/covalt/pkg/graphdb"

	// Register all LLM providers via their init() functions.
	_ "github.com/SethBurkart123/covalt/pkg/llm/providers"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	root := &cobra.Command{
		Use:   "covalt",
		Short: "Covalt — visual agent flow editor and runner",
		Long: `Covalt edits and executes agent flow graphs.

Nodes are typed (agents, models, tools, data transforms) and wired
through coercing sockets. Graphs run in dependency order, with cached
node outputs reused across runs where the plan allows.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initLogger(logLevel, logFormat)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())
	root.AddCommand(lintCmd())
	root.AddCommand(graphCmd())
	return root
}

// ─── serve ────────────────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	var (
		addr       string
		dbPath     string
		catalogDir string
		watch      bool
	)

	var graphPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the flow editor API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs, err := buildDefinitions(catalogDir)
			if err != nil {
				return err
			}
			store := flow.NewStore(defs)

			if graphPath != "" {
				if err := loadGraphFile(store, graphPath); err != nil {
					return err
				}
			}

			eng, err := buildEngine()
			if err != nil {
				return err
			}

			db, err := graphdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if watch && catalogDir != "" {
				stop, err := catalog.Watch(catalogDir, slog.Default(), store.ReplaceDefinitions)
				if err != nil {
					return err
				}
				defer stop()
			}
			if watch && graphPath != "" {
				stop, err := watchGraphFile(graphPath, store)
				if err != nil {
					return err
				}
				defer stop()
			}

			srv := &http.Server{
				Addr:    addr,
				Handler: api.New(store, eng, db, slog.Default()),
			}

			ctx := signalContext(cmd.Context())
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			slog.Info("serving", "addr", addr, "db", dbPath)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&dbPath, "db", "covalt.db", "path to the SQLite database")
	cmd.Flags().StringVar(&catalogDir, "catalog", "", "directory of extra node definition YAML files")
	cmd.Flags().StringVar(&graphPath, "graph", "", "workspace graph file to load into the editor")
	cmd.Flags().BoolVar(&watch, "watch", false, "hot-reload the catalog directory and graph file on changes")
	return cmd
}

// ─── run ──────────────────────────────────────────────────────────────────────

func runCmd() *cobra.Command {
	var (
		message         string
		dbPath          string
		graphName       string
		target          string
		trigger         string
		outPath         string
		continueOnError bool
	)

	cmd := &cobra.Command{
		Use:   "run <graph.json>",
		Short: "Execute a flow graph from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read graph file: %w", err)
			}
			g, err := flow.ParseGraph(src)
			if err != nil {
				return err
			}

			eng, err := buildEngine()
			if err != nil {
				return err
			}

			opts := executor.RunOptions{
				UserMessage:     message,
				ContinueOnError: continueOnError,
				OnEvent: func(ev executor.Event) {
					slog.Info("run event", "node", ev.NodeID, "type", ev.NodeType, "event", ev.Type)
				},
			}

			var db *graphdb.DB
			if dbPath != "" {
				db, err = graphdb.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
			}
			if target != "" && db != nil && graphName != "" {
				defs, err := buildDefinitions("")
				if err != nil {
					return err
				}
				cached, err := db.CachedOutputs(graphName)
				if err != nil {
					return err
				}
				cachedIDs := make([]string, 0, len(cached))
				for id := range cached {
					cachedIDs = append(cachedIDs, id)
				}
				plan := flow.PlanRun(flow.PlanRequest{
					Target:          target,
					Nodes:           g.Nodes,
					Edges:           g.Edges,
					CachedOutputIDs: cachedIDs,
					FiringTrigger:   trigger,
				}, defs)
				opts.Plan = &plan
				opts.Cached = cached
			}

			ctx := signalContext(cmd.Context())
			res, err := eng.Run(ctx, g, opts)
			if err != nil {
				return err
			}

			if db != nil && graphName != "" {
				if err := db.SaveRunResult(graphName, "", res); err != nil {
					return fmt.Errorf("persist run: %w", err)
				}
			}
			fmt.Printf("run %s: %d executed, %d reused, %d skipped\n",
				res.RunID, len(res.Order), len(res.Reused), len(res.Skipped))
			return writeResult(outPath, res)
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "user message seeding chat-start nodes")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database for the run output cache (optional)")
	cmd.Flags().StringVar(&graphName, "graph-name", "", "cache key for this graph in the database")
	cmd.Flags().StringVar(&target, "target", "", "target node id: plan against cached outputs")
	cmd.Flags().StringVar(&trigger, "trigger", "", "id of the trigger that is firing this run")
	cmd.Flags().StringVar(&outPath, "out", "", "path to write the run result JSON (optional)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "failed nodes emit an error payload instead of aborting")
	return cmd
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd() *cobra.Command {
	var catalogDir string

	cmd := &cobra.Command{
		Use:   "lint <graph.json>",
		Short: "Validate a flow graph file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read graph file: %w", err)
			}
			g, err := flow.ParseGraph(src)
			if err != nil {
				return err
			}
			defs, err := buildDefinitions(catalogDir)
			if err != nil {
				return err
			}

			// Loading enforces channel validity and prunes structural junk.
			store := flow.NewStore(defs)
			if err := store.LoadGraph(g); err != nil {
				return err
			}
			fmt.Printf("OK: graph is valid (%d nodes, %d edges)\n",
				len(store.Nodes()), len(store.Edges()))
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogDir, "catalog", "", "directory of extra node definition YAML files")
	return cmd
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// buildDefinitions composes the builtin palette with an optional catalog
// directory.
func buildDefinitions(catalogDir string) (*flow.DefinitionRegistry, error) {
	defs, err := catalog.Builtin()
	if err != nil {
		return nil, err
	}
	if catalogDir != "" {
		if err := catalog.LoadDir(defs, catalogDir); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// buildEngine constructs an engine with every builtin and AI executor.
func buildEngine() (*executor.Engine, error) {
	reg := executor.NewRegistry()
	if err := executor.RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	if err := executor.RegisterAIExecutors(reg, nil, nil); err != nil {
		return nil, err
	}
	return executor.NewEngine(reg, slog.Default())
}

// loadGraphFile hydrates the store from a graph file on disk.
func loadGraphFile(store *flow.Store, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read graph file: %w", err)
	}
	g, err := flow.ParseGraph(src)
	if err != nil {
		return err
	}
	return store.LoadGraph(g, flow.SkipHistory())
}

// watchGraphFile re-hydrates the store whenever the workspace graph file
// is rewritten. A file that fails to parse is logged and the in-memory
// graph stays in effect.
func watchGraphFile(path string, store *flow.Store) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("graph watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("graph watcher: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := loadGraphFile(store, path); err != nil {
					slog.Error("graph reload failed", "path", path, "error", err)
					continue
				}
				slog.Info("graph reloaded", "path", path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("graph watcher error", "error", err)
			}
		}
	}()

	return func() {
		w.Close()
		<-done
	}, nil
}

// writeResult writes the run result JSON to path; empty path is a no-op.
func writeResult(path string, res *executor.RunResult) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run result: %w", err)
	}
	return nil
}

// initLogger configures the default slog logger.
func initLogger(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[covalt] interrupted — shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
