package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/dispatch/internal/config"
	"github.com/gyaneshwarpardhi/dispatch/internal/dag"
	"github.com/gyaneshwarpardhi/dispatch/internal/engine"
	"github.com/gyaneshwarpardhi/dispatch/internal/funcs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by all commands once settings are loaded.
type app struct {
	settings *config.Settings
	log      *slog.Logger
	registry *funcs.Registry
}

func rootCmd() *cobra.Command {
	var (
		settingsPath string
		a            app
	)
	root := &cobra.Command{
		Use:   "dispatchctl",
		Short: "Run, slice and compile dispatch graphs",
		Long: `dispatchctl loads YAML graph definitions and runs the dispatch engine on them.

Data nodes hold values, function nodes compute new values from them and
dispatcher nodes nest whole graphs. A dispatch follows the cheapest route
from the given inputs to the requested outputs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := config.LoadSettings(settingsPath)
			if err != nil {
				return err
			}
			a.settings = s
			a.log = newLogger(s.Logging)
			slog.SetDefault(a.log)
			a.registry = funcs.Builtins()
			workers, depth := s.Engine.Workers, s.Engine.QueueDepth
			engine.Register(engine.PoolBackend, func(name string) engine.Executor {
				return engine.NewPool(name, workers, depth)
			})
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			engine.Shutdown()
		},
	}
	root.PersistentFlags().StringVar(&settingsPath, "settings", "", "engine settings YAML (DSP_ environment variables override it)")

	root.AddCommand(runCmd(&a))
	root.AddCommand(shrinkCmd(&a))
	root.AddCommand(dotCmd(&a))
	root.AddCommand(compileCmd(&a))
	root.AddCommand(callCmd(&a))
	root.AddCommand(watchCmd(&a))
	root.AddCommand(serveCmd(&a))
	return root
}

func newLogger(s config.LoggingSettings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.SlogLevel()}
	if s.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// load reads, validates and builds a graph definition.
func (a *app) load(path string) (*dag.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	def, err := config.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a.build(def)
}

func (a *app) build(def *config.GraphDef) (*dag.Graph, error) {
	g, err := dag.Build(def, a.registry, dag.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	if a.settings.Dispatch.Raises {
		g.SetRaises(dag.RaiseAll())
	}
	return g, nil
}

// dispatchOptions are the settings-driven options of every dispatch.
func (a *app) dispatchOptions() []dag.DispatchOption {
	opts := []dag.DispatchOption{dag.OnExecutor(a.settings.Engine.Executor)}
	if c := a.settings.Dispatch.Cutoff; c > 0 {
		opts = append(opts, dag.Cutoff(c))
	}
	return opts
}
