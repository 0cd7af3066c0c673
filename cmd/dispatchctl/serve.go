package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/dispatch/internal/api"
	"github.com/gyaneshwarpardhi/dispatch/internal/config"
)

// ─── watch ────────────────────────────────────────────────────────────────────

func watchCmd(a *app) *cobra.Command {
	var (
		inputs  string
		outputs []string
	)

	cmd := &cobra.Command{
		Use:   "watch <graph.yaml>",
		Short: "Re-dispatch the same inputs every time the definition changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			loader, err := config.NewLoader(args[0], a.log)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			g, err := a.build(loader.Definition())
			if err != nil {
				return err
			}
			redispatch(ctx, a, g, in, outputs, w)

			loader.OnChange(func(def *config.GraphDef) {
				g, err := a.build(def)
				if err != nil {
					a.log.Warn("reload skipped: build failed", "err", err)
					return
				}
				redispatch(ctx, a, g, in, outputs, w)
			})
			stop, err := loader.Watch()
			if err != nil {
				return err
			}
			defer stop()
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&inputs, "inputs", "{}", "inputs as a JSON object, or @file to read it from a file")
	cmd.Flags().StringSliceVar(&outputs, "outputs", nil, "requested outputs (comma separated)")
	return cmd
}

// ─── serve ────────────────────────────────────────────────────────────────────

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <graph.yaml>",
		Short: "Serve the graph over HTTP with hot reload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader(args[0], a.log)
			if err != nil {
				return err
			}
			g, err := a.build(loader.Definition())
			if err != nil {
				return err
			}
			a.log.Info("graph built", "graph", g.Name(), "nodes", g.NodeCount(), "fingerprint", g.Fingerprint())

			handler := api.New(g, loader, a.registry, a.settings.Engine.Executor, a.log, a.dispatchOptions()...)

			// ── Hot-reload watcher ──────────────────────────────────────────
			loader.OnChange(func(def *config.GraphDef) {
				ng, err := a.build(def)
				if err != nil {
					a.log.Warn("hot-reload skipped: graph build failed", "err", err)
					return
				}
				handler.SwapGraph(ng)
				a.log.Info("graph hot-reloaded", "nodes", ng.NodeCount())
			})
			stopWatch, err := loader.Watch()
			if err != nil {
				a.log.Warn("definition watcher unavailable (hot-reload disabled)", "err", err)
			} else {
				defer stopWatch()
			}

			// ── HTTP server ─────────────────────────────────────────────────
			srv := &http.Server{
				Addr:         addr,
				Handler:      handler,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				a.log.Info("server starting", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			// ── Graceful shutdown ───────────────────────────────────────────
			select {
			case err := <-errc:
				return err
			case <-cmd.Context().Done():
			}
			a.log.Info("shutting down…")
			shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutCtx); err != nil {
				return err
			}
			a.log.Info("goodbye")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	return cmd
}
