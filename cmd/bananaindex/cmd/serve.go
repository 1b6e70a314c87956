package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/bananaindex/internal/mcp"
	"github.com/Aman-CERP/bananaindex/internal/server"
	"github.com/Aman-CERP/bananaindex/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP search API",
		Long: `Serve search, case lookup, suggestions and index status over HTTP.

With --watch, source changes trigger a reindex after a quiet period.
Reindex runs share the guard with POST /api/trigger-index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, addr, watch)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.http_addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reindex when source files change")

	return cmd
}

func runServe(ctx context.Context, addr string, watch bool) error {
	a, err := openApp(ctx, rootDir)
	if err != nil {
		return err
	}
	defer a.Close()

	if addr == "" {
		addr = a.cfg.Server.HTTPAddr
	}
	srv := server.New(server.Deps{
		Engine:  a.eng,
		Search:  a.search,
		Tracker: a.tracker,
		Indexer: a.indexer,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, addr)
	})
	if watch {
		g.Go(func() error {
			return watcher.Watch(ctx, a.root, a.cfg, a.reindex)
		})
	}
	err = g.Wait()
	a.drainIndexer()
	return err
}

func newMCPCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the case index to AI clients over MCP stdio",
		Long: `Start an MCP server on stdin/stdout exposing the search, get_case,
list_submodules, suggest, index_status and trigger_index tools.

Nothing but JSON-RPC is written to stdout; logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMCP(ctx, watch)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Reindex when source files change")

	return cmd
}

func runMCP(ctx context.Context, watch bool) error {
	a, err := openApp(ctx, rootDir)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := mcp.NewServer(mcp.Deps{
		Search:  a.search,
		Tracker: a.tracker,
		Indexer: a.indexer,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if watch {
		go func() {
			if err := watcher.Watch(ctx, a.root, a.cfg, a.reindex); err != nil {
				slog.Error("watcher_stopped", slog.String("error", err.Error()))
			}
		}()
	}

	err = srv.Serve(ctx)
	cancel()
	a.drainIndexer()
	return err
}
