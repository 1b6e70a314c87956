package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bananaindex/internal/index"
	"github.com/Aman-CERP/bananaindex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var initial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reindex whenever source files change",
		Long: `Watch every source directory matching watch.prefixes and run the
indexing pipeline once changes have been quiet for watch.quiet_period.

Events for ignored paths (.git, node_modules, caches, the data dir) and
directory-only events never trigger a run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, initial)
		},
	}

	cmd.Flags().BoolVar(&initial, "initial", false, "Index once before watching")

	return cmd
}

func runWatch(ctx context.Context, initial bool) error {
	a, err := openApp(ctx, rootDir)
	if err != nil {
		return err
	}
	defer a.Close()

	run := func(ctx context.Context) error {
		_, err := a.pipeline().Run(ctx, index.RunOptions{})
		return err
	}
	if initial {
		if err := run(ctx); err != nil {
			return err
		}
	}
	return watcher.Watch(ctx, a.root, a.cfg, run)
}
