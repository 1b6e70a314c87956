package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bananaindex/internal/index"
	"github.com/Aman-CERP/bananaindex/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		rebuild bool
		plain   bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index every submodule listed in .gitmodules",
		Long: `Scan .gitmodules, extract the cases and READMEs of every submodule,
and upsert them into the search index in batches.

Documents are upserted by id, so running index again is safe.
Use --rebuild to re-apply the index settings to a populated index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, rebuild, plain, noColor)
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Re-apply index settings even if the index is populated")
	cmd.Flags().BoolVar(&plain, "plain", false, "Disable styled progress output")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, rebuild, plain, noColor bool) error {
	a, err := openApp(ctx, rootDir)
	if err != nil {
		return err
	}
	defer a.Close()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(plain),
		ui.WithNoColor(noColor),
		ui.WithRootDir(a.root)))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress output: %w", err)
	}
	defer func() { _ = renderer.Stop() }()

	res, err := a.pipeline(index.WithRenderer(renderer)).Run(ctx, index.RunOptions{Rebuild: rebuild})
	if err != nil {
		return err
	}
	if res.Declined {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No documents found; index left unchanged.")
	}
	return nil
}
