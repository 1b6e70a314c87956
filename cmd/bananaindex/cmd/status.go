package cmd

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bananaindex/internal/async"
	"github.com/Aman-CERP/bananaindex/internal/config"
	"github.com/Aman-CERP/bananaindex/internal/engine"
	"github.com/Aman-CERP/bananaindex/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and progress",
		Long: `Show whether the engine is reachable, how many documents and submodules
the index holds, and the progress of a running indexing task.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootDir)
			if err != nil {
				return err
			}
			defer a.Close()

			info := a.statusInfo(cmd.Context())
			renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			if jsonOutput {
				return renderer.RenderJSON(info)
			}
			return renderer.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}

// statusInfo collects the index status for display.
func (a *app) statusInfo(ctx context.Context) ui.StatusInfo {
	p := a.tracker.Progress(ctx)
	info := ui.StatusInfo{
		Root:       a.root,
		Engine:     a.cfg.Engine.Backend,
		Endpoint:   a.endpoint(),
		IndexName:  a.cfg.Engine.IndexName,
		Reachable:  p.State != async.StateNotConnected,
		Documents:  p.DocumentCount,
		IsIndexing: p.IsIndexing,
		Progress:   p.Progress,
		ETASeconds: p.ETASeconds,
	}
	if !info.Reachable {
		return info
	}

	info.Submodules = len(a.search.GetSubmodules(ctx))
	info.LastIndexed = a.lastIndexed(ctx)
	if a.cfg.Engine.Backend == config.BackendBleve {
		info.DataSize = dirSize(filepath.Join(a.cfg.DataPath(a.root), a.cfg.Engine.IndexName+".bleve"))
	}
	return info
}

// lastIndexed returns when the latest document batch finished, or zero.
func (a *app) lastIndexed(ctx context.Context) time.Time {
	tasks, err := a.eng.ListTasks(ctx, engine.TaskQuery{
		IndexUID: a.cfg.Engine.IndexName,
		Types:    []string{engine.TaskTypeDocumentAddition},
		Statuses: []engine.TaskStatus{engine.TaskSucceeded},
		Limit:    1,
	})
	if err != nil || len(tasks) == 0 || tasks[0].FinishedAt == nil {
		return time.Time{}
	}
	return *tasks[0].FinishedAt
}

func dirSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
