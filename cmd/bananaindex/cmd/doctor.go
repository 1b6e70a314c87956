package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bananaindex/internal/errors"
	"github.com/Aman-CERP/bananaindex/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the root can be indexed and served",
		Long: `Run the preflight checks: engine health, .gitmodules, checked-out
sources, data dir permissions, disk space, descriptor limit and the
state of the index. Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootDir)
			if err != nil {
				return err
			}
			defer a.Close()

			checker := preflight.New(a.eng, a.cfg,
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose))
			results := checker.RunAll(cmd.Context(), a.root)
			if jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return errors.ValidationError("preflight checks failed", nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
