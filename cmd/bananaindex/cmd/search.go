package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bananaindex/internal/document"
	"github.com/Aman-CERP/bananaindex/internal/errors"
	"github.com/Aman-CERP/bananaindex/internal/mcp"
	"github.com/Aman-CERP/bananaindex/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	language  string
	submodule string
	limit     int
	offset    int
	jsonOut   bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the case index",
		Long: `Search prompt cases and source READMEs by keyword.

Examples:
  bananaindex search "cyberpunk city"
  bananaindex search 猫 --lang zh
  bananaindex search portrait --submodule awesome-x,awesome-y --limit 5
  bananaindex search logo --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.language, "lang", "l", "", "Filter by language: zh, en, both")
	cmd.Flags().StringVarP(&opts.submodule, "submodule", "s", "", "Comma-separated submodule names")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.limit < 0 || opts.offset < 0 {
		return errors.ValidationError("limit and offset must not be negative", nil)
	}
	lang := document.ParseLanguage(opts.language)

	a, err := openApp(cmd.Context(), rootDir)
	if err != nil {
		return err
	}
	defer a.Close()

	resp := a.search.Search(cmd.Context(), search.Request{
		Query:      query,
		Language:   lang,
		Submodules: search.ParseSubmodules(opts.submodule),
		Limit:      opts.limit,
		Offset:     opts.offset,
	})

	if opts.jsonOut {
		return writeJSON(cmd.OutOrStdout(), resp)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(mcp.FormatSearchResults(query, resp), "\n"))
	return err
}

func newCaseCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "case <id>",
		Short: "Show one indexed document in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootDir)
			if err != nil {
				return err
			}
			defer a.Close()

			doc, ok := a.search.GetCaseByID(cmd.Context(), args[0])
			if !ok {
				return errors.New(errors.ErrCodeDocNotFound, "case not found: "+args[0], nil)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), doc)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(mcp.FormatCase(doc), "\n"))
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the document as JSON")
	return cmd
}

func newSubmodulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submodules",
		Short: "List the submodules present in the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), rootDir)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, name := range a.search.GetSubmodules(cmd.Context()) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newSuggestCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Autocomplete a search prefix",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootDir)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, s := range a.search.GetSuggestions(cmd.Context(), strings.Join(args, " "), limit) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), s.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of suggestions (default from config)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
