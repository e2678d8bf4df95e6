package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jestersw/codeparser/pkg/findings"
)

type filterFlags struct {
	analyzer string
	severity string
	category string
	file     string
	lang     string
	limit    int
}

func (f *filterFlags) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringVar(&f.analyzer, "analyzer", "", "filter by analyzer (rules, complexity, secrets)")
	cmd.Flags().StringVar(&f.severity, "severity", "", "filter by severity (critical, warning, info)")
	cmd.Flags().StringVar(&f.category, "category", "", "filter by category")
	cmd.Flags().StringVar(&f.file, "file", "", "filter by file path substring")
	cmd.Flags().StringVar(&f.lang, "lang", "", "filter by language")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", defaultLimit, "max results (negative for all)")
}

func (f *filterFlags) options() findings.SearchOptions {
	return findings.SearchOptions{
		Analyzer: f.analyzer,
		Severity: f.severity,
		Category: f.category,
		FilePath: f.file,
		Language: f.lang,
		Limit:    f.limit,
	}
}

func newFindingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findings",
		Short: "Query stored findings",
	}
	cmd.AddCommand(
		newFindingsListCmd(a),
		newFindingsSearchCmd(a),
		newFindingsStatsCmd(a),
		newFindingsClearCmd(a),
	)
	return cmd
}

func newFindingsListCmd(a *app) *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List findings ordered by file and line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.ListFindings(f.options())
			if err != nil {
				return err
			}
			if a.jsonOut {
				if list == nil {
					list = []*findings.Finding{}
				}
				return writeJSON(a.stdout, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(a.stdout, "No findings.")
				return nil
			}
			return writeTable(a.stdout, []string{"Severity", "Location", "Category", "Detail"}, findingRows(list))
		},
	}
	f.register(cmd, findings.DefaultListLimit)
	return cmd
}

func newFindingsSearchCmd(a *app) *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over finding titles, details and categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			results, err := st.SearchFindings(strings.Join(args, " "), f.options())
			if err != nil {
				return err
			}
			if a.jsonOut {
				type hit struct {
					*findings.Finding
					Score float64 `json:"score"`
				}
				hits := make([]hit, 0, len(results))
				for _, r := range results {
					hits = append(hits, hit{Finding: r.Finding, Score: r.Score})
				}
				return writeJSON(a.stdout, hits)
			}
			if len(results) == 0 {
				fmt.Fprintln(a.stdout, "No matching findings.")
				return nil
			}
			for _, r := range results {
				fmt.Fprintln(a.stdout, formatFindingLine(r.Finding))
			}
			return nil
		},
	}
	f.register(cmd, findings.DefaultSearchLimit)
	return cmd
}

func newFindingsStatsCmd(a *app) *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise stored findings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(f.options())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, stats)
			}
			fmt.Fprintf(a.stdout, "%d findings in %d files\n", stats.Total, stats.Files)
			for _, part := range []struct {
				title  string
				counts map[string]int
			}{
				{"Analyzer", stats.ByAnalyzer},
				{"Severity", stats.BySeverity},
				{"Category", stats.ByCategory},
			} {
				if err := writeTable(a.stdout, []string{part.title, "Count"}, countRows(part.counts)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f.register(cmd, 0)
	cmd.Flags().Lookup("limit").Hidden = true
	return cmd
}

func newFindingsClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored finding and file digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "Findings cleared.")
			return nil
		},
	}
}
