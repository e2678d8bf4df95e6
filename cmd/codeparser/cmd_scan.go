package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jestersw/codeparser/pkg/scan"
	"github.com/jestersw/codeparser/pkg/secrets"
	"github.com/jestersw/codeparser/pkg/store"
)

type scanFlags struct {
	concurrency   int
	noIncremental bool
	deepSecrets   bool
	threshold     int
	verbose       bool
}

func (f *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "c", 0, "parallel workers (default from config, else one per CPU)")
	cmd.Flags().BoolVar(&f.noIncremental, "no-incremental", false, "re-analyse files whose content is unchanged")
	cmd.Flags().BoolVar(&f.deepSecrets, "deep-secrets", false, "also run the titus secret scanner on every analysed file")
	cmd.Flags().IntVar(&f.threshold, "complexity-threshold", 0, "complexity score that produces a finding (default from config)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print every file as it is processed")
}

// newScanner wires the engine, store and optional secret scanner. The
// returned cleanup closes whatever was opened.
func (a *app) newScanner(f *scanFlags, st *store.Store) (*scan.Scanner, func(), error) {
	eng, err := a.newEngine()
	if err != nil {
		return nil, nil, err
	}
	ign, err := a.ignoreMatcher()
	if err != nil {
		return nil, nil, err
	}

	cfg := scan.Config{
		Root:                a.root,
		Concurrency:         a.cfg.Scan.Concurrency,
		MaxFileSize:         a.cfg.Scan.MaxFileSize,
		Ignore:              ign,
		Incremental:         a.cfg.Scan.Incremental && !f.noIncremental,
		ComplexityThreshold: a.cfg.Scan.ComplexityThreshold,
	}
	if f.concurrency > 0 {
		cfg.Concurrency = f.concurrency
	}
	if f.threshold > 0 {
		cfg.ComplexityThreshold = f.threshold
	}
	if f.verbose && !a.jsonOut {
		out := a.stdout
		cfg.ProgressFn = func(path string, status scan.Status, n int) {
			fmt.Fprintf(out, "%-9s %s (%d)\n", status, path, n)
		}
	}

	cleanup := func() {}
	if f.deepSecrets || a.cfg.Scan.DeepSecrets {
		sec, err := secrets.New(a.cfg.Scan.ValidateSecrets)
		if err != nil {
			return nil, nil, fmt.Errorf("init secret scanner: %w", err)
		}
		a.log.Debug("secret scanner ready")
		cfg.Secrets = sec
		cleanup = sec.Close
	}
	return scan.New(eng, st, cfg, a.log.Named("scan")), cleanup, nil
}

func newScanCmd(a *app) *cobra.Command {
	var f scanFlags
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Analyse a tree of files and store the findings",
		Long: `Walk the given files and directories (the project root by default),
analyse every supported file and replace its stored findings.

Files whose content digest matches the last scan are skipped unless
--no-incremental is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sc, cleanup, err := a.newScanner(&f, st)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := sc.Run(cmd.Context(), args)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, res)
			}
			return printScanSummary(a.stdout, res)
		},
	}
	f.register(cmd)
	return cmd
}

func printScanSummary(w io.Writer, res *scan.Result) error {
	var failures [][]string
	for _, fr := range res.Files {
		if fr.Status == scan.StatusFailed {
			failures = append(failures, []string{fr.Path, fr.Reason})
		}
	}
	if err := writeTable(w, []string{"Failed file", "Reason"}, failures); err != nil {
		return err
	}

	rows := [][]string{
		{"analyzed", strconv.Itoa(res.Analyzed)},
		{"unchanged", strconv.Itoa(res.Unchanged)},
		{"skipped", strconv.Itoa(res.Skipped)},
		{"failed", strconv.Itoa(res.Failed)},
		{"findings", strconv.Itoa(res.Findings)},
	}
	if err := writeTable(w, []string{"Files", "Count"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "scanned %d files in %s\n", len(res.Files), res.Duration.Round(time.Millisecond))
	return err
}
