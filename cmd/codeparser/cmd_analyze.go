package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jestersw/codeparser/pkg/code"
	"github.com/jestersw/codeparser/pkg/engine"
	"github.com/jestersw/codeparser/pkg/findings"
)

var errVulnerable = errors.New("vulnerabilities found")

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		lang   string
		strict bool
		fail   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <file|->",
		Short: "Analyse a single source file and print its report",
		Long: `Analyse one file, or standard input when the argument is "-".

The language is detected from the file name and shebang unless --lang is
given. Standard input always needs --lang.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strict {
				a.cfg.Rules.StrictParse = true
			}
			src, name, err := readSource(a.stdin, args[0])
			if err != nil {
				return err
			}
			if lang == "" {
				lang = code.DetectLanguage(name, src)
			}
			if lang == "" {
				return fmt.Errorf("cannot detect language of %s; pass --lang", name)
			}

			eng, err := a.newEngine()
			if err != nil {
				return err
			}
			report, err := eng.Analyze(cmd.Context(), lang, src)
			if err != nil {
				return analyzeError(err)
			}

			if a.jsonOut {
				err = writeJSON(a.stdout, report)
			} else {
				err = printReport(a.stdout, report)
			}
			if err != nil {
				return err
			}
			if fail && len(report.Vulnerabilities) > 0 {
				return errVulnerable
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "language tag (python, javascript, typescript, go or an alias)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the source has syntax errors")
	cmd.Flags().BoolVar(&fail, "fail", false, "exit non-zero when vulnerabilities are found")
	return cmd
}

// readSource reads arg, or r when arg is "-".
func readSource(r io.Reader, arg string) ([]byte, string, error) {
	if arg == "-" {
		src, err := io.ReadAll(r)
		return src, "<stdin>", err
	}
	src, err := os.ReadFile(arg)
	return src, arg, err
}

// analyzeError adds a hint to the errors a caller can act on.
func analyzeError(err error) error {
	var unsupported *engine.UnsupportedLanguageError
	var parseErr *code.ParseError
	switch {
	case errors.As(err, &unsupported):
		return fmt.Errorf("%w; run \"codeparser languages\" for the supported list", err)
	case errors.As(err, &parseErr):
		return fmt.Errorf("%w; rerun without --strict to analyse the recovered tree", err)
	}
	return err
}

func printReport(w io.Writer, r *findings.Report) error {
	if _, err := fmt.Fprintf(w, "complexity: %d\n", r.Complexity); err != nil {
		return err
	}
	for _, line := range r.Lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	for _, warn := range r.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", warn.Error()); err != nil {
			return err
		}
	}
	return nil
}
