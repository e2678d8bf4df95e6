package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jestersw/codeparser/pkg/engine"
	"github.com/jestersw/codeparser/pkg/rules"
)

type languageRules struct {
	Language string       `json:"language"`
	Rules    []rules.Spec `json:"rules"`
}

// catalogs returns the compiled rules for lang, or for every language when
// lang is empty, in catalog order.
func catalogs(eng *engine.Engine, lang string) ([]languageRules, error) {
	var names []string
	if lang != "" {
		name, err := eng.Resolve(lang)
		if err != nil {
			return nil, err
		}
		names = []string{name}
	} else {
		for _, l := range eng.Languages() {
			names = append(names, l.Name)
		}
	}

	out := make([]languageRules, 0, len(names))
	for _, name := range names {
		catalog, err := eng.Catalog(name)
		if err != nil {
			return nil, err
		}
		lr := languageRules{Language: name}
		for _, r := range catalog.Rules() {
			spec := r.Spec()
			spec.Severity = r.Severity
			lr.Rules = append(lr.Rules, spec)
		}
		out = append(out, lr)
	}
	return out, nil
}

func newRulesCmd(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the compiled rule catalog per language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.newEngine()
			if err != nil {
				return err
			}
			all, err := catalogs(eng, lang)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, all)
			}
			var rows [][]string
			for _, lr := range all {
				for _, s := range lr.Rules {
					rows = append(rows, []string{lr.Language, s.Category, s.Severity, string(s.Kind), strings.Join(s.Kinds, ", ")})
				}
			}
			return writeTable(a.stdout, []string{"Language", "Category", "Severity", "Match", "Node kinds"}, rows)
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "only this language")
	return cmd
}

func newLanguagesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages, aliases and extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.newEngine()
			if err != nil {
				return err
			}
			langs := eng.Languages()
			if a.jsonOut {
				return writeJSON(a.stdout, langs)
			}
			rows := make([][]string, 0, len(langs))
			for _, l := range langs {
				rows = append(rows, []string{
					l.Name,
					l.Dialect,
					strings.Join(l.Aliases, ", "),
					strings.Join(l.Extensions, " "),
					strconv.Itoa(l.Rules),
				})
			}
			return writeTable(a.stdout, []string{"Language", "Dialect", "Aliases", "Extensions", "Rules"}, rows)
		},
	}
}
