package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jestersw/codeparser/internal/version"
	"github.com/jestersw/codeparser/pkg/engine"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skip config loading so version works outside a project.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.jsonOut {
				var langs []string
				if eng, err := engine.New(); err == nil {
					for _, l := range eng.Languages() {
						langs = append(langs, l.Name)
					}
				}
				fmt.Fprintln(a.stdout, version.JSON(langs...))
				return nil
			}
			fmt.Fprintln(a.stdout, version.String())
			return nil
		},
	}
}
