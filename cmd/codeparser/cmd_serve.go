package main

import (
	"github.com/spf13/cobra"

	"github.com/jestersw/codeparser/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		noStore bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis and findings HTTP API",
		Long: `Serve POST /api/analyze along with read-only access to stored findings,
rule catalogs and supported languages.

With --no-store only analysis, rules and languages are available; the
findings endpoints answer 503.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			eng, err := a.newEngine()
			if err != nil {
				return err
			}

			if noStore {
				return server.NewServer(eng, nil, addr, a.log.Named("http")).Run(ctx)
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return server.NewServer(eng, st, addr, a.log.Named("http")).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "run without the findings store")
	return cmd
}
