package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jestersw/codeparser/pkg/code"
	"github.com/jestersw/codeparser/pkg/scan"
	"github.com/jestersw/codeparser/pkg/server"
	"github.com/jestersw/codeparser/pkg/watcher"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		f         scanFlags
		noInitial bool
		serve     bool
	)
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Re-analyse files as they change",
		Long: `Run a scan, then watch the given directories (the project root by
default) and re-analyse supported files after each debounced batch of
changes. Deleted files have their findings dropped.

With --serve the HTTP API runs alongside the watcher against the same store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

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

			if !noInitial {
				res, err := sc.Run(ctx, args)
				if err != nil {
					return err
				}
				if !a.jsonOut {
					if err := printScanSummary(a.stdout, res); err != nil {
						return err
					}
				}
			}

			ign, err := a.ignoreMatcher()
			if err != nil {
				return err
			}
			paths := args
			if len(paths) == 0 {
				paths = []string{a.root}
			}

			handler := sc.WatchHandler(ctx)
			handler.OnResult = func(fr *scan.FileResult) {
				if a.jsonOut {
					_ = writeJSON(a.stdout, fr)
					return
				}
				if f.verbose || fr.Status != scan.StatusUnchanged {
					fmt.Fprintf(a.stdout, "%-9s %s (%d)\n", fr.Status, fr.Path, len(fr.Findings))
				}
			}

			w, err := watcher.New(watcher.Config{
				Paths:         paths,
				Root:          a.root,
				DebounceDelay: a.cfg.Watch.Debounce,
				Ignore:        ign,
				FileFilter:    code.SupportedFile,
				Logger:        a.log.Named("watcher"),
			}, handler)
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}
			defer w.Stop()

			stats := w.Stats()
			a.log.Info("watching", zap.Strings("paths", stats.Paths), zap.Int("dirs", stats.DirsWatched))

			g, gctx := errgroup.WithContext(ctx)
			if serve {
				eng, err := a.newEngine()
				if err != nil {
					return err
				}
				srv := server.NewServer(eng, st, a.cfg.Server.Addr, a.log.Named("http"))
				g.Go(func() error { return srv.Run(gctx) })
			}
			g.Go(func() error {
				<-gctx.Done()
				return nil
			})
			return g.Wait()
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&noInitial, "no-initial", false, "skip the initial scan")
	cmd.Flags().BoolVar(&serve, "serve", false, "also serve the HTTP API")
	return cmd
}
