package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jestersw/codeparser/internal/logging"
	"github.com/jestersw/codeparser/internal/project"
	"github.com/jestersw/codeparser/internal/version"
	"github.com/jestersw/codeparser/pkg/config"
	"github.com/jestersw/codeparser/pkg/engine"
	"github.com/jestersw/codeparser/pkg/ignore"
	"github.com/jestersw/codeparser/pkg/rules"
	"github.com/jestersw/codeparser/pkg/store"
)

// app is the state shared by every subcommand, built before each run.
type app struct {
	root string
	cfg  *config.Config
	log  *zap.Logger

	configPath string
	logLevel   string
	logFormat  string
	jsonOut    bool

	stdout io.Writer
	stdin  io.Reader
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "codeparser",
		Short:         "codeparser - rule-based structural analysis of source code",
		Long:          "Parses Python, JavaScript, TypeScript and Go into syntax trees, flags risky constructs and scores structural complexity.",
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default <project>/.codeparser/config.json)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: console or json")
	pf.BoolVar(&a.jsonOut, "json", false, "output JSON")

	root.AddCommand(
		newAnalyzeCmd(a),
		newScanCmd(a),
		newFindingsCmd(a),
		newRulesCmd(a),
		newLanguagesCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) init() error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	a.root, err = project.FindRoot(cwd)
	if err != nil {
		return fmt.Errorf("find project root: %w", err)
	}

	a.cfg, err = config.Load(a.root, a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		a.cfg.Log.Format = a.logFormat
	}

	a.log, err = logging.New(a.cfg.Log.Level, a.cfg.Log.Format)
	return err
}

// newEngine builds an engine with the configured extra rules and overrides.
func (a *app) newEngine() (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithLogger(a.log.Named("engine")),
		engine.WithStrictParse(a.cfg.Rules.StrictParse),
	}
	if len(a.cfg.Rules.Files) > 0 {
		specs, err := rules.LoadSpecsFiles(a.cfg.Rules.Files...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithExtraSpecs(specs...))
	}
	for lang, kinds := range a.cfg.Rules.BranchKinds {
		opts = append(opts, engine.WithBranchKinds(lang, kinds))
	}
	return engine.New(opts...)
}

func (a *app) openStore() (*store.Store, error) {
	return store.Open(a.cfg.Store.Dir, store.WithLogger(a.log.Named("store")))
}

func (a *app) ignoreMatcher() (*ignore.Matcher, error) {
	return ignore.New(a.root, a.cfg.Ignore.Patterns...)
}
