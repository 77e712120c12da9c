package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/webpro/unbarrelify/pkg/engine"
	"github.com/webpro/unbarrelify/pkg/report"
	"github.com/webpro/unbarrelify/pkg/util"
)

// globalFlags are persistent across subcommands.
type globalFlags struct {
	logLevel   string
	configPath string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	f := &runFlags{}

	rootCmd := &cobra.Command{
		Use:   "unbarrelify [root]",
		Short: "Remove barrel files by importing from the defining modules",
		Long: `Rewrites every import and re-export that goes through a barrel file (a module
that only re-exports) to point at the module that defines the binding, then
deletes barrels nothing depends on any more.

Examples:
  unbarrelify
  unbarrelify ./packages/app --dry-run
  unbarrelify --skip 'src/index.ts' --ext js
  unbarrelify --unsafe-namespace --organize --format=json`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, format, err := runProject(cmd, g, f, args)
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), rep, format); err != nil {
				return err
			}
			if len(rep.Errors) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	rootCmd.SetVersionTemplate("unbarrelify version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error (default: warn)")
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Project config file (default: <root>/"+configFileName+")")
	addRunFlags(rootCmd, f, true)

	rootCmd.AddCommand(
		newCheckCmd(g),
		newInspectCmd(g),
		newWatchCmd(g),
		newServeCmd(g),
		newSetupCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newCheckCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "check [root]",
		Short: "Dry-run and exit 1 when any barrel import would be rewritten",
		Long: `Plans barrel removal without touching any file. Exits with status 1 when
files would be modified or barrels deleted, 0 otherwise.

Examples:
  unbarrelify check
  unbarrelify check ./packages/app --format=json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.dryRun = true
			rep, format, err := runProject(cmd, g, f, args)
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), rep, format); err != nil {
				return err
			}
			if rep.Failed() || len(rep.Errors) > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	addRunFlags(cmd, f, false)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "unbarrelify %s\n", version)
		},
	}
}

// projectRoot returns the absolute root named by args, or the working
// directory.
func projectRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root path: %w", err)
	}
	return abs, nil
}

// setup loads the project config and builds the logger and engine options.
func setup(cmd *cobra.Command, g *globalFlags, f *runFlags, args []string) (engine.Options, OutputFormat, *ProjectConfig, *slog.Logger, error) {
	root, err := projectRoot(args)
	if err != nil {
		return engine.Options{}, "", nil, nil, err
	}
	cfg, err := loadProjectConfig(root, g.configPath)
	if err != nil {
		return engine.Options{}, "", nil, nil, err
	}
	logger := newLogger(cmd, g, cfg)

	opts, format, err := resolveOptions(cmd, f, root, cfg)
	if err != nil {
		return engine.Options{}, "", nil, nil, err
	}
	if cfg != nil {
		logger.Debug("loaded project config", "root", root)
	}
	return opts, format, cfg, logger, nil
}

func runProject(cmd *cobra.Command, g *globalFlags, f *runFlags, args []string) (*report.Report, OutputFormat, error) {
	opts, format, _, logger, err := setup(cmd, g, f, args)
	if err != nil {
		return nil, "", err
	}
	rep, err := engine.New(opts, logger).Run(contextOf(cmd))
	if err != nil {
		return nil, "", err
	}
	return rep, format, nil
}

// newLogger logs to the command's stderr at the flag level, else the
// config level, else warn.
func newLogger(cmd *cobra.Command, g *globalFlags, cfg *ProjectConfig) *slog.Logger {
	lc := util.DefaultLoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	switch {
	case g.logLevel != "":
		lc.Level = util.LogLevel(g.logLevel)
	case cfg != nil && cfg.LogLevel != "":
		lc.Level = util.LogLevel(cfg.LogLevel)
	}
	return util.NewLogger(lc)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
