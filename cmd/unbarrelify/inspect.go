package main

import (
	"github.com/spf13/cobra"

	"github.com/webpro/unbarrelify/pkg/engine"
)

func newInspectCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	var root string
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show how a module is analyzed: barrel status, re-exports, imports",
		Long: `Analyzes a single file and prints whether it is a barrel, what it re-exports,
what it imports (with resolved targets) and every name it exports after
following re-exports.

Examples:
  unbarrelify inspect src/components/index.ts
  unbarrelify inspect src/app.tsx --format=json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rootArgs []string
			if root != "" {
				rootArgs = []string{root}
			}
			opts, format, _, logger, err := setup(cmd, g, f, rootArgs)
			if err != nil {
				return err
			}
			ins, err := engine.New(opts, logger).Inspect(args[0])
			if err != nil {
				return err
			}
			return writeInspection(cmd.OutOrStdout(), ins, format)
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Project root for config, aliases and --barrel globs (default: working directory)")
	cmd.Flags().StringVar(&f.tsconfig, "tsconfig", "", "tsconfig/jsconfig file or directory (default: nearest above the file)")
	cmd.Flags().StringArrayVar(&f.barrel, "barrel", nil, "Glob of files to treat as barrels (repeatable)")
	cmd.Flags().StringVar(&f.format, "format", "human", "Output format (json, human)")
	return cmd
}
