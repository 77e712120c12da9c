package main

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/webpro/unbarrelify/pkg/mcp"
	"github.com/webpro/unbarrelify/pkg/mcplog"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	var logFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Serves the plan_barrel_removal and inspect_module tools over the Model
Context Protocol on stdin/stdout. Tools never modify files. Flags and the
project config in the working directory set defaults for every call.

Examples:
  unbarrelify serve
  unbarrelify serve --log-file .unbarrelify/mcp.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, _, cfg, logger, err := setup(cmd, g, f, nil)
			if err != nil {
				return err
			}
			if logFile == "" && cfg != nil {
				logFile = cfg.LogFile
			}
			calls, err := mcplog.NewLogger(logFile)
			if err != nil {
				return err
			}
			defer calls.Close()

			return mcpserver.NewServer(opts, version, calls, logger).ServeStdio()
		},
	}
	addRunFlags(cmd, f, false)
	cmd.Flags().StringVar(&logFile, "log-file", "", "Append a JSONL record of every tool call to this file")
	return cmd
}
