package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/webpro/unbarrelify/pkg/report"
	"github.com/webpro/unbarrelify/pkg/watch"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Re-plan barrel removal whenever sources change",
		Long: `Watches the project and prints a fresh dry-run report after every change.
Nothing is written. Stop with Ctrl-C.

Examples:
  unbarrelify watch
  unbarrelify watch ./packages/app --debounce=500ms`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, format, _, logger, err := setup(cmd, g, f, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			w, err := watch.New(watch.Options{Engine: opts, Debounce: debounce}, func(rep *report.Report, err error) {
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
					return
				}
				if format == FormatHuman {
					fmt.Fprintf(out, "\n[%s]\n", time.Now().Format("15:04:05"))
				}
				if err := writeReport(out, rep, format); err != nil {
					logger.Error("failed to write report", "error", err)
				}
			}, logger)
			if err != nil {
				return err
			}

			ctx := contextOf(cmd)
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			<-ctx.Done()
			return nil
		},
	}
	addRunFlags(cmd, f, false)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-planning")
	return cmd
}
