package main

import (
	"context"

	"github.com/spf13/cobra"
)

func historyCommand() *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the conversation transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.History(ctx, last)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().IntVar(&last, "last", 0, "only the last N turns")
	return cmd
}

func queueCommand() *cobra.Command {
	var from int64
	var count int64

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List what the daemon has queued",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Queue(ctx, from, count)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().Int64Var(&from, "from", 0, "start index")
	cmd.Flags().Int64Var(&count, "count", 50, "number of entries")
	return cmd
}

func resolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <track> [artist]",
		Short: "Look up a track without asking the model or queueing",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			artist := ""
			if len(args) == 2 {
				artist = args[1]
			}
			result, err := app.service.Resolve(ctx, args[0], artist)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	return cmd
}
