package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/moodplay/internal/core"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

func askCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Send one prompt and queue the recommendations",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			prompt, err := promptFromArgs(args, cmd.InOrStdin())
			if err != nil {
				return core.WrapError(core.ExitUsage, "ask", err)
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return ask(ctx, app, prompt)
		},
	}
	return cmd
}

// ask prints whatever the daemon sent back, including the partial result of
// a failed turn, then returns the turn error.
func ask(ctx context.Context, app *app, prompt string) error {
	reply, err := app.service.Ask(ctx, prompt)
	if err != nil && reply.TurnID == "" && reply.Summary == "" {
		return err
	}
	if printErr := app.printer.Print(reply); printErr != nil {
		return printErr
	}
	return err
}

func chatCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation with the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if watch {
				if err := watchEvents(ctx, app, cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			return chatLoop(ctx, app, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&watch, "events", false, "print pipeline events while turns run")
	return cmd
}

// chatLoop keeps going after failed turns; only EOF or /quit ends it.
func chatLoop(ctx context.Context, app *app, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		turnCtx, cancel := withTimeout(ctx, app.timeout)
		err := ask(turnCtx, app, line)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func watchEvents(ctx context.Context, app *app, out io.Writer) error {
	node, err := app.service.Node(ctx)
	if err != nil {
		return err
	}
	events, err := app.events.WatchEvents(ctx, node)
	if err != nil {
		return core.WrapError(core.ExitUnavailable, "watch events", err)
	}
	go func() {
		for evt := range events {
			if line := formatEvent(evt); line != "" {
				fmt.Fprintln(out, line)
			}
		}
	}()
	return nil
}

func formatEvent(evt mp.Event) string {
	switch evt.Type {
	case mp.EventItemEnqueued:
		if evt.Item != nil {
			return fmt.Sprintf("+ %s - %s", evt.Item.Artist, evt.Item.Track)
		}
	case mp.EventItemDropped:
		if evt.Recommendation != nil {
			return fmt.Sprintf("- %s (%s)", evt.Recommendation, evt.Reason)
		}
	case mp.EventTurnFailed:
		return "! turn failed: " + evt.Reason
	}
	return ""
}
