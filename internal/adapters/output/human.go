package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mikey-austin/moodplay/internal/core"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct {
	Out io.Writer
}

// Print renders human output.
func (p HumanPrinter) Print(v any) error {
	out := writerOrStdout(p.Out)
	switch data := v.(type) {
	case core.TurnResult:
		return printAsk(out, data.AskReply())
	case mp.AskReply:
		return printAsk(out, data)
	case core.HistoryResult:
		return printHistory(out, data)
	case core.QueueResult:
		return printQueue(out, data)
	case core.ResolveResult:
		return printResolve(out, data)
	default:
		_, err := fmt.Fprintln(out, "ok")
		return err
	}
}

func printAsk(out io.Writer, reply mp.AskReply) error {
	if _, err := fmt.Fprintln(out, reply.Summary); err != nil {
		return err
	}
	for _, rec := range reply.Dropped {
		if _, err := fmt.Fprintf(out, "not found: %s\n", rec); err != nil {
			return err
		}
	}
	for _, failure := range reply.Failures {
		if _, err := fmt.Fprintf(out, "skipped: %s (%s)\n", failure.Recommendation, failure.Error); err != nil {
			return err
		}
	}
	return nil
}

func printHistory(out io.Writer, result core.HistoryResult) error {
	for _, turn := range result.Turns {
		content := strings.TrimSpace(turn.Content)
		if _, err := fmt.Fprintf(out, "[%s]\n%s\n\n", turn.Role, content); err != nil {
			return err
		}
	}
	return nil
}

func printQueue(out io.Writer, result core.QueueResult) error {
	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "REV %d\n", result.Queue.Revision); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(tw, "#\tARTIST\tTRACK\tLOCATOR\tERROR"); err != nil {
		return err
	}
	for i, entry := range result.Queue.Entries {
		_, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, entry.Artist, entry.Track, entry.Locator, entry.Error)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printResolve(out io.Writer, result core.ResolveResult) error {
	query := mp.Recommendation{Artist: result.Query.Artist, Track: result.Query.Track}
	reply := result.Reply
	switch {
	case reply.Canonical == nil:
		_, err := fmt.Fprintf(out, "%s: no metadata match\n", query)
		return err
	case !reply.Found:
		_, err := fmt.Fprintf(out, "%s -> %s: no playable resource\n", query, reply.Canonical)
		return err
	default:
		_, err := fmt.Fprintf(out, "%s -> %s\n%s\n", query, reply.Canonical, reply.Locator)
		return err
	}
}
