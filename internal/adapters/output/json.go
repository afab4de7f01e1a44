package output

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/mikey-austin/moodplay/internal/core"
)

// JSONPrinter prints indented JSON.
type JSONPrinter struct {
	Out io.Writer
}

// Print renders JSON output.
func (p JSONPrinter) Print(v any) error {
	if result, ok := v.(core.TurnResult); ok {
		v = result.AskReply()
	}
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(writerOrStdout(p.Out), string(payload))
	return err
}
