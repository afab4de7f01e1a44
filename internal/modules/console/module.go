package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey-austin/moodplay/internal/adapters/output"
	"github.com/mikey-austin/moodplay/internal/core"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

// Pipeline is the part of core.Pipeline the console drives.
type Pipeline interface {
	Ask(ctx context.Context, prompt string) (core.TurnResult, error)
	History(n int) []mp.Turn
}

// QueueSource lists the playback queue mirror.
type QueueSource interface {
	Snapshot(from int64, count int64) mp.QueueGetReply
}

// Config configures the console.
type Config struct {
	Prompt string
	// ShowQueue prints the queue after every turn.
	ShowQueue bool
}

// Module is an interactive prompt loop on stdin.
type Module struct {
	log      *zap.Logger
	in       io.Reader
	out      io.Writer
	pipeline Pipeline
	queue    QueueSource
	printer  output.Printer
	config   Config
}

// NewModule creates a console on stdin/stdout.
func NewModule(log *zap.Logger, pipeline Pipeline, queue QueueSource, cfg Config) *Module {
	return newModule(log, os.Stdin, os.Stdout, pipeline, queue, cfg)
}

func newModule(log *zap.Logger, in io.Reader, out io.Writer, pipeline Pipeline, queue QueueSource, cfg Config) *Module {
	if cfg.Prompt == "" {
		cfg.Prompt = "> "
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:      log,
		in:       in,
		out:      out,
		pipeline: pipeline,
		queue:    queue,
		printer:  output.HumanPrinter{Out: out},
		config:   cfg,
	}
}

// Run reads prompts until EOF, /quit, or ctx is done. Failed turns are
// reported and the loop continues.
func (m *Module) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(m.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(m.out, m.config.Prompt)
		var line string
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-lines:
			if !ok {
				fmt.Fprintln(m.out)
				return nil
			}
			line = strings.TrimSpace(next)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/history":
			m.print(core.HistoryResult{Turns: m.pipeline.History(0)})
			continue
		case "/queue":
			m.printQueue()
			continue
		}

		m.turn(ctx, line)
	}
}

func (m *Module) turn(ctx context.Context, prompt string) {
	result, err := m.pipeline.Ask(ctx, prompt)
	if err != nil {
		m.log.Debug("turn failed", zap.String("turn", result.TurnID), zap.Error(err))
		if result.Summary != "" {
			fmt.Fprintln(m.out, result.Summary)
		}
		fmt.Fprintf(m.out, "error: %v\n", err)
		if !result.Aborted {
			return
		}
	} else {
		m.print(result)
	}
	if m.config.ShowQueue {
		m.printQueue()
	}
}

func (m *Module) printQueue() {
	if m.queue == nil {
		return
	}
	m.print(core.QueueResult{Queue: m.queue.Snapshot(0, 0)})
}

func (m *Module) print(v any) {
	if err := m.printer.Print(v); err != nil {
		m.log.Warn("console output", zap.Error(err))
	}
}
