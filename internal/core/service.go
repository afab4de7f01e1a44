package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mikey-austin/moodplay/internal/ports"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

// Service runs CLI use cases against a remote daemon.
type Service struct {
	Broker ports.Broker
	Clock  ports.Clock
	IDGen  ports.IDGen
	Config Config
}

// Ask sends one prompt through the daemon's pipeline. A failed turn returns
// whatever partial reply the daemon sent alongside the error.
func (s Service) Ask(ctx context.Context, prompt string) (mp.AskReply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return mp.AskReply{}, &CLIError{Code: ExitUsage, Msg: "prompt required"}
	}
	var out mp.AskReply
	err := s.call(ctx, mp.CommandAsk, mp.AskBody{Prompt: prompt}, &out)
	return out, err
}

// History returns the daemon's conversation transcript.
func (s Service) History(ctx context.Context, last int) (HistoryResult, error) {
	if last < 0 {
		return HistoryResult{}, &CLIError{Code: ExitUsage, Msg: "last must be >= 0"}
	}
	var out mp.HistoryReply
	if err := s.call(ctx, mp.CommandHistory, mp.HistoryBody{Last: last}, &out); err != nil {
		return HistoryResult{}, err
	}
	return HistoryResult{Turns: out.Turns}, nil
}

// Queue lists the daemon's playback queue mirror.
func (s Service) Queue(ctx context.Context, from, count int64) (QueueResult, error) {
	if from < 0 || count < 0 || count > mp.MaxQueueWindow {
		return QueueResult{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("from must be >= 0 and count between 0 and %d", mp.MaxQueueWindow)}
	}
	var out mp.QueueGetReply
	if err := s.call(ctx, mp.CommandQueue, mp.QueueGetBody{From: from, Count: count}, &out); err != nil {
		return QueueResult{}, err
	}
	return QueueResult{Queue: out}, nil
}

// Resolve runs both lookups for one pair without queueing anything.
func (s Service) Resolve(ctx context.Context, track string, artist string) (ResolveResult, error) {
	query := mp.ResolveBody{Track: strings.TrimSpace(track), Artist: strings.TrimSpace(artist)}
	if query.Track == "" {
		return ResolveResult{}, &CLIError{Code: ExitUsage, Msg: "track required"}
	}
	var out mp.ResolveReply
	if err := s.call(ctx, mp.CommandResolve, query, &out); err != nil {
		return ResolveResult{}, err
	}
	return ResolveResult{Query: query, Reply: out}, nil
}

func (s Service) call(ctx context.Context, cmdType string, body any, out any) error {
	node, err := s.Node(ctx)
	if err != nil {
		return err
	}
	cmd, err := mp.NewCommand(cmdType, body)
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd)

	reply, err := s.Broker.PublishCommand(ctx, node, cmd)
	if err != nil {
		return WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		// Failed turns still carry the partial result.
		if len(reply.Body) > 0 {
			_ = json.Unmarshal(reply.Body, out)
		}
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	if err := json.Unmarshal(reply.Body, out); err != nil {
		return WrapError(ExitRuntime, "decode "+cmdType+" reply", err)
	}
	return nil
}

// Node picks the configured node, or the only pipeline node online.
func (s Service) Node(ctx context.Context) (string, error) {
	if node := strings.TrimSpace(s.Config.Node); node != "" {
		return node, nil
	}
	presence, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return "", WrapError(ExitRuntime, "list presence", err)
	}
	var nodes []string
	for _, p := range presence {
		if p.Kind == mp.KindPipeline {
			nodes = append(nodes, p.NodeID)
		}
	}
	switch len(nodes) {
	case 1:
		return nodes[0], nil
	case 0:
		return "", &CLIError{Code: ExitUnavailable, Msg: "no moodplay daemon online"}
	default:
		return "", &CLIError{Code: ExitUsage, Msg: "multiple daemons online, set --node: " + strings.Join(nodes, ", ")}
	}
}

func (s Service) decorateCommand(cmd mp.CommandEnvelope) mp.CommandEnvelope {
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.Clock.NowUnix()
	cmd.From = s.Config.Identity
	cmd.ReplyTo = s.Broker.ReplyTopic()
	return cmd
}
