package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey-austin/moodplay/internal/ports"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

// Pipeline turns a user request into queued playable items. Turns are
// processed one at a time, and items within a turn strictly in the order the
// model emitted them.
type Pipeline struct {
	Model        ports.ChatModel
	Extractor    Extractor
	Resolver     MetadataResolver
	Locator      ResourceLocator
	Queue        ports.PlaybackQueue
	Events       ports.EventPublisher
	Conversation *Conversation
	IDGen        ports.IDGen
	Clock        ports.Clock
	Policy       Policy
	Log          *zap.Logger

	mu sync.Mutex
}

// Ask runs one full turn for prompt. On error the returned result still
// describes how far the turn got.
func (p *Pipeline) Ask(ctx context.Context, prompt string) (TurnResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return TurnResult{}, &CLIError{Code: ExitUsage, Msg: "prompt required"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	result := TurnResult{TurnID: p.newID(), Stage: StageAwaitingReply}
	log := p.logger().With(zap.String("turn", result.TurnID))
	p.publish(ctx, mp.Event{Type: mp.EventTurnStarted, TurnID: result.TurnID})

	userTurn := mp.Turn{Role: mp.RoleUser, Content: prompt}
	reply, err := p.Model.Complete(ctx, p.Conversation.With(userTurn))
	if err != nil {
		err = classifyModelError(err)
		log.Warn("model request failed", zap.Error(err))
		return p.fail(ctx, result, err)
	}
	if _, err := p.Conversation.Append(userTurn.Role, userTurn.Content); err != nil {
		return p.fail(ctx, result, err)
	}
	result.Reply = reply

	p.advance(log, &result, StageExtracting)
	parsed, err := p.extractor().Extract(reply)
	if err != nil {
		if !errors.Is(err, ErrMalformedModelOutput) {
			err = &MalformedReplyError{Reply: reply, Reason: err.Error()}
		}
		recorded := reply
		if p.Policy.OnMalformed == Placeholder {
			recorded = MalformedPlaceholderText
		}
		if _, appendErr := p.Conversation.Append(mp.RoleAssistant, recorded); appendErr != nil {
			return p.fail(ctx, result, appendErr)
		}
		result.Summary = recorded
		log.Info("reply has no recommendation list", zap.Error(err))
		return p.fail(ctx, result, err)
	}

	p.advance(log, &result, StageResolvingItems)
	var abortErr error
	for _, rec := range parsed.Recommendations {
		if err := ctx.Err(); err != nil {
			abortErr = err
			break
		}
		item, found, err := p.resolveItem(ctx, rec)
		if err != nil {
			if p.Policy.OnServiceError == SkipItem {
				log.Warn("skipping recommendation", zap.Stringer("recommendation", rec), zap.Error(err))
				result.Failures = append(result.Failures, mp.ItemFailure{Recommendation: rec, Error: err.Error()})
				p.publish(ctx, mp.Event{Type: mp.EventItemDropped, TurnID: result.TurnID, Recommendation: &rec, Reason: err.Error()})
				continue
			}
			log.Warn("aborting remaining recommendations", zap.Stringer("recommendation", rec), zap.Error(err))
			abortErr = err
			break
		}
		if !found {
			log.Info("dropping unresolved recommendation", zap.Stringer("recommendation", rec))
			result.Dropped = append(result.Dropped, rec)
			p.publish(ctx, mp.Event{Type: mp.EventItemDropped, TurnID: result.TurnID, Recommendation: &rec, Reason: "not found"})
			continue
		}

		if err := p.Queue.EnqueueAppendPlay(ctx, item); err != nil {
			log.Warn("enqueue failed", zap.String("locator", item.Locator), zap.Error(err))
		}
		result.Items = append(result.Items, item)
		p.publish(ctx, mp.Event{Type: mp.EventItemEnqueued, TurnID: result.TurnID, Item: &item})
	}

	p.advance(log, &result, StageSummarizing)
	result.Summary = Summarize(parsed.Preamble, result.Items, parsed.Epilogue)
	if _, err := p.Conversation.Append(mp.RoleAssistant, result.Summary); err != nil {
		return p.fail(ctx, result, err)
	}

	p.advance(log, &result, StageDone)
	if abortErr != nil {
		result.Aborted = true
		p.publish(ctx, mp.Event{Type: mp.EventTurnFailed, TurnID: result.TurnID, Reason: abortErr.Error()})
		return result, abortErr
	}
	p.publish(ctx, mp.Event{Type: mp.EventTurnCompleted, TurnID: result.TurnID})
	return result, nil
}

// Resolve runs both lookup stages for one pair without touching the queue or
// the conversation.
func (p *Pipeline) Resolve(ctx context.Context, track string, artist string) (mp.ResolveReply, error) {
	canonical, found, err := p.Resolver.Resolve(ctx, track, artist)
	if err != nil || !found {
		return mp.ResolveReply{}, err
	}
	uri, found, err := p.Locator.Locate(ctx, canonical.Track, canonical.Artist)
	if err != nil {
		return mp.ResolveReply{}, err
	}
	if !found {
		return mp.ResolveReply{Canonical: &canonical}, nil
	}
	return mp.ResolveReply{Found: true, Canonical: &canonical, Locator: uri}, nil
}

// History returns the last n turns, or all of them when n <= 0.
func (p *Pipeline) History(n int) []mp.Turn {
	turns := p.Conversation.Snapshot()
	if n > 0 && n < len(turns) {
		turns = turns[len(turns)-n:]
	}
	return turns
}

// Summarize renders the user-facing text of a turn.
func Summarize(preamble string, items []mp.PlayableItem, epilogue string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s - %s (link: %s)", item.Artist, item.Track, item.Locator))
	}
	return preamble + "\n\n" + strings.Join(lines, "\n") + "\n\n" + epilogue
}

func (p *Pipeline) resolveItem(ctx context.Context, rec mp.Recommendation) (mp.PlayableItem, bool, error) {
	canonical, found, err := p.Resolver.Resolve(ctx, rec.Track, rec.Artist)
	if err != nil || !found {
		return mp.PlayableItem{}, false, err
	}
	uri, found, err := p.Locator.Locate(ctx, canonical.Track, canonical.Artist)
	if err != nil || !found {
		return mp.PlayableItem{}, false, err
	}
	return mp.PlayableItem{Artist: canonical.Artist, Track: canonical.Track, Locator: uri}, true, nil
}

func (p *Pipeline) fail(ctx context.Context, result TurnResult, err error) (TurnResult, error) {
	if result.Stage == StageExtracting {
		result.Stage = StageFailed
	}
	p.publish(ctx, mp.Event{Type: mp.EventTurnFailed, TurnID: result.TurnID, Reason: err.Error()})
	return result, err
}

func (p *Pipeline) advance(log *zap.Logger, result *TurnResult, next Stage) {
	log.Debug("turn stage", zap.String("from", string(result.Stage)), zap.String("to", string(next)))
	result.Stage = next
}

func (p *Pipeline) publish(ctx context.Context, evt mp.Event) {
	if p.Events == nil {
		return
	}
	if p.Clock != nil {
		evt.TS = p.Clock.NowUnix()
	}
	if err := p.Events.PublishEvent(ctx, evt); err != nil {
		p.logger().Debug("publish event", zap.String("type", evt.Type), zap.Error(err))
	}
}

func (p *Pipeline) extractor() Extractor {
	if p.Extractor == nil {
		return BracketExtractor{}
	}
	return p.Extractor
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func (p *Pipeline) newID() string {
	if p.IDGen == nil {
		return ""
	}
	return p.IDGen.NewID()
}

func classifyModelError(err error) error {
	switch {
	case errors.Is(err, ErrModelAuth), errors.Is(err, ErrModelUnavailable):
		return err
	case errors.Is(err, ports.ErrUnauthorized):
		return fmt.Errorf("%w: %w", ErrModelAuth, err)
	default:
		return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
}
