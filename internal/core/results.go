package core

import "github.com/mikey-austin/moodplay/pkg/mp"

// Stage is a step of the per-turn state machine. Only a reply that cannot be
// extracted moves a turn to StageFailed; any other error leaves Stage at the
// step where the turn stopped, e.g. StageAwaitingReply for a failed model call.
type Stage string

const (
	StageAwaitingReply  Stage = "awaiting_reply"
	StageExtracting     Stage = "extracting"
	StageResolvingItems Stage = "resolving_items"
	StageSummarizing    Stage = "summarizing"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// TurnResult describes one processed user turn.
type TurnResult struct {
	TurnID   string
	Stage    Stage
	Reply    string
	Summary  string
	Items    []mp.PlayableItem
	Dropped  []mp.Recommendation
	Failures []mp.ItemFailure
	// Aborted is set when a lookup service failure stopped the remaining items.
	Aborted bool
}

// AskReply converts the result to its wire form.
func (r TurnResult) AskReply() mp.AskReply {
	items := r.Items
	if items == nil {
		items = []mp.PlayableItem{}
	}
	return mp.AskReply{
		TurnID:   r.TurnID,
		Stage:    string(r.Stage),
		Summary:  r.Summary,
		Items:    items,
		Dropped:  r.Dropped,
		Failures: r.Failures,
	}
}

// HistoryResult holds conversation turns for output.
type HistoryResult struct {
	Turns []mp.Turn
}

// QueueResult holds a queue listing.
type QueueResult struct {
	Queue mp.QueueGetReply
}

// ResolveResult holds a diagnostic resolution.
type ResolveResult struct {
	Query mp.ResolveBody
	Reply mp.ResolveReply
}
