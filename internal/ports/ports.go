package ports

import (
	"context"
	"errors"

	"github.com/mikey-austin/moodplay/pkg/mp"
)

// ErrUnauthorized marks credential failures reported by an external service.
var ErrUnauthorized = errors.New("unauthorized")

// ChatModel completes a conversation with a language model.
type ChatModel interface {
	Complete(ctx context.Context, turns []mp.Turn) (string, error)
}

// MetadataSearch looks up canonical track metadata. Results are ordered by the
// service's relevance ranking and may be empty.
type MetadataSearch interface {
	SearchTrack(ctx context.Context, track string, artist string) ([]mp.Recommendation, error)
}

// VideoSearch finds playable videos for a free-text query.
type VideoSearch interface {
	SearchVideos(ctx context.Context, query string, limit int) ([]mp.VideoResult, error)
}

// PlaybackQueue appends items to the tail of the player queue without
// interrupting current playback.
type PlaybackQueue interface {
	EnqueueAppendPlay(ctx context.Context, item mp.PlayableItem) error
}

// EventPublisher publishes pipeline progress events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt mp.Event) error
}

// Broker publishes commands to a daemon and waits for the reply.
type Broker interface {
	ListPresence(ctx context.Context) ([]mp.Presence, error)
	ReplyTopic() string
	PublishCommand(ctx context.Context, nodeID string, cmd mp.CommandEnvelope) (mp.ReplyEnvelope, error)
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}
