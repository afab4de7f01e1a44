package mp

import "fmt"

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Turn is one message of the model conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Recommendation is an artist/track pair, either as emitted by the model or
// as canonicalized by the metadata service.
type Recommendation struct {
	Artist string `json:"artist"`
	Track  string `json:"track"`
}

// String renders the pair the way summaries show it.
func (r Recommendation) String() string {
	return fmt.Sprintf("%s - %s", r.Artist, r.Track)
}

// PlayableItem is a canonical recommendation with a playable locator.
type PlayableItem struct {
	Artist  string `json:"artist"`
	Track   string `json:"track"`
	Locator string `json:"locator"`
}

// VideoResult is one hit from the video search service.
type VideoResult struct {
	URI     string `json:"uri"`
	Title   string `json:"title,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// AskBody is the body of chat.ask.
type AskBody struct {
	Prompt string `json:"prompt"`
}

// AskReply is the reply body of chat.ask.
type AskReply struct {
	TurnID   string           `json:"turnId"`
	Stage    string           `json:"stage"`
	Summary  string           `json:"summary"`
	Items    []PlayableItem   `json:"items"`
	Dropped  []Recommendation `json:"dropped,omitempty"`
	Failures []ItemFailure    `json:"failures,omitempty"`
}

// ItemFailure records a recommendation skipped because a service failed.
type ItemFailure struct {
	Recommendation Recommendation `json:"recommendation"`
	Error          string         `json:"error"`
}

// HistoryBody is the body of chat.history.
type HistoryBody struct {
	Last int `json:"last,omitempty"`
}

// HistoryReply is the reply body of chat.history.
type HistoryReply struct {
	Turns []Turn `json:"turns"`
}

// MaxQueueWindow is the largest count a queue.get may ask for.
const MaxQueueWindow = 1000

// QueueGetBody is the body of queue.get. Count 0 means up to MaxQueueWindow.
type QueueGetBody struct {
	From  int64 `json:"from"`
	Count int64 `json:"count"`
}

// QueueItem describes one queued entry.
type QueueItem struct {
	QueueEntryID string `json:"queueEntryId"`
	Artist       string `json:"artist"`
	Track        string `json:"track"`
	Locator      string `json:"locator"`
	Error        string `json:"error,omitempty"`
}

// QueueGetReply is the reply body of queue.get.
type QueueGetReply struct {
	Revision int64       `json:"revision"`
	Entries  []QueueItem `json:"entries"`
}

// ResolveBody is the body of track.resolve.
type ResolveBody struct {
	Track  string `json:"track"`
	Artist string `json:"artist"`
}

// ResolveReply is the reply body of track.resolve.
type ResolveReply struct {
	Found     bool            `json:"found"`
	Canonical *Recommendation `json:"canonical,omitempty"`
	Locator   string          `json:"locator,omitempty"`
}
