package core

import (
	"fmt"
	"sync"

	"github.com/mikey-austin/moodplay/pkg/mp"
)

// DefaultSystemPrompt instructs the model to end play requests with a JSON list.
const DefaultSystemPrompt = "You are a helpful assistant who knows a lot about music." +
	" Your task is to execute users requests." +
	" If the user asks you to play something write a json" +
	" list with tracks that satisfy user description" +
	" in following format at the end of your reply" +
	" [\n{\n\"artist\": \"ARTIST_NAME\",\n\"track\": \"TRACK_NAME\"\n}]"

// Conversation is the append-only transcript sent to the model. The first
// turn is always the system turn it was created with.
type Conversation struct {
	mu    sync.RWMutex
	turns []mp.Turn
}

// NewConversation starts a transcript with the fixed system turn.
func NewConversation(systemPrompt string) *Conversation {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Conversation{turns: []mp.Turn{{Role: mp.RoleSystem, Content: systemPrompt}}}
}

// Append adds a user or assistant turn.
func (c *Conversation) Append(role mp.Role, content string) (mp.Turn, error) {
	if role != mp.RoleUser && role != mp.RoleAssistant {
		return mp.Turn{}, fmt.Errorf("append %q turn: only user and assistant turns may be appended", role)
	}
	turn := mp.Turn{Role: role, Content: content}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turn)
	return turn, nil
}

// Snapshot returns a copy of the transcript in insertion order.
func (c *Conversation) Snapshot() []mp.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]mp.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// With returns the transcript followed by a pending turn, without recording it.
func (c *Conversation) With(pending mp.Turn) []mp.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]mp.Turn, 0, len(c.turns)+1)
	out = append(out, c.turns...)
	return append(out, pending)
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}
