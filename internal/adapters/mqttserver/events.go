package mqttserver

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/mikey-austin/moodplay/pkg/mp"
)

// Publisher is the subset of Client used to emit events.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// EventPublisher sends pipeline events to the node event topic.
type EventPublisher struct {
	Client    Publisher
	TopicBase string
	NodeID    string
}

// PublishEvent implements ports.EventPublisher.
func (e EventPublisher) PublishEvent(ctx context.Context, evt mp.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return e.Client.Publish(mp.TopicEvents(e.TopicBase, e.NodeID), 0, false, payload)
}
