package mqttserver

import (
	"context"
	"testing"

	"github.com/goccy/go-json"

	"github.com/mikey-austin/moodplay/pkg/mp"
)

type recordingPublisher struct {
	topic    string
	retained bool
	payload  []byte
}

func (r *recordingPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	r.topic = topic
	r.retained = retained
	r.payload = payload
	return nil
}

func TestEventPublisherTopicAndPayload(t *testing.T) {
	rec := &recordingPublisher{}
	pub := EventPublisher{Client: rec, TopicBase: mp.BaseTopic, NodeID: "mp:pipeline:home"}

	item := mp.PlayableItem{Artist: "Queen", Track: "Bohemian Rhapsody", Locator: "uri1"}
	if err := pub.PublishEvent(context.Background(), mp.Event{Type: mp.EventItemEnqueued, TurnID: "t1", Item: &item}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rec.topic != "moodplay/v1/node/mp:pipeline:home/evt" {
		t.Fatalf("topic = %q", rec.topic)
	}
	if rec.retained {
		t.Fatalf("events must not be retained")
	}
	var evt mp.Event
	if err := json.Unmarshal(rec.payload, &evt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Item == nil || evt.Item.Locator != "uri1" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestEventPublisherCancelled(t *testing.T) {
	rec := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (EventPublisher{Client: rec}).PublishEvent(ctx, mp.Event{Type: mp.EventTurnStarted}); err == nil {
		t.Fatalf("expected context error")
	}
	if rec.topic != "" {
		t.Fatalf("nothing should be published")
	}
}
