package requestbridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mikey-austin/moodplay/internal/core"
	"github.com/mikey-austin/moodplay/pkg/mp"
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// Pipeline is the part of core.Pipeline the bridge serves.
type Pipeline interface {
	Ask(ctx context.Context, prompt string) (core.TurnResult, error)
	History(n int) []mp.Turn
	Resolve(ctx context.Context, track string, artist string) (mp.ResolveReply, error)
}

// QueueSource lists the playback queue mirror.
type QueueSource interface {
	Snapshot(from int64, count int64) mp.QueueGetReply
}

// Config configures the request bridge.
type Config struct {
	NodeID    string
	TopicBase string
	Name      string
	// AskTimeout bounds a whole chat turn.
	AskTimeout time.Duration
}

// Module exposes the pipeline on the MQTT command topic.
type Module struct {
	log      *zap.Logger
	client   mqttClient
	pipeline Pipeline
	queue    QueueSource
	config   Config
	cmdTopic string
	now      func() time.Time

	wg sync.WaitGroup
}

// NewModule creates a request bridge.
func NewModule(log *zap.Logger, client mqttClient, pipeline Pipeline, queue QueueSource, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if client == nil {
		return nil, errors.New("mqtt client required")
	}
	if pipeline == nil {
		return nil, errors.New("pipeline required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = mp.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "moodplay"
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:      log,
		client:   client,
		pipeline: pipeline,
		queue:    queue,
		config:   cfg,
		cmdTopic: mp.TopicCommands(cfg.TopicBase, cfg.NodeID),
		now:      time.Now,
	}, nil
}

// Run announces presence and serves commands until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	if err := m.publishPresence(); err != nil {
		return err
	}

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(ctx, msg.Payload())
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	m.log.Info("request bridge ready", zap.String("topic", m.cmdTopic))

	<-ctx.Done()
	_ = m.client.Unsubscribe(m.cmdTopic)
	m.wg.Wait()
	// An empty retained payload clears our presence.
	_ = m.client.Publish(mp.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, nil)
	return nil
}

// Presence is the retained announcement for this node.
func (m *Module) Presence() mp.Presence {
	return mp.Presence{
		NodeID: m.config.NodeID,
		Kind:   mp.KindPipeline,
		Name:   m.config.Name,
		Caps: map[string]any{
			"commands": []string{mp.CommandAsk, mp.CommandHistory, mp.CommandQueue, mp.CommandResolve},
			"queue":    m.queue != nil,
		},
		TS: m.now().Unix(),
	}
}

func (m *Module) publishPresence() error {
	payload, err := json.Marshal(m.Presence())
	if err != nil {
		return err
	}
	return m.client.Publish(mp.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) handleMessage(ctx context.Context, payload []byte) {
	var cmd mp.CommandEnvelope
	if err := json.Unmarshal(payload, &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}
	if err := mp.ValidateCommandEnvelope(cmd); err != nil {
		m.log.Warn("rejected command", zap.String("id", cmd.ID), zap.String("type", cmd.Type), zap.Error(err))
		m.publishReply(cmd.ReplyTo, m.errorReply(cmd, core.CodeInvalid, err.Error()))
		return
	}

	// Turns can take a while; the pipeline serializes them itself.
	if cmd.Type == mp.CommandAsk {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.publishReply(cmd.ReplyTo, m.dispatch(ctx, cmd))
		}()
		return
	}
	m.publishReply(cmd.ReplyTo, m.dispatch(ctx, cmd))
}

func (m *Module) publishReply(replyTo string, reply mp.ReplyEnvelope) {
	if replyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Error("marshal reply", zap.Error(err))
		return
	}
	if err := m.client.Publish(replyTo, 1, false, payload); err != nil {
		m.log.Warn("publish reply", zap.String("topic", replyTo), zap.Error(err))
	}
}

func (m *Module) dispatch(ctx context.Context, cmd mp.CommandEnvelope) mp.ReplyEnvelope {
	switch cmd.Type {
	case mp.CommandAsk:
		return m.handleAsk(ctx, cmd)
	case mp.CommandHistory:
		return m.handleHistory(cmd)
	case mp.CommandQueue:
		return m.handleQueue(cmd)
	case mp.CommandResolve:
		return m.handleResolve(ctx, cmd)
	default:
		return m.errorReply(cmd, core.CodeInvalid, "unknown command")
	}
}

func (m *Module) handleAsk(ctx context.Context, cmd mp.CommandEnvelope) mp.ReplyEnvelope {
	var body mp.AskBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, core.CodeInvalid, "invalid body")
	}
	ctx, cancel := context.WithTimeout(ctx, m.config.AskTimeout)
	defer cancel()

	result, err := m.pipeline.Ask(ctx, body.Prompt)
	if err != nil {
		m.log.Warn("turn failed", zap.String("id", cmd.ID), zap.String("turn", result.TurnID), zap.Error(err))
		reply := m.errorReply(cmd, core.ReplyCodeForError(err), err.Error())
		reply.Body = mustJSON(result.AskReply())
		return reply
	}
	return m.okReply(cmd, result.AskReply())
}

func (m *Module) handleHistory(cmd mp.CommandEnvelope) mp.ReplyEnvelope {
	var body mp.HistoryBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, core.CodeInvalid, "invalid body")
	}
	if body.Last < 0 {
		return m.errorReply(cmd, core.CodeInvalid, "last must be >= 0")
	}
	return m.okReply(cmd, mp.HistoryReply{Turns: m.pipeline.History(body.Last)})
}

func (m *Module) handleQueue(cmd mp.CommandEnvelope) mp.ReplyEnvelope {
	var body mp.QueueGetBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, core.CodeInvalid, "invalid body")
	}
	if body.From < 0 || body.Count < 0 || body.Count > mp.MaxQueueWindow {
		return m.errorReply(cmd, core.CodeInvalid, fmt.Sprintf("from must be >= 0 and count between 0 and %d", mp.MaxQueueWindow))
	}
	if body.Count == 0 {
		body.Count = mp.MaxQueueWindow
	}
	if m.queue == nil {
		return m.okReply(cmd, mp.QueueGetReply{Entries: []mp.QueueItem{}})
	}
	return m.okReply(cmd, m.queue.Snapshot(body.From, body.Count))
}

func (m *Module) handleResolve(ctx context.Context, cmd mp.CommandEnvelope) mp.ReplyEnvelope {
	var body mp.ResolveBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return m.errorReply(cmd, core.CodeInvalid, "invalid body")
	}
	if strings.TrimSpace(body.Track) == "" {
		return m.errorReply(cmd, core.CodeInvalid, "track required")
	}
	reply, err := m.pipeline.Resolve(ctx, body.Track, body.Artist)
	if err != nil {
		return m.errorReply(cmd, core.ReplyCodeForError(err), err.Error())
	}
	return m.okReply(cmd, reply)
}

func (m *Module) okReply(cmd mp.CommandEnvelope, body any) mp.ReplyEnvelope {
	return mp.ReplyEnvelope{ID: cmd.ID, Type: "ack", OK: true, TS: m.now().Unix(), Body: mustJSON(body)}
}

func (m *Module) errorReply(cmd mp.CommandEnvelope, code string, message string) mp.ReplyEnvelope {
	return mp.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   m.now().Unix(),
		Err: &mp.ReplyError{
			Code:    code,
			Message: message,
		},
	}
}

func mustJSON(v any) []byte {
	payload, _ := json.Marshal(v)
	return payload
}
