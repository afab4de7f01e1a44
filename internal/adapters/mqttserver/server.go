package mqttserver

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/mikey-austin/moodplay/internal/adapters/tlsconf"
)

// Options configures the daemon's MQTT client.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLSCA     string
	TLSCert   string
	TLSKey    string
	// Timeout bounds connecting and every publish or subscribe round trip.
	Timeout time.Duration
	Logger  *zap.Logger
	// Debug logs every payload, truncated.
	Debug bool
	// WillTopic, when set, receives WillPayload retained if the daemon drops
	// off the broker without a clean disconnect.
	WillTopic   string
	WillPayload []byte
}

type subscription struct {
	qos     byte
	handler paho.MessageHandler
}

// Client wraps an MQTT connection for daemon modules. Subscriptions survive
// reconnects.
type Client struct {
	client  paho.Client
	log     *zap.Logger
	debug   bool
	timeout time.Duration

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient connects to MQTT.
func NewClient(opts Options) (*Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Client{
		log:     opts.Logger,
		debug:   opts.Debug,
		timeout: opts.Timeout,
		subs:    map[string]subscription{},
	}

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(opts.Timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warn("mqtt connection lost", zap.Error(err))
	})
	clientOpts.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		c.log.Info("mqtt reconnecting")
	})
	clientOpts.SetOnConnectHandler(func(_ paho.Client) {
		c.resubscribe()
	})

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	if opts.WillTopic != "" {
		clientOpts.SetBinaryWill(opts.WillTopic, opts.WillPayload, 1, true)
	}

	tlsConfig, err := tlsconf.Build(opts.TLSCA, opts.TLSCert, opts.TLSKey)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	c.client = paho.NewClient(clientOpts)
	if err := c.wait(c.client.Connect(), "connect "+opts.BrokerURL); err != nil {
		return nil, err
	}
	return c, nil
}

// Publish publishes a message.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if c.debug {
		c.log.Debug("mqtt publish", zap.String("topic", topic), zap.Bool("retained", retained), zap.String("payload", truncatePayload(payload)))
	}
	return c.wait(c.client.Publish(topic, qos, retained, payload), "publish "+topic)
}

// Subscribe subscribes to a topic and remembers it for reconnects.
func (c *Client) Subscribe(topic string, qos byte, handler paho.MessageHandler) error {
	if c.debug {
		c.log.Debug("mqtt subscribe", zap.String("topic", topic))
		inner := handler
		handler = func(client paho.Client, msg paho.Message) {
			c.log.Debug("mqtt message", zap.String("topic", msg.Topic()), zap.String("payload", truncatePayload(msg.Payload())))
			inner(client, msg)
		}
	}
	if err := c.wait(c.client.Subscribe(topic, qos, handler), "subscribe "+topic); err != nil {
		return err
	}
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()
	return nil
}

// Unsubscribe unsubscribes from a topic.
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
	return c.wait(c.client.Unsubscribe(topic), "unsubscribe "+topic)
}

// Close disconnects, giving in-flight messages a moment to drain.
func (c *Client) Close() {
	c.client.Disconnect(250)
}

// resubscribe restores subscriptions after the broker forgot the session.
// It runs on every connect; the first time there is nothing to restore.
func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	for topic, sub := range subs {
		if err := c.wait(c.client.Subscribe(topic, sub.qos, sub.handler), "resubscribe "+topic); err != nil {
			c.log.Warn("mqtt resubscribe failed", zap.String("topic", topic), zap.Error(err))
			continue
		}
		c.log.Info("mqtt resubscribed", zap.String("topic", topic))
	}
}

func (c *Client) wait(token paho.Token, op string) error {
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("mqtt %s: timed out after %s", op, c.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt %s: %w", op, err)
	}
	return nil
}

func truncatePayload(payload []byte) string {
	const max = 2048
	if len(payload) <= max {
		return string(payload)
	}
	return string(payload[:max]) + "..."
}
