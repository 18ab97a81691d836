package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"is31ledd/internal/config"
	"is31ledd/internal/logging"
)

// connectTimeout bounds both the dial and the wait for CONNACK.
var connectTimeout = 10 * time.Second

const (
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 1000 // milliseconds
	keepAlive         = 60 * time.Second
	maxReconnect      = 30 * time.Second
)

// MessageHandler handles one received message. A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Client wraps a paho client with the bridge's status topic, last will and
// resubscription on reconnect. It is safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	topics Topics
	qos    byte
	log    *slog.Logger

	subMu sync.Mutex
	subs  map[string]MessageHandler

	connMu    sync.RWMutex
	connected bool
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxReconnect)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWill(Topics{Prefix: cfg.TopicPrefix}.Status(), statusOffline, byte(cfg.QoS), true)
	return opts
}

// Connect dials the broker and publishes "online" on the status topic.
func Connect(cfg config.MQTTConfig, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = logging.Discard()
	}
	c := &Client{
		topics: Topics{Prefix: cfg.TopicPrefix},
		qos:    byte(cfg.QoS),
		log:    log.With("component", "mqtt"),
		subs:   make(map[string]MessageHandler),
	}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.setConnected(false)
		c.log.Warn("connection lost", "error", err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// Abandon the attempt so paho's connect goroutine does not outlive us.
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	// The connect handler runs asynchronously; mark connected now so callers
	// can subscribe straight away.
	c.setConnected(true)
	c.log.Info("connected", "broker", cfg.Broker, "client_id", cfg.ClientID)
	return c, nil
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

func (c *Client) handleConnect() {
	c.setConnected(true)

	c.subMu.Lock()
	for topic, h := range c.subs {
		c.client.Subscribe(topic, c.qos, c.wrap(h))
	}
	c.subMu.Unlock()

	c.client.Publish(c.topics.Status(), c.qos, true, statusOnline)
}

func (c *Client) wrap(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			c.log.Warn("handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

// Publish sends payload with the configured QoS.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, c.qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers h for topic. Subscriptions are restored on reconnect.
func (c *Client) Subscribe(topic string, h MessageHandler) error {
	if h == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subs[topic] = h
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, c.qos, c.wrap(h))
	var err error
	if !token.WaitTimeout(publishTimeout) {
		err = fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, publishTimeout)
	} else if terr := token.Error(); terr != nil {
		err = fmt.Errorf("%w: %w", ErrSubscribeFailed, terr)
	}
	if err != nil {
		c.subMu.Lock()
		delete(c.subs, topic)
		c.subMu.Unlock()
	}
	return err
}

// Close publishes "offline" and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.client.Publish(c.topics.Status(), c.qos, true, statusOffline)
		token.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
	c.setConnected(false)
	return nil
}
