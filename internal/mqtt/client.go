package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"foscam2mqtt/internal/logger"
	"foscam2mqtt/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

var ErrNotConnected = errors.New("mqtt: not connected")

const publishTimeout = 5 * time.Second

// Will is the last-will message the broker publishes when the connection is
// lost uncleanly.
type Will struct {
	Topic   string
	Payload string
	QoS     byte
	Retain  bool
}

// Handler receives the topic and payload of a subscribed message.
type Handler func(topic string, payload []byte)

type Client struct {
	client mqtt.Client
	config models.MQTTConfig

	mu            sync.Mutex
	subscriptions map[string]Handler
	onConnect     func()
}

type ClientOption func(*Client, *mqtt.ClientOptions)

// WithWill registers the last-will message.
func WithWill(w Will) ClientOption {
	return func(_ *Client, opts *mqtt.ClientOptions) {
		opts.SetWill(w.Topic, w.Payload, w.QoS, w.Retain)
	}
}

// WithOnConnect is called after every (re)connect, once subscriptions are
// restored.
func WithOnConnect(fn func()) ClientOption {
	return func(c *Client, _ *mqtt.ClientOptions) {
		c.onConnect = fn
	}
}

// BrokerURL builds the paho broker address from host, port and ssl flag.
func BrokerURL(cfg models.MQTTConfig) string {
	scheme := "tcp"
	if cfg.SSL {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

func NewClient(cfg models.MQTTConfig, options ...ClientOption) *Client {
	c := &Client{
		config:        cfg,
		subscriptions: make(map[string]Handler),
	}

	broker := BrokerURL(cfg)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "foscam2mqtt-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)

	if cfg.User != "" {
		opts.SetUsername(cfg.User)
		opts.SetPassword(cfg.Password)
	}
	if cfg.SSL {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Infof("Connected to MQTT broker at %s", broker)
		c.resubscribe()
		if c.onConnect != nil {
			c.onConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf("Lost connection to MQTT broker: %v", err)
	})

	for _, opt := range options {
		opt(c, opts)
	}

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect starts the connection. With connect retry enabled paho keeps
// trying in the background, so this only waits up to timeout.
func (c *Client) Connect(timeout time.Duration) error {
	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		logger.Warnf("MQTT broker at %s not reachable yet, retrying in background", BrokerURL(c.config))
		return nil
	}
	return token.Error()
}

// Subscribe registers a handler. Registrations survive reconnects.
func (c *Client) Subscribe(topic string, handler Handler) error {
	c.mu.Lock()
	c.subscriptions[topic] = handler
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return nil
	}
	return c.subscribe(topic, handler)
}

func (c *Client) subscribe(topic string, handler Handler) error {
	token := c.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	logger.Debugf("Subscribed to topic: %s", topic)
	return nil
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subscriptions))
	for t, h := range c.subscriptions {
		subs[t] = h
	}
	c.mu.Unlock()

	for topic, handler := range subs {
		if err := c.subscribe(topic, handler); err != nil {
			logger.Errorf("Failed to subscribe to %s: %v", topic, err)
		}
	}
}

func (c *Client) Publish(topic string, qos byte, retain bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	return token.Error()
}

func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}
