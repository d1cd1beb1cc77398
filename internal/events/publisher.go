// Package events publishes annotation lifecycle events to an MQTT broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/transformer-inspect/internal/annotation"
	"github.com/tphakala/transformer-inspect/internal/errors"
	"github.com/tphakala/transformer-inspect/internal/logger"
)

// ErrNotConnected is returned by Publish before Connect succeeds or while
// the client is reconnecting.
var ErrNotConnected = errors.NewStd("not connected to MQTT broker")

// Config holds the broker settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic is the prefix; events go to {Topic}/annotations/{kind}.
	Topic  string
	QoS    byte
	Retain bool

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ClientID:          "transformer-inspect",
		Topic:             "transformer-inspect",
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ClientFactory builds the underlying paho client. Tests replace it.
type ClientFactory func(*mqtt.ClientOptions) mqtt.Client

// Publisher implements annotation.EventPublisher over MQTT.
type Publisher struct {
	config    Config
	log       logger.Logger
	newClient ClientFactory

	mu     sync.Mutex
	client mqtt.Client
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithLogger(l logger.Logger) Option { return func(p *Publisher) { p.log = l } }

func WithClientFactory(f ClientFactory) Option { return func(p *Publisher) { p.newClient = f } }

var _ annotation.EventPublisher = (*Publisher)(nil)

// NewPublisher validates cfg and returns an unconnected publisher.
func NewPublisher(cfg Config, opts ...Option) (*Publisher, error) {
	def := DefaultConfig()
	if cfg.ClientID == "" {
		cfg.ClientID = def.ClientID
	}
	cfg.Topic = strings.Trim(strings.TrimSpace(cfg.Topic), "/")
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = def.DisconnectTimeout
	}
	if cfg.QoS > 2 {
		return nil, configError(fmt.Errorf("invalid QoS %d", cfg.QoS))
	}
	u, err := url.Parse(cfg.Broker)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, configError(fmt.Errorf("invalid broker URL %q", cfg.Broker))
	}

	p := &Publisher{config: cfg, newClient: mqtt.NewClient}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	p.log = p.log.Module("events")
	return p, nil
}

// Topic returns the topic an event of the given kind is published to.
func (p *Publisher) Topic(kind annotation.EventKind) string {
	return p.config.Topic + "/annotations/" + string(kind)
}

// Connect dials the broker. Paho reconnects on its own after a successful connect.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.client.IsConnected() {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetUsername(p.config.Username)
	opts.SetPassword(p.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(p.config.ConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.log.Info("connected to MQTT broker", logger.String("broker", p.config.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.log.Warn("connection to MQTT broker lost", logger.String("broker", p.config.Broker), logger.Error(err))
	})

	client := p.newClient(opts)
	if err := wait(ctx, client.Connect(), p.config.ConnectTimeout); err != nil {
		return errors.New(fmt.Errorf("connect to MQTT broker: %w", err)).
			Component(errors.ComponentEvents).
			Category(errors.CategoryNetwork).
			Context("broker", p.config.Broker).
			Build()
	}
	p.client = client
	return nil
}

// Publish sends ev as JSON. It does not retry; the caller logs failures.
func (p *Publisher) Publish(ctx context.Context, ev annotation.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.New(fmt.Errorf("encode event: %w", err)).
			Component(errors.ComponentEvents).
			Category(errors.CategoryGeneric).
			Build()
	}

	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	topic := p.Topic(ev.Kind)
	if err := wait(ctx, client.Publish(topic, p.config.QoS, p.config.Retain, payload), p.config.PublishTimeout); err != nil {
		return errors.New(fmt.Errorf("publish to %s: %w", topic, err)).
			Component(errors.ComponentEvents).
			Category(errors.CategoryNetwork).
			Context("topic", topic).
			Build()
	}
	p.log.Debug("event published",
		logger.String("topic", topic),
		logger.Uint64("annotation_id", uint64(ev.AnnotationID)))
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil && p.client.IsConnected()
}

// Close disconnects from the broker. Calling it twice is harmless.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return
	}
	p.client.Disconnect(uint(p.config.DisconnectTimeout.Milliseconds()))
	p.client = nil
}

// wait blocks until the token completes, ctx ends or the timeout passes.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	}
}

func configError(err error) error {
	return errors.New(err).
		Component(errors.ComponentEvents).
		Category(errors.CategoryConfiguration).
		Build()
}
