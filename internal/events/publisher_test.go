package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/transformer-inspect/internal/annotation"
	"github.com/tphakala/transformer-inspect/internal/datastore/entities"
	"github.com/tphakala/transformer-inspect/internal/errors"
)

type doneToken struct {
	done chan struct{}
	err  error
}

func newToken(err error, complete bool) *doneToken {
	t := &doneToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *doneToken) Wait() bool { <-t.done; return true }
func (t *doneToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *doneToken) Done() <-chan struct{} { return t.done }
func (t *doneToken) Error() error          { return t.err }

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// fakeClient implements the parts of mqtt.Client the publisher uses.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	opts         *mqtt.ClientOptions
	connected    bool
	connectErr   error
	publishErr   error
	hangPublish  bool
	messages     []published
	disconnected int
}

func (f *fakeClient) Connect() mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = f.connectErr == nil
	return newToken(f.connectErr, true)
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hangPublish {
		return newToken(nil, false)
	}
	f.messages = append(f.messages, published{topic: topic, qos: qos, retain: retained, payload: payload.([]byte)})
	return newToken(f.publishErr, true)
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected++
}

func newTestPublisher(t *testing.T, cfg Config, fake *fakeClient) *Publisher {
	t.Helper()
	p, err := NewPublisher(cfg, WithClientFactory(func(o *mqtt.ClientOptions) mqtt.Client {
		fake.opts = o
		return fake
	}))
	require.NoError(t, err)
	return p
}

func TestNewPublisherValidation(t *testing.T) {
	_, err := NewPublisher(Config{Broker: "not a url"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = NewPublisher(Config{Broker: "tcp://localhost:1883", QoS: 3})
	require.Error(t, err)

	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883", Topic: "/grid/east/"})
	require.NoError(t, err)
	assert.Equal(t, "grid/east/annotations/confirmed", p.Topic(annotation.EventConfirmed))

	p, err = NewPublisher(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	assert.Equal(t, "transformer-inspect/annotations/created", p.Topic(annotation.EventCreated))
}

func TestPublishEncodesEventOnKindTopic(t *testing.T) {
	fake := &fakeClient{}
	p := newTestPublisher(t, Config{Broker: "tcp://broker:1883", ClientID: "ti-1", Username: "u", QoS: 1, Retain: true}, fake)

	require.NoError(t, p.Connect(context.Background()))
	require.True(t, p.IsConnected())
	assert.Equal(t, "ti-1", fake.opts.ClientID)
	assert.Equal(t, "u", fake.opts.Username)
	assert.True(t, fake.opts.AutoReconnect)

	ts := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	ev := annotation.Event{
		Kind:         annotation.EventEdited,
		AnnotationID: 7,
		ImageID:      3,
		Type:         entities.AnnotationUserEdited,
		UserID:       "alice",
		Timestamp:    ts,
	}
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, fake.messages, 1)
	msg := fake.messages[0]
	assert.Equal(t, "transformer-inspect/annotations/edited", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retain)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "edited", got["kind"])
	assert.InDelta(t, 7, got["annotationId"], 0)
	assert.Equal(t, "USER_EDITED", got["annotationType"])
	assert.Equal(t, "alice", got["userId"])
	assert.Equal(t, "2026-03-01T08:30:00Z", got["timestamp"])

	p.Close()
	p.Close()
	assert.Equal(t, 1, fake.disconnected)
	assert.False(t, p.IsConnected())
}

func TestPublishFailures(t *testing.T) {
	ev := annotation.Event{Kind: annotation.EventCreated, AnnotationID: 1}

	t.Run("not_connected", func(t *testing.T) {
		p := newTestPublisher(t, Config{Broker: "tcp://broker:1883"}, &fakeClient{})
		require.ErrorIs(t, p.Publish(context.Background(), ev), ErrNotConnected)
	})

	t.Run("connect_error", func(t *testing.T) {
		fake := &fakeClient{connectErr: assert.AnError}
		p := newTestPublisher(t, Config{Broker: "tcp://broker:1883"}, fake)
		err := p.Connect(context.Background())
		require.ErrorIs(t, err, assert.AnError)
		assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
		require.ErrorIs(t, p.Publish(context.Background(), ev), ErrNotConnected)
	})

	t.Run("broker_rejects", func(t *testing.T) {
		fake := &fakeClient{publishErr: assert.AnError}
		p := newTestPublisher(t, Config{Broker: "tcp://broker:1883"}, fake)
		require.NoError(t, p.Connect(context.Background()))
		require.ErrorIs(t, p.Publish(context.Background(), ev), assert.AnError)
	})

	t.Run("timeout", func(t *testing.T) {
		fake := &fakeClient{hangPublish: true}
		p := newTestPublisher(t, Config{Broker: "tcp://broker:1883", PublishTimeout: 10 * time.Millisecond}, fake)
		require.NoError(t, p.Connect(context.Background()))
		err := p.Publish(context.Background(), ev)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("cancelled", func(t *testing.T) {
		fake := &fakeClient{hangPublish: true}
		p := newTestPublisher(t, Config{Broker: "tcp://broker:1883"}, fake)
		require.NoError(t, p.Connect(context.Background()))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, p.Publish(ctx, ev), context.Canceled)
	})
}
