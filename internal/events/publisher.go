// Package events delivers domain events produced by the dispatch engine.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"field-dispatch/internal/core"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
)

// LogPublisher writes events to the log. It is used when no topic is configured.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log.WithField("module", "events")}
}

func (p *LogPublisher) Publish(_ context.Context, ev core.Event) error {
	fields := logrus.Fields{"event": ev.Type, "key": ev.Key}
	for k, v := range ev.Attributes {
		fields[k] = v
	}
	p.log.WithFields(fields).Info("domain event")
	return nil
}

// Message is the JSON body published to the topic.
type Message struct {
	Type       core.EventType    `json:"type"`
	Key        string            `json:"key"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// PubSubPublisher publishes events to a Google Cloud Pub/Sub topic, ordered by key.
type PubSubPublisher struct {
	client  *pubsub.Client
	topic   *pubsub.Topic
	timeout time.Duration
}

// NewPubSubPublisher connects to projectID and publishes to topicName.
// Close stops the topic and the client.
func NewPubSubPublisher(ctx context.Context, projectID, topicName string) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	topic := client.Topic(topicName)
	topic.EnableMessageOrdering = true
	return &PubSubPublisher{client: client, topic: topic, timeout: 10 * time.Second}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, ev core.Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}

	attrs := map[string]string{"type": string(ev.Type)}
	for k, v := range ev.Attributes {
		attrs[k] = v
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: ev.Key,
	})
	if _, err := result.Get(ctx); err != nil {
		// An ordering key stays paused after a failure until resumed.
		p.topic.ResumePublish(ev.Key)
		return fmt.Errorf("publish %s %s: %w", ev.Type, ev.Key, err)
	}
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// Encode renders ev as the published JSON message.
func Encode(ev core.Event) ([]byte, error) {
	msg := Message{
		Type:       ev.Type,
		Key:        ev.Key,
		Attributes: ev.Attributes,
		OccurredAt: ev.OccurredAt,
	}
	if ev.Payload != nil {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", ev.Type, err)
		}
		msg.Payload = payload
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return data, nil
}

// Recorder keeps published events in memory. Tests use it to assert on events.
type Recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *Recorder) Publish(_ context.Context, ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns the recorded events of the given type, or all when typ is empty.
func (r *Recorder) Events(typ core.EventType) []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Event
	for _, ev := range r.events {
		if typ == "" || ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
