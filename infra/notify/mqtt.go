package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	coremqtt "github.com/kilianp07/energyiot/core/mqtt"
)

// Message is the JSON document published for each report.
type Message struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Time    time.Time `json:"time"`
}

// MQTTNotifier publishes reports on a broker topic.
type MQTTNotifier struct {
	pub      coremqtt.Publisher
	topic    string
	retained bool
	now      func() time.Time
}

// NewMQTT returns a notifier publishing on topic. Retained messages keep
// the last report visible to late subscribers.
func NewMQTT(pub coremqtt.Publisher, topic string, retained bool) (*MQTTNotifier, error) {
	if pub == nil {
		return nil, fmt.Errorf("mqtt notifier: %w", coremqtt.ErrNoClient)
	}
	if topic == "" {
		return nil, errors.New("mqtt notifier: topic is required")
	}
	return &MQTTNotifier{pub: pub, topic: topic, retained: retained, now: time.Now}, nil
}

// Send implements report.Notifier.
func (n *MQTTNotifier) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(Message{Subject: subject, Body: body, Time: n.now().UTC()})
	if err != nil {
		return err
	}
	if err := n.pub.Publish(n.topic, payload, n.retained); err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}
