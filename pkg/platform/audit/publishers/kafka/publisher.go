// Package kafka ships audit events to a Kafka topic for downstream SIEM and
// compliance consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "enrolld/pkg/platform/audit"
)

// Publisher writes audit events to Kafka, keyed by registration ID so all
// events for one registration land on the same partition in order.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the given brokers. The produced records are acked by all
// in-sync replicas; audit loss is worse than audit latency.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// record is the wire shape; masked recipients only, never codes or tokens.
type record struct {
	Category        string `json:"category"`
	Action          string `json:"action"`
	OccurredAt      string `json:"occurred_at"`
	OrgID           string `json:"org_id,omitempty"`
	RegistrationID  string `json:"registration_id,omitempty"`
	ActorID         string `json:"actor_id,omitempty"`
	Channel         string `json:"channel,omitempty"`
	MaskedRecipient string `json:"masked_recipient,omitempty"`
	Reason          string `json:"reason,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
}

func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	r := record{
		Category:        string(event.Category),
		Action:          string(event.Action),
		OccurredAt:      event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Channel:         event.Channel,
		MaskedRecipient: event.MaskedRecipient,
		Reason:          event.Reason,
		RequestID:       event.RequestID,
	}
	if !event.OrgID.IsZero() {
		r.OrgID = event.OrgID.String()
	}
	if !event.RegistrationID.IsZero() {
		r.RegistrationID = event.RegistrationID.String()
	}
	if !event.ActorID.IsZero() {
		r.ActorID = event.ActorID.String()
	}

	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	p.client.Produce(ctx, &kgo.Record{Key: []byte(r.RegistrationID), Value: value}, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("kafka audit produce failed", "action", event.Action, "error", err)
		}
	})
	return nil
}

// Close flushes outstanding records and releases the client.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return err
	}
	p.client.Close()
	return nil
}
