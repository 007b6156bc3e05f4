// Package kafka publishes audit events to a Kafka topic via franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"bastion/internal/audit"
)

// Sink produces audit events to a single topic. ProduceSync gives the
// all-or-nothing-ish contract the writer expects: any failed record fails
// the batch, and the writer requeues everything (duplicates on replay are
// acceptable, loss is not).
type Sink struct {
	client *kgo.Client
	topic  string
}

// payload is the JSON wire form of an audit event.
type payload struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	TenantID     string `json:"tenant_id"`
	UserID       string `json:"user_id,omitempty"`
	UserName     string `json:"user_name,omitempty"`
	Action       string `json:"action"`
	Module       string `json:"module"`
	TargetType   string `json:"target_type,omitempty"`
	TargetID     string `json:"target_id,omitempty"`
	OldValue     string `json:"old_value,omitempty"`
	NewValue     string `json:"new_value,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
	ClientIP     string `json:"client_ip"`
	UserAgent    string `json:"user_agent,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

// New constructs a Kafka sink and ensures the topic exists with a single
// partition and replication factor 1. Production clusters should raise both
// via broker-side defaults.
func New(ctx context.Context, client *kgo.Client, topic string) (*Sink, error) {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return nil, fmt.Errorf("create audit topic: %w", err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return nil, fmt.Errorf("create audit topic %s: %w", res.Topic, res.Err)
		}
	}
	return &Sink{client: client, topic: topic}, nil
}

func (s *Sink) InsertOne(ctx context.Context, event audit.Event) error {
	return s.InsertBatch(ctx, []audit.Event{event})
}

func (s *Sink) InsertBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(toPayload(event))
		if err != nil {
			return fmt.Errorf("marshal audit event %s: %w", event.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			// Keying by tenant keeps one tenant's trail ordered within a
			// partition.
			Key:   []byte(event.TenantID),
			Value: value,
		})
	}

	if err := s.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}
	return nil
}

func toPayload(event audit.Event) payload {
	return payload{
		ID:           event.ID.String(),
		Timestamp:    event.Timestamp.Format(time.RFC3339Nano),
		TenantID:     event.TenantID,
		UserID:       event.UserID,
		UserName:     event.UserName,
		Action:       event.Action,
		Module:       event.Module,
		TargetType:   event.TargetType,
		TargetID:     event.TargetID,
		OldValue:     event.OldValue,
		NewValue:     event.NewValue,
		Status:       string(event.Status),
		ErrorMessage: event.ErrorMessage,
		DurationMs:   event.DurationMs,
		ClientIP:     event.ClientIP,
		UserAgent:    event.UserAgent,
		RequestID:    event.RequestID,
	}
}
