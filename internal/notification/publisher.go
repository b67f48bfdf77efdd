// Package notification publishes record snapshots to the downstream topic
// after successful mutations. Consumers downstream are the arranger surface
// and the legacy registry's sync job; both only need the current state, so
// the message is a snapshot, not a delta.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"deltaker/internal/participant"
	"deltaker/internal/platform/metrics"
	"deltaker/internal/status"
)

// Message is the outbound wire shape, keyed by record id.
type Message struct {
	ID              string        `json:"id"`
	PersonID        string        `json:"personId"`
	GjennomforingID string        `json:"gjennomforingId"`
	Tiltakstype     string        `json:"tiltakstype"`
	Startdato       *string       `json:"startdato"`
	Sluttdato       *string       `json:"sluttdato"`
	DagerPerUke     *float32      `json:"dagerPerUke"`
	Prosent         *float64      `json:"prosentStilling"`
	Status          StatusMessage `json:"status"`
	Kilde           string        `json:"kilde"`
	DeltMedArrangor bool          `json:"deltMedArrangor"`
	SistEndret      time.Time     `json:"sistEndret"`
}

type StatusMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Aarsak    *string   `json:"aarsak"`
	GyldigFra time.Time `json:"gyldigFra"`
}

// KafkaPublisher implements participant.Publisher over a franz-go producer.
type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger, m *metrics.Metrics) (*KafkaPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger, metrics: m}, nil
}

// Publish ships the record snapshot. Drafts never reach this point; the
// engine filters them before calling.
func (p *KafkaPublisher) Publish(ctx context.Context, d participant.Deltaker) error {
	value, err := json.Marshal(encode(d))
	if err != nil {
		return fmt.Errorf("encode record %s: %w", d.ID, err)
	}
	record := &kgo.Record{
		Key:   []byte(d.ID.String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce record %s: %w", d.ID, err)
	}
	p.metrics.RecordNotificationSent()
	p.logger.DebugContext(ctx, "record published downstream",
		"deltaker_id", d.ID.String(),
		"status", d.Status.Type,
	)
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

func encode(d participant.Deltaker) Message {
	return Message{
		ID:              d.ID.String(),
		PersonID:        d.PersonID.String(),
		GjennomforingID: d.GjennomforingID.String(),
		Tiltakstype:     string(d.Tiltakstype),
		Startdato:       dateString(d.Startdato),
		Sluttdato:       dateString(d.Sluttdato),
		DagerPerUke:     d.DagerPerUke,
		Prosent:         d.Deltakelsesprosent,
		Status:          encodeStatus(d.Status),
		Kilde:           string(d.Kilde),
		DeltMedArrangor: d.ErManueltDeltMedArrangor,
		SistEndret:      d.SistEndret,
	}
}

func encodeStatus(s status.Status) StatusMessage {
	var aarsak *string
	if s.Aarsak != nil {
		v := string(s.Aarsak.Type)
		aarsak = &v
	}
	return StatusMessage{
		ID:        s.ID.String(),
		Type:      string(s.Type),
		Aarsak:    aarsak,
		GyldigFra: s.GyldigFra,
	}
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format("2006-01-02")
	return &v
}
