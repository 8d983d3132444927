package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/iran-tracker-data/internal/config"
	"github.com/couchcryptid/iran-tracker-data/internal/domain"
	"github.com/couchcryptid/iran-tracker-data/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes snapshots to Kafka: one message per incident and one per
// impact summary, each on its own topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer        *kafkago.Writer
	incidentTopic string
	impactTopic   string
	logger        *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topics.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{
		writer:        w,
		incidentTopic: cfg.KafkaIncidentTopic,
		impactTopic:   cfg.KafkaImpactTopic,
		logger:        logger,
	}
}

// Publish serializes the snapshot's incidents and impact summaries and
// writes them in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, snap *pipeline.Snapshot) error {
	msgs, err := w.messages(snap)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish snapshot %d: %w", snap.Seq, err)
	}
	w.logger.Debug("snapshot published", "seq", snap.Seq, "messages", len(msgs))
	return nil
}

func (w *Writer) messages(snap *pipeline.Snapshot) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(snap.Incidents)+len(snap.Impacts))
	for i := range snap.Incidents {
		msg, err := serializeIncident(w.incidentTopic, snap, snap.Incidents[i])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for i := range snap.Impacts {
		msg, err := serializeImpact(w.impactTopic, snap, snap.Impacts[i])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeIncident marshals an IncidentRecord into a Kafka message keyed by
// incident ID.
func serializeIncident(topic string, snap *pipeline.Snapshot, inc domain.IncidentRecord) (kafkago.Message, error) {
	data, err := json.Marshal(inc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident %s: %w", inc.ID, err)
	}
	return kafkago.Message{
		Topic: topic,
		Key:   []byte(inc.ID),
		Value: data,
		Headers: append(snapshotHeaders(snap),
			kafkago.Header{Key: "primary_category", Value: []byte(inc.PrimaryCategory)},
		),
	}, nil
}

// serializeImpact marshals an ImpactSummary into a Kafka message keyed by
// impact ID.
func serializeImpact(topic string, snap *pipeline.Snapshot, s domain.ImpactSummary) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize impact %s: %w", s.ID, err)
	}
	return kafkago.Message{
		Topic:   topic,
		Key:     []byte(s.ID),
		Value:   data,
		Headers: snapshotHeaders(snap),
	}, nil
}

func snapshotHeaders(snap *pipeline.Snapshot) []kafkago.Header {
	return []kafkago.Header{
		{Key: "snapshot_seq", Value: []byte(strconv.FormatUint(snap.Seq, 10))},
		{Key: "built_at", Value: []byte(snap.BuiltAt.Format(time.RFC3339))},
	}
}
