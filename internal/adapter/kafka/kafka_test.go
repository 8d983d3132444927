package kafka

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/iran-tracker-data/internal/config"
	"github.com/couchcryptid/iran-tracker-data/internal/domain"
	"github.com/couchcryptid/iran-tracker-data/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *pipeline.Snapshot {
	return &pipeline.Snapshot{
		Seq:     7,
		BuiltAt: time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC),
		Incidents: []domain.IncidentRecord{
			{ID: "101", PrimaryCategory: "Explosion", Categories: []string{"Explosion"}, EvidenceCount: 1},
		},
		Impacts: []domain.ImpactSummary{
			{ID: "enrichment", Title: "Enrichment", Total: 3, Destroyed: 1},
		},
	}
}

func TestSerializeIncident(t *testing.T) {
	snap := testSnapshot()

	msg, err := serializeIncident("iran-incidents", snap, snap.Incidents[0])
	require.NoError(t, err)

	assert.Equal(t, "iran-incidents", msg.Topic)
	assert.Equal(t, []byte("101"), msg.Key)
	assert.Contains(t, string(msg.Value), `"primary_category":"Explosion"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "snapshot_seq", msg.Headers[0].Key)
	assert.Equal(t, []byte("7"), msg.Headers[0].Value)
	assert.Equal(t, "built_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2025-06-20T12:00:00Z"), msg.Headers[1].Value)
	assert.Equal(t, "primary_category", msg.Headers[2].Key)
}

func TestSerializeImpact(t *testing.T) {
	snap := testSnapshot()

	msg, err := serializeImpact("iran-facility-impacts", snap, snap.Impacts[0])
	require.NoError(t, err)

	assert.Equal(t, "iran-facility-impacts", msg.Topic)
	assert.Equal(t, []byte("enrichment"), msg.Key)
	assert.Contains(t, string(msg.Value), `"destroyed":1`)
	assert.Len(t, msg.Headers, 2)
}

func TestWriter_MessagesRouteByTopic(t *testing.T) {
	w := NewWriter(&config.Config{
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaIncidentTopic: "inc",
		KafkaImpactTopic:   "imp",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	msgs, err := w.messages(testSnapshot())
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	assert.Equal(t, "inc", msgs[0].Topic)
	assert.Equal(t, "imp", msgs[1].Topic)
}
