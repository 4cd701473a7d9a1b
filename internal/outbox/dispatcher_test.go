package outbox

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestDeliverGroupsByTopicAndSetsHeaders(t *testing.T) {
	producer := &stubProducer{}
	d := &Dispatcher{producer: producer}

	messages := []Message{
		{
			EventID:        1,
			OrganizationID: "org-1",
			EventType:      "activity.logged",
			Topic:          "activity_events",
			PartitionKey:   "org-1",
			Payload:        json.RawMessage(`{"activity_id":"a1"}`),
		},
		{
			EventID:        2,
			OrganizationID: "org-1",
			EventType:      "activity.updated",
			Topic:          "activity_events",
			PartitionKey:   "org-1",
			Payload:        json.RawMessage(`{"activity_id":"a1"}`),
		},
	}

	require.NoError(t, d.deliver(context.Background(), messages))
	require.Len(t, producer.writes, 1)
	require.Equal(t, "activity_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)

	first := producer.writes[0].messages[0]
	require.Equal(t, []byte("org-1"), first.Key)
	require.Len(t, first.Headers, 2)
	require.Equal(t, "event_type", first.Headers[0].Key)
	require.Equal(t, []byte("activity.logged"), first.Headers[0].Value)
	require.Equal(t, "organization_id", first.Headers[1].Key)
	require.Equal(t, []byte("org-1"), first.Headers[1].Value)
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}
