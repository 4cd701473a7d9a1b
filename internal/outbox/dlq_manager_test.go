package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	m := NewDLQManager(nil, 5, time.Minute)

	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 8*time.Minute, m.backoffDelay(4))
	require.Equal(t, time.Hour, m.backoffDelay(12))
}

func TestRequeueDedupeKeyIsFresh(t *testing.T) {
	entry := dlqEntry{AggregateID: "a1", EventType: "activity.logged"}

	first := requeueDedupeKey(entry)
	time.Sleep(time.Millisecond)
	second := requeueDedupeKey(entry)

	require.Contains(t, first, "a1:activity.logged:")
	require.NotEqual(t, first, second)
}
