package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBrokerDelivers(t *testing.T) {
	defer goleak.VerifyNone(t)

	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	assert.Equal(t, 1, broker.SubscriberCount())

	ok := broker.Publish(NewEvent(EventContainerClosing, "container 7 full", map[string]string{"container_id": "7"}))
	require.True(t, ok)

	select {
	case event := <-sub:
		assert.Equal(t, EventContainerClosing, event.Type)
		assert.Equal(t, "7", event.Metadata["container_id"])
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	broker := NewBroker()

	// Not started: the queue fills and further events are dropped
	for i := 0; i < cap(broker.eventCh); i++ {
		require.True(t, broker.Publish(NewEvent(EventNodeStale, "", nil)))
	}
	assert.False(t, broker.Publish(NewEvent(EventNodeStale, "", nil)))

	broker.Stop()
	assert.False(t, broker.Publish(NewEvent(EventNodeDead, "", nil)))
}

func TestNilBroker(t *testing.T) {
	var broker *Broker
	assert.False(t, broker.Publish(NewEvent(EventBucketUpdated, "", nil)))
}
