package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventBus(t *testing.T) {
	eb := NewEventBus()
	require.NotNil(t, eb)
	require.NotNil(t, eb.handlers)
}

func TestEventBus_Subscribe(t *testing.T) {
	eb := NewEventBus()
	called := false

	eb.Subscribe(EventTurnStart, func(e Event) {
		called = true
	})
	eb.Publish(Event{Type: EventTurnStart})

	assert.True(t, called, "handler was not called")
}

func TestEventBus_SubscribeAll(t *testing.T) {
	eb := NewEventBus()
	count := 0

	eb.SubscribeAll(func(e Event) {
		count++
	})

	eb.Publish(Event{Type: EventTurnStart})
	eb.Publish(Event{Type: EventTurnEnd})
	eb.Publish(Event{Type: EventScenarioComplete})

	assert.Equal(t, 3, count)
}

func TestEventBus_PublishWithData(t *testing.T) {
	eb := NewEventBus()
	var received Event

	eb.Subscribe(EventToolCallStart, func(e Event) {
		received = e
	})
	eb.PublishWithData(EventToolCallStart, "memory_kv_0", map[string]interface{}{"tool": "short_term_memory_add"})

	assert.Equal(t, "memory_kv_0", received.ScenarioID)
	assert.Equal(t, "short_term_memory_add", received.Data["tool"])
}

func TestEventBus_PublishSimple(t *testing.T) {
	eb := NewEventBus()
	var received Event

	eb.Subscribe(EventScenarioComplete, func(e Event) {
		received = e
	})
	eb.PublishSimple(EventScenarioComplete, "memory_kv_1")

	assert.Equal(t, "memory_kv_1", received.ScenarioID)
	assert.Equal(t, EventScenarioComplete, received.Type)
}

func TestEventBus_TimestampAutoSet(t *testing.T) {
	eb := NewEventBus()
	var received Event

	eb.Subscribe(EventSnapshotFlushed, func(e Event) {
		received = e
	})

	before := time.Now()
	eb.Publish(Event{Type: EventSnapshotFlushed})
	after := time.Now()

	assert.False(t, received.Timestamp.Before(before) || received.Timestamp.After(after), "timestamp not set correctly")
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	eb := NewEventBus()
	startCalled := false
	endCalled := false

	eb.Subscribe(EventTurnStart, func(e Event) { startCalled = true })
	eb.Subscribe(EventTurnEnd, func(e Event) { endCalled = true })

	eb.Publish(Event{Type: EventTurnStart})

	assert.True(t, startCalled)
	assert.False(t, endCalled)
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	eb := NewEventBus()
	var count int
	var mu sync.Mutex

	eb.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eb.Publish(Event{Type: EventToolCallEnd})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 100, count)
}
