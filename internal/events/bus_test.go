package events

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch1, unsub1 := bus.Subscribe(4)
	ch2, unsub2 := bus.Subscribe(4)
	defer unsub1()
	defer unsub2()

	bus.Publish(ScanCompleted, "scanner", map[string]interface{}{"portfolios": 3})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			assert.Equal(t, ScanCompleted, event.Type)
			assert.Equal(t, "scanner", event.Module)
			assert.Equal(t, 3, event.Data["portfolios"])
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch, unsubscribe := bus.Subscribe(1)
	require.Equal(t, 1, bus.SubscriberCount())

	unsubscribe()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Double unsubscribe is safe
	unsubscribe()
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	_, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(FindingRecorded, "scanner", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}
