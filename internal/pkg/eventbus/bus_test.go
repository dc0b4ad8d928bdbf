package eventbus_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu  sync.Mutex
	ids []string
}

func (c *collector) Handle(_ context.Context, e leave.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, e.ID)
	return nil
}

func TestBus_DeliversToEverySubscriberInOrderPerKey(t *testing.T) {
	bus := eventbus.New(eventbus.Config{WorkerCount: 4, QueueSize: 16})

	first, second := &collector{}, &collector{}
	bus.Subscribe("first", first)
	bus.Subscribe("second", second)
	bus.Subscribe("failing", leave.EventHandlerFunc(func(context.Context, leave.Event) error {
		return errors.New("boom")
	}))
	bus.Subscribe("panicking", leave.EventHandlerFunc(func(context.Context, leave.Event) error {
		panic("boom")
	}))

	request := &leave.LeaveRequest{ID: "req-1"}
	want := []string{"e1", "e2", "e3", "e4", "e5"}
	for _, id := range want {
		bus.Publish(context.Background(), leave.Event{ID: id, Type: leave.EventLeaveSubmitted, Request: request})
	}
	bus.Close()

	assert.Equal(t, want, first.ids)
	assert.Equal(t, want, second.ids)
}

func TestBus_PublishAfterCloseDispatchesInline(t *testing.T) {
	bus := eventbus.New(eventbus.Config{WorkerCount: 1, QueueSize: 1})
	c := &collector{}
	bus.Subscribe("collector", c)
	bus.Close()

	bus.Publish(context.Background(), leave.Event{ID: "late"})
	require.Len(t, c.ids, 1)
	assert.Equal(t, "late", c.ids[0])
}

func TestBus_RequestCancellationDoesNotCancelHandlers(t *testing.T) {
	bus := eventbus.New(eventbus.Config{WorkerCount: 1})
	var gotErr error
	done := make(chan struct{})
	bus.Subscribe("ctx", leave.EventHandlerFunc(func(ctx context.Context, _ leave.Event) error {
		gotErr = ctx.Err()
		close(done)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, leave.Event{ID: "e1"})
	<-done
	bus.Close()
	assert.NoError(t, gotErr)
}
