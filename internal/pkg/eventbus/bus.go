// Package eventbus fans domain events out to subscribers on background workers.
package eventbus

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
)

// Config holds event bus configuration
type Config struct {
	WorkerCount    int           // default: 2
	QueueSize      int           // default: 1000
	HandlerTimeout time.Duration // default: 30 seconds
}

type subscriber struct {
	name    string
	handler leave.EventHandler
}

type envelope struct {
	ctx   context.Context
	event leave.Event
}

// Bus delivers every event to every subscriber. Events sharing a key are
// handled by the same worker, so they arrive in publish order.
type Bus struct {
	config Config

	mu          sync.RWMutex
	subscribers []subscriber

	queues []chan envelope
	wg     sync.WaitGroup
	stopCh chan struct{}
	once   sync.Once
}

// New creates a bus and starts its workers
func New(cfg Config) *Bus {
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1000
	}
	if cfg.HandlerTimeout == 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}

	b := &Bus{
		config: cfg,
		queues: make([]chan envelope, cfg.WorkerCount),
		stopCh: make(chan struct{}),
	}
	for i := range b.queues {
		b.queues[i] = make(chan envelope, cfg.QueueSize)
		b.wg.Add(1)
		go b.worker(i)
	}

	slog.Info("Event bus started", "workers", cfg.WorkerCount, "queue_size", cfg.QueueSize)
	return b
}

// Subscribe registers a handler for all events.
func (b *Bus) Subscribe(name string, h leave.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber{name: name, handler: h})
}

func (b *Bus) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(b.queues)))
}

// Publish queues the event. When the shard queue is full the event is
// dispatched on the caller's goroutine instead of being dropped.
func (b *Bus) Publish(ctx context.Context, event leave.Event) {
	env := envelope{ctx: context.WithoutCancel(ctx), event: event}

	select {
	case <-b.stopCh:
		b.dispatch(env)
		return
	default:
	}

	select {
	case b.queues[b.shard(event.Key())] <- env:
	default:
		slog.Warn("Event queue full, dispatching inline", "type", event.Type, "id", event.ID)
		b.dispatch(env)
	}
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()

	queue := b.queues[id]
	for {
		select {
		case env := <-queue:
			b.dispatch(env)
		case <-b.stopCh:
			for {
				select {
				case env := <-queue:
					b.dispatch(env)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(env envelope) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, sub := range subs {
		ctx, cancel := context.WithTimeout(env.ctx, b.config.HandlerTimeout)
		err := b.handle(ctx, sub, env.event)
		cancel()
		if err != nil {
			slog.Error("Event handler failed",
				"subscriber", sub.name, "type", env.event.Type, "id", env.event.ID, "error", err)
		}
	}
}

func (b *Bus) handle(ctx context.Context, sub subscriber, event leave.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Event handler panicked", "subscriber", sub.name, "type", event.Type, "panic", p)
		}
	}()
	return sub.handler.Handle(ctx, event)
}

// Close stops the workers after draining queued events.
func (b *Bus) Close() {
	b.once.Do(func() {
		close(b.stopCh)
		b.wg.Wait()
		slog.Info("Event bus stopped")
	})
}
