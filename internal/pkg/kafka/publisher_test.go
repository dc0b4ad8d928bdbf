package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestEventPublisher_Handle(t *testing.T) {
	w := &fakeWriter{}
	p := kafka.NewEventPublisher(w, "leave-events")

	event := leave.Event{
		ID:      "evt-1",
		Type:    leave.EventLeaveApproved,
		ActorID: "emp-5",
		Request: &leave.LeaveRequest{ID: "req-1", Status: leave.StatusApproved},
	}
	require.NoError(t, p.Handle(context.Background(), event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "leave-events", msg.Topic)
	assert.Equal(t, "req-1", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "leave.approved", string(msg.Headers[0].Value))

	var decoded leave.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.ID)
	assert.Equal(t, leave.StatusApproved, decoded.Request.Status)
}

func TestEventPublisher_WriteError(t *testing.T) {
	p := kafka.NewEventPublisher(&fakeWriter{err: errors.New("broker unavailable")}, "leave-events")
	err := p.Handle(context.Background(), leave.Event{ID: "evt-1"})
	assert.ErrorContains(t, err, "broker unavailable")
}
