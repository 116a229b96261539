package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/cabbook/internal/booking/domain"
)

type recordingConn struct {
	msgs []*nats.Msg
	err  error
}

func (r *recordingConn) PublishMsg(msg *nats.Msg) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestPublishSetsHeaders(t *testing.T) {
	conn := &recordingConn{}
	pub := NewPublisherWith(conn, "cab.trips")
	evt := domain.TripEvent{ID: uuid.New(), TripID: 7, Type: domain.EventTripBooked, CreatedAt: time.Now().UTC()}

	traceID := trace.TraceID{1, 2, 3}
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  trace.SpanID{4},
	}))

	require.NoError(t, pub.Publish(ctx, evt))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	require.Equal(t, "cab.trips", msg.Subject)
	require.Equal(t, "TripBooked", msg.Header.Get("x-event-type"))
	require.Equal(t, evt.ID.String(), msg.Header.Get(nats.MsgIdHdr))
	require.Equal(t, traceID.String(), msg.Header.Get("x-trace-id"))

	var decoded domain.TripEvent
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	require.Equal(t, int64(7), decoded.TripID)
}

func TestPublishWithoutConnIsNoop(t *testing.T) {
	pub := NewPublisher(nil, "cab.trips")
	require.NoError(t, pub.Publish(context.Background(), domain.TripEvent{Type: domain.EventTripCanceled}))

	var nilPub *Publisher
	require.NoError(t, nilPub.Publish(context.Background(), domain.TripEvent{}))
}

func TestPublishWrapsError(t *testing.T) {
	boom := errors.New("boom")
	pub := NewPublisherWith(&recordingConn{err: boom}, "cab.trips")
	err := pub.Publish(context.Background(), domain.TripEvent{Type: domain.EventTripCompleted})
	require.ErrorIs(t, err, boom)
}
