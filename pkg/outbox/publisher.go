package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/cabbook/internal/booking/domain"
)

// MsgPublisher is the subset of *nats.Conn used for publishing.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Publisher writes booking events to a NATS subject.
type Publisher struct {
	conn    MsgPublisher
	subject string
}

// NewPublisher builds a Publisher. A nil conn yields a publisher that drops events.
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	if conn == nil {
		return &Publisher{subject: subject}
	}
	return &Publisher{conn: conn, subject: subject}
}

// NewPublisherWith is NewPublisher over any MsgPublisher.
func NewPublisherWith(conn MsgPublisher, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Publish satisfies domain.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event domain.TripEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = payload
	msg.Header.Set("x-event-type", string(event.Type))
	msg.Header.Set(nats.MsgIdHdr, event.ID.String())
	if id := TraceIDFromContext(ctx); id != "" {
		msg.Header.Set("x-trace-id", id)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// TraceIDFromContext returns the hex trace id of the active span, if any.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
