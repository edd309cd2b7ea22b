// Package natsutil provides a typed NATS publisher with OpenTelemetry trace
// propagation.
package natsutil

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// newMsg serializes v as JSON and injects the trace context from ctx.
func newMsg[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return msg, nil
}

// Publisher publishes values of one type to a fixed subject. When MsgID is
// set its result is sent as the Nats-Msg-Id header so JetStream streams can
// drop duplicates from re-runs.
type Publisher[T any] struct {
	nc      *nats.Conn
	subject string
	MsgID   func(T) string
}

// NewPublisher creates a Publisher for subject.
func NewPublisher[T any](nc *nats.Conn, subject string) *Publisher[T] {
	return &Publisher[T]{nc: nc, subject: subject}
}

// Subject returns the subject messages are published to.
func (p *Publisher[T]) Subject() string { return p.subject }

// Publish sends v.
func (p *Publisher[T]) Publish(ctx context.Context, v T) error {
	msg, err := newMsg(ctx, p.subject, v)
	if err != nil {
		return err
	}
	if p.MsgID != nil {
		if id := p.MsgID(v); id != "" {
			(*natsHeaderCarrier)(msg).Set(nats.MsgIdHdr, id)
		}
	}
	return p.nc.PublishMsg(msg)
}

// Flush waits until the server has processed everything published so far.
func (p *Publisher[T]) Flush(ctx context.Context) error {
	return p.nc.FlushWithContext(ctx)
}
