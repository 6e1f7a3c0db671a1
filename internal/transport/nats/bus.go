// Package nats broadcasts result cache invalidations between replicas.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

// DefaultSubject is the subject invalidations are published on.
const DefaultSubject = "medrag.cache.invalidate"

// Invalidation is the wire message: a scope whose cached results are stale.
type Invalidation struct {
	Scope  string `json:"scope"`
	Origin string `json:"origin"`
}

// conn is the consumer interface over *nats.Conn (ISP).
type conn interface {
	PublishMsg(m *nats.Msg) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Drain() error
}

// Bus publishes and receives invalidations. Messages sent by this replica are ignored on receipt.
type Bus struct {
	nc      conn
	subject string
	origin  string
	logger  *zap.Logger
}

// Connect dials NATS and returns a Bus.
func Connect(url, subject string, logger *zap.Logger) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name("medrag"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return New(nc, subject, logger), nil
}

// New wraps an existing connection.
func New(nc conn, subject string, logger *zap.Logger) *Bus {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Bus{nc: nc, subject: subject, origin: uuid.NewString(), logger: logger}
}

// Publish announces that s changed. Trace context from ctx travels in the message headers.
func (b *Bus) Publish(ctx context.Context, s scope.Scope) error {
	data, err := json.Marshal(Invalidation{Scope: s.Key(), Origin: b.origin})
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	msg := &nats.Msg{Subject: b.subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	if err := b.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Subscribe calls handler for every invalidation published by other replicas.
func (b *Bus) Subscribe(handler func(context.Context, scope.Scope)) error {
	if _, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) { b.dispatch(msg, handler) }); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (b *Bus) Close() error {
	if err := b.nc.Drain(); err != nil {
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}

func (b *Bus) dispatch(msg *nats.Msg, handler func(context.Context, scope.Scope)) {
	var inv Invalidation
	if err := json.Unmarshal(msg.Data, &inv); err != nil {
		b.logger.Warn("Dropping malformed invalidation", zap.Error(err))
		return
	}
	if inv.Origin == b.origin {
		return
	}
	s, err := scope.Parse(inv.Scope)
	if err != nil {
		b.logger.Warn("Dropping invalidation with bad scope", zap.Error(err))
		return
	}
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
	handler(ctx, s)
}

// headerCarrier adapts nats.Msg headers for the OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}
