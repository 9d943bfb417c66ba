package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/recipeforge/ingest-pipeline/engine/job"
)

// NATSQueue is a Queue backed by a NATS connection, one subject per job
// queue name. It propagates trace context through message headers the way
// pkg/natsutil does, and reimplements StartConsumer's increment-header/DLQ
// loop generically over all seven queues instead of one hardcoded subject.
type NATSQueue struct {
	nc  *nats.Conn
	log *slog.Logger
}

// NewNATSQueue wraps an already-connected *nats.Conn.
func NewNATSQueue(nc *nats.Conn, log *slog.Logger) *NATSQueue {
	if log == nil {
		log = slog.Default()
	}
	return &NATSQueue{nc: nc, log: log}
}

var _ Queue = (*NATSQueue)(nil)

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

func (q *NATSQueue) Enqueue(ctx context.Context, name job.Name, envelope job.Envelope) error {
	return q.publish(ctx, Subject(name), envelope, 0)
}

func (q *NATSQueue) publish(ctx context.Context, subject string, envelope job.Envelope, attempt int) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	msg.Header = nats.Header{}
	msg.Header.Set(RetryHeader, fmt.Sprintf("%d", attempt))
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return q.nc.PublishMsg(msg)
}

func (q *NATSQueue) Consume(name job.Name, handler Handler) (Subscription, error) {
	subject := Subject(name)
	sub, err := q.nc.Subscribe(subject, func(msg *nats.Msg) {
		var envelope job.Envelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			q.log.Error("queue: unmarshal failed", "subject", subject, "error", err)
			return
		}

		attempt := 0
		if msg.Header != nil {
			fmt.Sscanf(msg.Header.Get(RetryHeader), "%d", &attempt)
		}

		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))

		if err := handler(ctx, envelope); err != nil {
			maxRetries := envelope.MaxRetries
			if maxRetries <= 0 {
				maxRetries = 1
			}
			if attempt+1 >= maxRetries {
				q.publishDeadLetter(name, envelope, err, attempt+1)
			} else {
				if pubErr := q.publish(ctx, subject, envelope, attempt+1); pubErr != nil {
					q.log.Error("queue: retry publish failed", "subject", subject, "error", pubErr)
				}
			}
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("queue: subscribe %s: %w", subject, err)
	}
	return sub, nil
}

func (q *NATSQueue) publishDeadLetter(name job.Name, envelope job.Envelope, cause error, attempts int) {
	dl := DeadLetter{Envelope: envelope, Error: cause.Error(), Attempts: attempts}
	data, err := json.Marshal(dl)
	if err != nil {
		q.log.Error("queue: marshal dead letter failed", "error", err)
		return
	}
	if err := q.nc.Publish(DLQSubject(name), data); err != nil {
		q.log.Error("queue: dead letter publish failed", "error", err)
	}
}
