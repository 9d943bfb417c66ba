// Package queue is the broker seam of spec §3/§5: seven named job queues,
// at-least-once delivery, and a dead-letter path for jobs that exhaust
// their retries. The NATS implementation is grounded on the teacher's
// pkg/natsutil helpers and engine/ingest.StartConsumer's retry-header/DLQ
// pattern.
package queue

import (
	"context"
	"errors"

	"github.com/recipeforge/ingest-pipeline/engine/job"
)

// subjectPrefix namespaces job subjects from any other traffic on the bus.
const subjectPrefix = "jobs."

// Subject returns the NATS subject for queue name.
func Subject(name job.Name) string {
	return subjectPrefix + string(name)
}

// DLQSubject returns the dead-letter subject paired with name.
func DLQSubject(name job.Name) string {
	return Subject(name) + ".dlq"
}

// RetryHeader is the header key carrying the delivery attempt count,
// matching the teacher's "X-Retry-Count" convention.
const RetryHeader = "X-Retry-Count"

// Handler processes one dequeued job. Returning an error makes the queue
// redeliver the job right away, with no delay between deliveries, until
// envelope.MaxRetries deliveries have failed; the job is then published to
// the queue's DLQ.
type Handler func(ctx context.Context, envelope job.Envelope) error

// Subscription is an active consumer that can be torn down.
type Subscription interface {
	Unsubscribe() error
}

// Queue is the narrow broker contract every worker depends on.
type Queue interface {
	Enqueue(ctx context.Context, name job.Name, envelope job.Envelope) error
	Consume(name job.Name, handler Handler) (Subscription, error)
}

// DeadLetter is what Queue implementations publish to a queue's DLQ
// subject once a job exhausts job.Envelope.MaxRetries.
type DeadLetter struct {
	Envelope job.Envelope `json:"envelope"`
	Error    string       `json:"error"`
	Attempts int          `json:"attempts"`
}

// ErrNotConnected is returned by operations attempted on a closed or
// never-connected Queue.
var ErrNotConnected = errors.New("queue: not connected")
