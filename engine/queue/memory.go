package queue

import (
	"context"
	"sync"

	"github.com/recipeforge/ingest-pipeline/engine/job"
)

// MemoryQueue is an in-process Queue for unit tests: no network, no
// goroutine-per-subject fan-out beyond a single buffered channel per name.
type MemoryQueue struct {
	mu      sync.Mutex
	queues  map[job.Name]chan job.Envelope
	deadQ   map[job.Name][]DeadLetter
	closers []chan struct{}
}

// NewMemoryQueue returns an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queues: make(map[job.Name]chan job.Envelope),
		deadQ:  make(map[job.Name][]DeadLetter),
	}
}

var _ Queue = (*MemoryQueue)(nil)

func (q *MemoryQueue) channel(name job.Name) chan job.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.queues[name]
	if !ok {
		ch = make(chan job.Envelope, 1024)
		q.queues[name] = ch
	}
	return ch
}

func (q *MemoryQueue) Enqueue(ctx context.Context, name job.Name, envelope job.Envelope) error {
	select {
	case q.channel(name) <- envelope:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type memorySubscription struct{ stop chan struct{} }

func (s *memorySubscription) Unsubscribe() error {
	close(s.stop)
	return nil
}

// Consume runs handler for every enqueued envelope on a background
// goroutine, retrying up to envelope.MaxRetries before recording a
// DeadLetter, mirroring NATSQueue's semantics without a broker.
func (q *MemoryQueue) Consume(name job.Name, handler Handler) (Subscription, error) {
	ch := q.channel(name)
	stop := make(chan struct{})

	go func() {
		attempts := make(map[string]int)
		for {
			select {
			case <-stop:
				return
			case envelope := <-ch:
				attempt := attempts[envelope.JobID]
				err := handler(context.Background(), envelope)
				if err != nil {
					maxRetries := envelope.MaxRetries
					if maxRetries <= 0 {
						maxRetries = 1
					}
					attempt++
					if attempt >= maxRetries {
						q.mu.Lock()
						q.deadQ[name] = append(q.deadQ[name], DeadLetter{
							Envelope: envelope, Error: err.Error(), Attempts: attempt,
						})
						q.mu.Unlock()
						delete(attempts, envelope.JobID)
					} else {
						attempts[envelope.JobID] = attempt
						go func(e job.Envelope) { ch <- e }(envelope)
					}
				} else {
					delete(attempts, envelope.JobID)
				}
			}
		}
	}()

	return &memorySubscription{stop: stop}, nil
}

// Len reports how many envelopes are currently buffered for name, for test
// assertions that a fan-out step did (or did not) enqueue anything.
func (q *MemoryQueue) Len(name job.Name) int {
	return len(q.channel(name))
}

// DeadLetters returns the dead letters recorded for name, for test assertions.
func (q *MemoryQueue) DeadLetters(name job.Name) []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetter, len(q.deadQ[name]))
	copy(out, q.deadQ[name])
	return out
}
