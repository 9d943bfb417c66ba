package status

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Subscriber receives broadcast events. The concrete subscriber transport
// (the thing that carries these over a wire) is out of scope per spec §1;
// this interface is the seam it plugs into.
type Subscriber interface {
	Publish(Event) error
}

// Broadcaster appends events to an ordered per-noteId log and publishes
// them to subscribers. Appends and subscriber list mutations are
// serialized against each other (spec §5 "StatusBroadcaster subscribers").
type Broadcaster struct {
	mu          sync.Mutex
	log         *slog.Logger
	subscribers map[string]Subscriber
	history     map[string][]Event     // per-noteId append-ordered log
	noteLocks   map[string]*sync.Mutex // per-noteId append+publish serialization
}

// New creates a Broadcaster. log may be nil, in which case slog.Default()
// is used lazily.
func New(log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		log:         log,
		subscribers: make(map[string]Subscriber),
		history:     make(map[string][]Event),
		noteLocks:   make(map[string]*sync.Mutex),
	}
}

// noteLock returns the mutex serializing append+publish for noteID,
// creating it on first use.
func (b *Broadcaster) noteLock(noteID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.noteLocks[noteID]
	if !ok {
		l = &sync.Mutex{}
		b.noteLocks[noteID] = l
	}
	return l
}

// Subscribe registers a subscriber under id, replacing any prior
// registration with the same id.
func (b *Broadcaster) Subscribe(id string, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = s
}

// Unsubscribe removes a subscriber.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// History returns the append-ordered log for a noteId, for tests and for
// subscribers that reconnect mid-import.
func (b *Broadcaster) History(noteID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history[noteID]))
	copy(out, b.history[noteID])
	return out
}

// AddStatusEventAndBroadcast appends e to its noteId's ordered log, then
// publishes it to every current subscriber. Appending always succeeds (an
// in-memory slice append cannot fail); broadcast failures are logged, not
// propagated, unless the logger itself is unavailable, in which case a
// console fallback is used so the original failure is never silently
// dropped (spec §7 point 5).
//
// The append and the publish loop run under the same per-noteId lock, so
// two goroutines broadcasting for the same note (the common case: a note's
// fan-out children all broadcast progress concurrently, spec §5) can never
// have their publishes reach a subscriber in a different order than they
// were appended. Different notes still broadcast fully concurrently —
// only same-noteId calls serialize against each other.
func (b *Broadcaster) AddStatusEventAndBroadcast(e Event) {
	log := b.logger()
	key := e.NoteID

	nl := b.noteLock(key)
	nl.Lock()
	defer nl.Unlock()

	b.mu.Lock()
	b.history[key] = append(b.history[key], e)
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if err := s.Publish(e); err != nil {
			b.reportBroadcastFailure(log, e, err)
		}
	}
}

func (b *Broadcaster) reportBroadcastFailure(log *slog.Logger, e Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "status: broadcast failure and logger panicked: %v (original error: %v, note=%s context=%s)\n", r, err, e.NoteID, e.Context)
		}
	}()
	if log == nil {
		fmt.Fprintf(os.Stderr, "status: broadcast failed, no logger available: %v (note=%s context=%s)\n", err, e.NoteID, e.Context)
		return
	}
	log.Warn("status: broadcast failed", "note_id", e.NoteID, "context", e.Context, "error", err)
}

func (b *Broadcaster) logger() *slog.Logger {
	if b.log != nil {
		return b.log
	}
	return slog.Default()
}
