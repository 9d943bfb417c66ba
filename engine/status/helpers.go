package status

import (
	"fmt"
	"time"
)

// Helper constructors are the *only* way progress numerators/denominators
// are turned into messages — workers must never assemble these strings
// themselves (spec §4.7).

// NewProcessing builds a PROCESSING event. Default indent is 1, default
// context is "processing".
func NewProcessing(importID, noteID, message string, opts ...Option) Event {
	e := Event{
		ImportID:    importID,
		NoteID:      noteID,
		Status:      Processing,
		Message:     clampLen(message, maxMessageLen),
		Context:     "processing",
		IndentLevel: 1,
		Metadata:    map[string]any{},
		Timestamp:   time.Now(),
	}
	applyOptions(&e, opts)
	return e
}

// NewCompletion builds a COMPLETED event. Default indent is 0, default
// context is "import_complete".
func NewCompletion(importID, noteID, message string, opts ...Option) Event {
	e := Event{
		ImportID:    importID,
		NoteID:      noteID,
		Status:      Completed,
		Message:     clampLen(message, maxMessageLen),
		Context:     "import_complete",
		IndentLevel: 0,
		Metadata:    map[string]any{},
		Timestamp:   time.Now(),
	}
	applyOptions(&e, opts)
	return e
}

// NewProgress builds a progress event for a "current/total itemType" bar.
// Status toggles to COMPLETED when current == total.
func NewProgress(importID, noteID, context, emoji string, current, total int, itemType string, opts ...Option) Event {
	st := Processing
	if current >= total {
		st = Completed
	}
	e := Event{
		ImportID:     importID,
		NoteID:       noteID,
		Status:       st,
		Message:      clampLen(fmt.Sprintf("%s %d/%d %s", emoji, current, total, itemType), maxMessageLen),
		Context:      context,
		CurrentCount: intPtr(current),
		TotalCount:   intPtr(total),
		IndentLevel:  1,
		Metadata: map[string]any{
			"current":    current,
			"total":      total,
			"isComplete": current >= total,
		},
		Timestamp: time.Now(),
	}
	applyOptions(&e, opts)
	return e
}

// NewError builds a FAILED event. Message is prefixed with an error
// emoji, default context is "error".
func NewError(importID, noteID, message string, opts ...Option) Event {
	e := Event{
		ImportID:    importID,
		NoteID:      noteID,
		Status:      Failed,
		Message:     clampLen("❌ "+message, maxMessageLen),
		Context:     "error",
		IndentLevel: 2,
		Metadata:    map[string]any{},
		Timestamp:   time.Now(),
	}
	applyOptions(&e, opts)
	return e
}

// Option customizes a helper-constructed Event in place.
type Option func(*Event)

func WithContext(ctx string) Option {
	return func(e *Event) { e.Context = clampLen(ctx, maxContextLen) }
}

func WithIndent(level int) Option {
	return func(e *Event) {
		if level < MinIndent {
			level = MinIndent
		}
		if level > MaxIndent {
			level = MaxIndent
		}
		e.IndentLevel = level
	}
}

func WithMetadata(kv map[string]any) Option {
	return func(e *Event) {
		merged := cloneMetadata(e.Metadata)
		for k, v := range kv {
			merged[k] = v
		}
		e.Metadata = merged
	}
}

func applyOptions(e *Event, opts []Option) {
	for _, o := range opts {
		o(e)
	}
}

func intPtr(n int) *int { return &n }
