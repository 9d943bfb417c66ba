// Package job defines the envelope that travels on every queue and the
// validation that guards it at each worker's dequeue boundary.
package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Name identifies one of the seven logical queues in spec §2/§6.
type Name string

const (
	Note             Name = "NOTE"
	Ingredient       Name = "INGREDIENT"
	Instruction      Name = "INSTRUCTION"
	Image            Name = "IMAGE"
	Categorization   Name = "CATEGORIZATION"
	Source           Name = "SOURCE"
	PatternTracking  Name = "PATTERN_TRACKING"
)

// AllQueues lists the seven queues in the order components are usually
// registered in the dependency container.
var AllQueues = []Name{Note, Ingredient, Instruction, Image, Categorization, Source, PatternTracking}

const (
	DefaultPriority   = 5
	DefaultTimeoutMS  = 30000
	DefaultMaxRetries = 3
	MinPriority       = 1
	MaxPriority       = 10
	MinMaxRetries     = 1
	MaxMaxRetries     = 10
)

// Envelope is the job-data wrapper common to all seven queues (spec §3).
type Envelope struct {
	JobID         string         `json:"job_id"`
	NoteID        string         `json:"note_id,omitempty"`
	ImportID      string         `json:"import_id,omitempty"`
	Metadata      map[string]any `json:"metadata"`
	Priority      int            `json:"priority"`
	TimeoutMS     int            `json:"timeout_ms"`
	AttemptNumber int            `json:"attempt_number"`
	MaxRetries    int            `json:"max_retries"`
	CreatedAt     time.Time      `json:"created_at"`
}

// New constructs an Envelope with the spec's defaults filled in.
func New(jobID, noteID, importID string) Envelope {
	return Envelope{
		JobID:         jobID,
		NoteID:        noteID,
		ImportID:      importID,
		Metadata:      map[string]any{},
		Priority:      DefaultPriority,
		TimeoutMS:     DefaultTimeoutMS,
		AttemptNumber: 1,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     time.Now(),
	}
}

// Timeout returns TimeoutMS as a time.Duration.
func (e Envelope) Timeout() time.Duration {
	return time.Duration(e.TimeoutMS) * time.Millisecond
}

// IsValidUUID reports whether s parses as a well-formed UUID. Shared by
// job validation and the HTTP intake's note/import ID path parameters.
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// DeterministicChildJobID derives a stable jobId for a NOTE fan-out child
// from (noteID, kind, lineIndex), so a fan-out step that runs again on
// retry gives each child the same jobId as before. The queues do not
// deduplicate on jobId: a child enqueued twice is delivered twice.
func DeterministicChildJobID(noteID, kind string, lineIndex int) string {
	name := fmt.Sprintf("%s:%s:%d", noteID, kind, lineIndex)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
