// Package persist defines the narrow persistence contract of spec §6 and a
// Postgres-backed implementation of it, structured the way the teacher's
// engine/graph package structures its Neo4j session adapters — a small
// interface seam for testability — but issuing SQL instead of Cypher.
package persist

import (
	"context"
	"time"

	"github.com/recipeforge/ingest-pipeline/engine/parsedfile"
)

// Note is the persisted recipe row plus whatever Evernote export metadata
// it retained.
type Note struct {
	ID               string
	Title            string
	Contents         string
	Image            string
	SourceURL        string
	EvernoteMetadata *parsedfile.EvernoteMetadata
	Status           string
	CreatedAt        time.Time
}

// IngredientLineFields is the mutable state createOrUpdateParsedIngredientLine
// writes for a line.
type IngredientLineFields struct {
	BlockIndex  int
	LineIndex   int
	Reference   string
	NoteID      string
	ParseStatus parsedfile.ParseStatus
	ParsedAt    time.Time
}

// IngredientLineUpdate is the narrower set of fields updateParsedIngredientLine writes.
type IngredientLineUpdate struct {
	ParseStatus parsedfile.ParseStatus
	ParsedAt    time.Time
}

// Segment is one parsed quantity/unit/name segment of an ingredient
// reference line, as produced by engine/ingestparse.
type Segment struct {
	Index    int
	Quantity string
	Unit     string
	Name     string
	Raw      string
}

// IngredientReferenceArgs mirrors the createIngredientReference contract,
// including its default context.
type IngredientReferenceArgs struct {
	IngredientID string
	ParsedLineID string
	SegmentIndex int
	Reference    string
	NoteID       string
	Context      string // defaults to "main_ingredient"
}

// Ingredient is the canonical ingredient row returned by findOrCreateIngredient.
type Ingredient struct {
	ID    string
	Name  string
	IsNew bool
}

// Store is the narrow persistence interface named in spec §6. Every
// method here is a suspension point (spec §5). CreateNote and
// RecordPattern are not idempotent: each call inserts a new row, so a
// retried call whose earlier attempt had succeeded leaves a duplicate. The
// other writes are idempotent with respect to retries.
type Store interface {
	CreateNote(ctx context.Context, file parsedfile.File) (id string, err error)
	GetNoteWithEvernoteMetadata(ctx context.Context, noteID string) (*Note, error)

	CreateOrUpdateParsedIngredientLine(ctx context.Context, id string, fields IngredientLineFields) error
	UpdateParsedIngredientLine(ctx context.Context, id string, update IngredientLineUpdate) error
	ReplaceParsedSegments(ctx context.Context, lineID string, segments []Segment) error
	CreateIngredientReference(ctx context.Context, args IngredientReferenceArgs) error
	FindOrCreateIngredient(ctx context.Context, name, reference string) (Ingredient, error)

	CreateInstructionLine(ctx context.Context, id string, line parsedfile.ParsedInstructionLine, noteID string) error
	UpdateInstructionLine(ctx context.Context, id string, update IngredientLineUpdate) error

	SaveImage(ctx context.Context, noteID, imageRef string) error
	SaveSource(ctx context.Context, noteID, sourceURL string) error

	SaveCategory(ctx context.Context, noteID string, category *string) error
	SaveTags(ctx context.Context, noteID string, tags []string) error

	RecordPattern(ctx context.Context, noteID, pattern string) error

	// GetNoteTitle never returns an error to callers; any failure
	// (including a connection error) yields a nil string, per spec §6.
	GetNoteTitle(ctx context.Context, id string) *string

	SetNoteStatus(ctx context.Context, noteID, status string, metadata map[string]any) error
}
