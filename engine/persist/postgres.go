package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/recipeforge/ingest-pipeline/engine/parsedfile"
)

// db is the minimal interface needed from *sql.DB, mirroring the teacher's
// runner/session seam in engine/graph/graph.go so tests can substitute a
// fake without a real Postgres connection.
type db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore is a database/sql + lib/pq backed implementation of Store.
type PostgresStore struct {
	conn db
	now  func() time.Time // for testing
}

// NewPostgresStore wraps an open *sql.DB. The caller owns the connection
// pool's lifecycle; PostgresStore acquires a connection per operation, as
// the teacher's Neo4jRepo acquires a session per operation.
func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{conn: conn, now: time.Now}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) CreateNote(ctx context.Context, file parsedfile.File) (string, error) {
	file = file.WithDefaults()
	var meta []byte
	if file.EvernoteMetadata != nil {
		b, err := json.Marshal(file.EvernoteMetadata)
		if err != nil {
			return "", fmt.Errorf("persist: marshal evernote metadata: %w", err)
		}
		meta = b
	}
	var id string
	row := s.conn.QueryRowContext(ctx, `
		INSERT INTO notes (title, contents, image, source_url, evernote_metadata, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', $6)
		RETURNING id`,
		file.Title, file.Contents, file.Image, file.SourceURL, meta, s.now())
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("persist: create note: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetNoteWithEvernoteMetadata(ctx context.Context, noteID string) (*Note, error) {
	var n Note
	var meta []byte
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, title, contents, image, source_url, evernote_metadata, status, created_at
		FROM notes WHERE id = $1`, noteID)
	if err := row.Scan(&n.ID, &n.Title, &n.Contents, &n.Image, &n.SourceURL, &meta, &n.Status, &n.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("persist: get note: %w", err)
	}
	if len(meta) > 0 {
		var em parsedfile.EvernoteMetadata
		if err := json.Unmarshal(meta, &em); err == nil {
			n.EvernoteMetadata = &em
		}
	}
	return &n, nil
}

func (s *PostgresStore) CreateOrUpdateParsedIngredientLine(ctx context.Context, id string, f IngredientLineFields) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO parsed_ingredient_lines (id, block_index, line_index, reference, note_id, parse_status, parsed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			block_index = EXCLUDED.block_index,
			line_index = EXCLUDED.line_index,
			reference = EXCLUDED.reference,
			parse_status = EXCLUDED.parse_status,
			parsed_at = EXCLUDED.parsed_at`,
		id, f.BlockIndex, f.LineIndex, f.Reference, f.NoteID, string(f.ParseStatus), f.ParsedAt)
	if err != nil {
		return fmt.Errorf("persist: upsert ingredient line: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateParsedIngredientLine(ctx context.Context, id string, u IngredientLineUpdate) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE parsed_ingredient_lines SET parse_status = $2, parsed_at = $3 WHERE id = $1`,
		id, string(u.ParseStatus), u.ParsedAt)
	if err != nil {
		return fmt.Errorf("persist: update ingredient line: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceParsedSegments(ctx context.Context, lineID string, segments []Segment) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM parsed_segments WHERE parsed_line_id = $1`, lineID)
	if err != nil {
		return fmt.Errorf("persist: clear segments: %w", err)
	}
	for _, seg := range segments {
		_, err := s.conn.ExecContext(ctx, `
			INSERT INTO parsed_segments (parsed_line_id, segment_index, quantity, unit, name, raw)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			lineID, seg.Index, seg.Quantity, seg.Unit, seg.Name, seg.Raw)
		if err != nil {
			return fmt.Errorf("persist: insert segment %d: %w", seg.Index, err)
		}
	}
	return nil
}

// CreateIngredientReference swallows unique-constraint violations so
// retried, at-least-once-delivered jobs stay idempotent (spec §6/§8).
func (s *PostgresStore) CreateIngredientReference(ctx context.Context, args IngredientReferenceArgs) error {
	refContext := args.Context
	if refContext == "" {
		refContext = "main_ingredient"
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO ingredient_references (ingredient_id, parsed_line_id, segment_index, reference, note_id, context)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`,
		args.IngredientID, args.ParsedLineID, args.SegmentIndex, args.Reference, args.NoteID, refContext)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("persist: create ingredient reference: %w", err)
	}
	return nil
}

// FindOrCreateIngredient matches an exact, singular, or plural form before
// creating a new row, storing both forms when the input is plural (spec §6).
func (s *PostgresStore) FindOrCreateIngredient(ctx context.Context, name, reference string) (Ingredient, error) {
	singular, plural := singularAndPlural(name)

	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name FROM ingredients WHERE name IN ($1, $2, $3) LIMIT 1`,
		name, singular, plural)
	var ing Ingredient
	err := row.Scan(&ing.ID, &ing.Name)
	if err == nil {
		return ing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Ingredient{}, fmt.Errorf("persist: lookup ingredient: %w", err)
	}

	row = s.conn.QueryRowContext(ctx, `
		INSERT INTO ingredients (name, plural_name) VALUES ($1, $2) RETURNING id, name`,
		singular, plural)
	if err := row.Scan(&ing.ID, &ing.Name); err != nil {
		return Ingredient{}, fmt.Errorf("persist: create ingredient: %w", err)
	}
	ing.IsNew = true
	return ing, nil
}

func (s *PostgresStore) CreateInstructionLine(ctx context.Context, id string, line parsedfile.ParsedInstructionLine, noteID string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO parsed_instruction_lines (id, note_id, original_text, normalized_text, line_index, parse_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			original_text = EXCLUDED.original_text,
			normalized_text = EXCLUDED.normalized_text,
			parse_status = EXCLUDED.parse_status`,
		id, noteID, line.OriginalText, line.NormalizedText, line.LineIndex, string(line.ParseStatus))
	if err != nil {
		return fmt.Errorf("persist: upsert instruction line: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateInstructionLine(ctx context.Context, id string, u IngredientLineUpdate) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE parsed_instruction_lines SET parse_status = $2 WHERE id = $1`,
		id, string(u.ParseStatus))
	if err != nil {
		return fmt.Errorf("persist: update instruction line: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveImage(ctx context.Context, noteID, imageRef string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE notes SET image = $2 WHERE id = $1`, noteID, imageRef)
	if err != nil {
		return fmt.Errorf("persist: save image: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSource(ctx context.Context, noteID, sourceURL string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE notes SET source_url = $2 WHERE id = $1`, noteID, sourceURL)
	if err != nil {
		return fmt.Errorf("persist: save source: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveCategory(ctx context.Context, noteID string, category *string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE notes SET category = $2 WHERE id = $1`, noteID, category)
	if err != nil {
		return fmt.Errorf("persist: save category: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveTags(ctx context.Context, noteID string, tags []string) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE notes SET tags = $2 WHERE id = $1`, noteID, pq.Array(tags))
	if err != nil {
		return fmt.Errorf("persist: save tags: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordPattern(ctx context.Context, noteID, pattern string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO ingredient_patterns (note_id, pattern, recorded_at) VALUES ($1, $2, $3)`,
		noteID, pattern, s.now())
	if err != nil {
		return fmt.Errorf("persist: record pattern: %w", err)
	}
	return nil
}

// GetNoteTitle never surfaces an error: any failure, including a
// connection error, yields nil (spec §6).
func (s *PostgresStore) GetNoteTitle(ctx context.Context, id string) *string {
	row := s.conn.QueryRowContext(ctx, `SELECT title FROM notes WHERE id = $1`, id)
	var title string
	if err := row.Scan(&title); err != nil {
		return nil
	}
	return &title
}

func (s *PostgresStore) SetNoteStatus(ctx context.Context, noteID, status string, metadata map[string]any) error {
	b, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("persist: marshal status metadata: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `UPDATE notes SET status = $2, status_metadata = $3 WHERE id = $1`, noteID, status, b)
	if err != nil {
		return fmt.Errorf("persist: set note status: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// singularAndPlural derives a naive singular/plural pair. Real pluralization
// rules are out of scope (recipe NLP is a spec non-goal); this is enough to
// satisfy findOrCreateIngredient's "match exact, singular, or plural" rule.
func singularAndPlural(name string) (singular, plural string) {
	if len(name) > 1 && name[len(name)-1] == 's' {
		return name[:len(name)-1], name
	}
	return name, name + "s"
}
