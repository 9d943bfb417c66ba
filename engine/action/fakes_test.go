package action

import (
	"context"
	"errors"
	"sync"

	"github.com/recipeforge/ingest-pipeline/engine/parsedfile"
	"github.com/recipeforge/ingest-pipeline/engine/persist"
)

// fakeStore is a minimal in-memory persist.Store for exercising actions
// without a database, the way the teacher's tests substitute an in-memory
// session for a Neo4j one.
type fakeStore struct {
	mu sync.Mutex

	notes           map[string]parsedfile.File
	noteEvernote    map[string]*persist.Note
	ingredientLines map[string]persist.IngredientLineFields
	segments        map[string][]persist.Segment
	references      []persist.IngredientReferenceArgs
	ingredients     map[string]persist.Ingredient
	instructions    map[string]parsedfile.ParsedInstructionLine
	images          map[string]string
	sources         map[string]string
	categories      map[string]*string
	tags            map[string][]string
	patterns        map[string][]string

	createNoteErr error
	createNoteID  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notes:           make(map[string]parsedfile.File),
		noteEvernote:    make(map[string]*persist.Note),
		ingredientLines: make(map[string]persist.IngredientLineFields),
		segments:        make(map[string][]persist.Segment),
		ingredients:     make(map[string]persist.Ingredient),
		instructions:    make(map[string]parsedfile.ParsedInstructionLine),
		images:          make(map[string]string),
		sources:         make(map[string]string),
		categories:      make(map[string]*string),
		tags:            make(map[string][]string),
		patterns:        make(map[string][]string),
	}
}

func (f *fakeStore) CreateNote(ctx context.Context, file parsedfile.File) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createNoteErr != nil {
		return "", f.createNoteErr
	}
	id := f.createNoteID
	if id == "" {
		id = "note-1"
	}
	f.notes[id] = file
	return id, nil
}

func (f *fakeStore) GetNoteWithEvernoteMetadata(ctx context.Context, noteID string) (*persist.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.noteEvernote[noteID]
	if !ok {
		return nil, errors.New("fake: note not found")
	}
	return n, nil
}

func (f *fakeStore) CreateOrUpdateParsedIngredientLine(ctx context.Context, id string, fields persist.IngredientLineFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingredientLines[id] = fields
	return nil
}

func (f *fakeStore) UpdateParsedIngredientLine(ctx context.Context, id string, update persist.IngredientLineUpdate) error {
	return nil
}

func (f *fakeStore) ReplaceParsedSegments(ctx context.Context, lineID string, segments []persist.Segment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments[lineID] = segments
	return nil
}

func (f *fakeStore) CreateIngredientReference(ctx context.Context, args persist.IngredientReferenceArgs) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.references = append(f.references, args)
	return nil
}

func (f *fakeStore) FindOrCreateIngredient(ctx context.Context, name, reference string) (persist.Ingredient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ing, ok := f.ingredients[name]; ok {
		return ing, nil
	}
	ing := persist.Ingredient{ID: "ing-" + name, Name: name, IsNew: true}
	f.ingredients[name] = ing
	return ing, nil
}

func (f *fakeStore) CreateInstructionLine(ctx context.Context, id string, line parsedfile.ParsedInstructionLine, noteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instructions[id] = line
	return nil
}

func (f *fakeStore) UpdateInstructionLine(ctx context.Context, id string, update persist.IngredientLineUpdate) error {
	return nil
}

func (f *fakeStore) SaveImage(ctx context.Context, noteID, imageRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[noteID] = imageRef
	return nil
}

func (f *fakeStore) SaveSource(ctx context.Context, noteID, sourceURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[noteID] = sourceURL
	return nil
}

func (f *fakeStore) SaveCategory(ctx context.Context, noteID string, category *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories[noteID] = category
	return nil
}

func (f *fakeStore) SaveTags(ctx context.Context, noteID string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[noteID] = tags
	return nil
}

func (f *fakeStore) RecordPattern(ctx context.Context, noteID, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns[noteID] = append(f.patterns[noteID], pattern)
	return nil
}

func (f *fakeStore) GetNoteTitle(ctx context.Context, id string) *string {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.notes[id]
	if !ok {
		return nil
	}
	return &file.Title
}

func (f *fakeStore) SetNoteStatus(ctx context.Context, noteID, status string, metadata map[string]any) error {
	return nil
}

var _ persist.Store = (*fakeStore)(nil)
