package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/recipeforge/ingest-pipeline/engine/category"
	"github.com/recipeforge/ingest-pipeline/engine/errhandler"
	"github.com/recipeforge/ingest-pipeline/engine/job"
)

// determineCategoryAction resolves the note's Evernote notebook against the
// fixed category table. A missing mapping is a business error (spec §7
// point 4, Scenario S5): the pipeline continues with a nil category and an
// annotation instead of failing the job.
type determineCategoryAction struct {
	Base
	deps Deps
}

func newDetermineCategory(deps Deps) Action {
	return &determineCategoryAction{Base: NewBase(DetermineCategory, true, job.DefaultPriority), deps: deps}
}

func (a *determineCategoryAction) ValidateInput(data Data) error {
	if data.Job.NoteID == "" {
		return errors.New("action: DETERMINE_CATEGORY requires a note id")
	}
	return nil
}

func (a *determineCategoryAction) Execute(ctx context.Context, data Data) (Data, error) {
	note, err := a.deps.Store.GetNoteWithEvernoteMetadata(ctx, data.Job.NoteID)
	if err != nil {
		return data, errhandler.Transient(fmt.Errorf("load note for categorization: %w", err))
	}

	var notebook string
	if note.EvernoteMetadata != nil {
		notebook = note.EvernoteMetadata.Notebook
	}

	mapping, err := a.deps.Categories.Resolve(notebook)
	if errors.Is(err, category.ErrNoMapping) {
		data = annotateBusinessError(data, fmt.Sprintf("No mapping found for notebook: %s", notebook))
		data.Category = nil
		data.Tags = nil
		return data, nil
	}
	if err != nil {
		return data, errhandler.Fatal(fmt.Errorf("resolve category: %w", err))
	}

	cat := mapping.Category
	data.Category = &cat
	data.Tags = mapping.Tags
	return data, nil
}

func (a *determineCategoryAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// saveCategoryAction persists the resolved category, storing null when
// DETERMINE_CATEGORY found no mapping.
type saveCategoryAction struct {
	Base
	deps Deps
}

func newSaveCategory(deps Deps) Action {
	return &saveCategoryAction{Base: NewBase(SaveCategory, true, job.DefaultPriority), deps: deps}
}

func (a *saveCategoryAction) ValidateInput(data Data) error {
	return nil
}

func (a *saveCategoryAction) Execute(ctx context.Context, data Data) (Data, error) {
	if err := a.deps.Store.SaveCategory(ctx, data.Job.NoteID, data.Category); err != nil {
		return data, errhandler.Transient(fmt.Errorf("save category: %w", err))
	}
	return data, nil
}

func (a *saveCategoryAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// determineTagsAction is a thin pass-through over the tags DETERMINE_CATEGORY
// already resolved from the mapping; it exists as its own pipeline step so
// a future tag source (e.g. derived from ingredients) can replace it without
// touching categorization.
type determineTagsAction struct {
	Base
	deps Deps
}

func newDetermineTags(deps Deps) Action {
	return &determineTagsAction{Base: NewBase(DetermineTags, true, job.DefaultPriority), deps: deps}
}

func (a *determineTagsAction) ValidateInput(data Data) error {
	return nil
}

func (a *determineTagsAction) Execute(ctx context.Context, data Data) (Data, error) {
	return data, nil
}

func (a *determineTagsAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// saveTagsAction persists the resolved tag set.
type saveTagsAction struct {
	Base
	deps Deps
}

func newSaveTags(deps Deps) Action {
	return &saveTagsAction{Base: NewBase(SaveTags, true, job.DefaultPriority), deps: deps}
}

func (a *saveTagsAction) ValidateInput(data Data) error {
	return nil
}

func (a *saveTagsAction) Execute(ctx context.Context, data Data) (Data, error) {
	if err := a.deps.Store.SaveTags(ctx, data.Job.NoteID, data.Tags); err != nil {
		return data, errhandler.Transient(fmt.Errorf("save tags: %w", err))
	}
	return data, nil
}

func (a *saveTagsAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}
