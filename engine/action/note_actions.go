package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/recipeforge/ingest-pipeline/engine/errhandler"
	"github.com/recipeforge/ingest-pipeline/engine/job"
	"github.com/recipeforge/ingest-pipeline/engine/parsedfile"
	"github.com/recipeforge/ingest-pipeline/engine/status"
)

// parseHTMLAction runs the out-of-scope HTML parser (deps.ParseHTML) over
// the job's raw content, producing a ParsedFile for the rest of the NOTE
// pipeline.
type parseHTMLAction struct {
	Base
	deps Deps
}

func newParseHTML(deps Deps) Action {
	return &parseHTMLAction{Base: NewBase(ParseHTML, true, job.DefaultPriority), deps: deps}
}

func (a *parseHTMLAction) ValidateInput(data Data) error {
	raw, _ := data.Job.Metadata["content"].(string)
	return parsedfile.ValidateIntakeContent(raw)
}

func (a *parseHTMLAction) Execute(ctx context.Context, data Data) (Data, error) {
	raw, _ := data.Job.Metadata["content"].(string)
	if a.deps.ParseHTML == nil {
		return data, errhandler.Fatal(errors.New("action: no HTML parser configured"))
	}
	file, err := a.deps.ParseHTML(raw)
	if err != nil {
		return data, errhandler.Transient(fmt.Errorf("parse html: %w", err))
	}
	withDefaults := file.WithDefaults()
	data.ParsedFile = &withDefaults
	data.Ingredients = withDefaults.Ingredients
	data.Instructions = withDefaults.Instructions
	return data, nil
}

func (a *parseHTMLAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// saveNoteAction persists the parsed note, initializes the completion
// tracker with the total fan-out count, and emits a PROCESSING status
// event (spec §4.5).
type saveNoteAction struct {
	Base
	deps Deps
}

func newSaveNote(deps Deps) Action {
	return &saveNoteAction{Base: NewBase(SaveNote, true, job.DefaultPriority), deps: deps}
}

func (a *saveNoteAction) ValidateInput(data Data) error {
	if data.ParsedFile == nil {
		return errors.New("action: SAVE_NOTE requires a parsed file")
	}
	return parsedfile.Validate(*data.ParsedFile)
}

func (a *saveNoteAction) Execute(ctx context.Context, data Data) (Data, error) {
	noteID, err := a.deps.Store.CreateNote(ctx, *data.ParsedFile)
	if err != nil {
		return data, errhandler.Transient(fmt.Errorf("save note: %w", err))
	}
	data.Job.NoteID = noteID

	total := len(data.ParsedFile.Ingredients) + len(data.ParsedFile.Instructions)
	if data.ParsedFile.Image != "" {
		total++
	}
	if data.ParsedFile.SourceURL != "" {
		total++
	}
	a.deps.Tracker.Create(noteID, total)

	if a.deps.Broadcast != nil {
		a.deps.Broadcast.AddStatusEventAndBroadcast(status.NewProcessing(data.Job.ImportID, noteID, "Note saved, fanning out"))
	}
	return data, nil
}

func (a *saveNoteAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// scheduleImagesAction enqueues the IMAGE job when the parsed file has an
// image reference.
type scheduleImagesAction struct {
	Base
	deps Deps
}

func newScheduleImages(deps Deps) Action {
	return &scheduleImagesAction{Base: NewBase(ScheduleImages, true, job.DefaultPriority), deps: deps}
}

func (a *scheduleImagesAction) ValidateInput(data Data) error {
	if data.ParsedFile == nil {
		return errors.New("action: SCHEDULE_IMAGES requires a parsed file")
	}
	return nil
}

func (a *scheduleImagesAction) Execute(ctx context.Context, data Data) (Data, error) {
	if data.ParsedFile.Image == "" {
		return data, nil
	}
	childID := job.DeterministicChildJobID(data.Job.NoteID, "image", 0)
	env := job.New(childID, data.Job.NoteID, data.Job.ImportID)
	env.Metadata["image"] = data.ParsedFile.Image
	if err := enqueue(ctx, a.deps, job.Image, env); err != nil {
		return data, err
	}
	return data, nil
}

func (a *scheduleImagesAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// scheduleIngredientsAction fans out one INGREDIENT job per parsed
// ingredient line, with deterministic child job IDs (spec §4.9).
type scheduleIngredientsAction struct {
	Base
	deps Deps
}

func newScheduleIngredients(deps Deps) Action {
	return &scheduleIngredientsAction{Base: NewBase(ScheduleIngredients, true, job.DefaultPriority), deps: deps}
}

func (a *scheduleIngredientsAction) ValidateInput(data Data) error {
	if data.ParsedFile == nil {
		return errors.New("action: SCHEDULE_INGREDIENTS requires a parsed file")
	}
	return nil
}

func (a *scheduleIngredientsAction) Execute(ctx context.Context, data Data) (Data, error) {
	total := len(data.ParsedFile.Ingredients)
	for i, line := range data.ParsedFile.Ingredients {
		childID := job.DeterministicChildJobID(data.Job.NoteID, "ingredient", i)
		env := job.New(childID, data.Job.NoteID, data.Job.ImportID)
		env.Metadata["lineIndex"] = i
		env.Metadata["reference"] = line.Reference
		env.Metadata["blockIndex"] = line.BlockIndex
		env.Metadata["currentIngredientIndex"] = i
		env.Metadata["totalIngredients"] = total
		if err := enqueue(ctx, a.deps, job.Ingredient, env); err != nil {
			return data, err
		}
	}
	return data, nil
}

func (a *scheduleIngredientsAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// scheduleInstructionsAction fans out one INSTRUCTION job per parsed
// instruction line.
type scheduleInstructionsAction struct {
	Base
	deps Deps
}

func newScheduleInstructions(deps Deps) Action {
	return &scheduleInstructionsAction{Base: NewBase(ScheduleInstructions, true, job.DefaultPriority), deps: deps}
}

func (a *scheduleInstructionsAction) ValidateInput(data Data) error {
	if data.ParsedFile == nil {
		return errors.New("action: SCHEDULE_INSTRUCTIONS requires a parsed file")
	}
	return nil
}

func (a *scheduleInstructionsAction) Execute(ctx context.Context, data Data) (Data, error) {
	for i, line := range data.ParsedFile.Instructions {
		childID := job.DeterministicChildJobID(data.Job.NoteID, "instruction", i)
		env := job.New(childID, data.Job.NoteID, data.Job.ImportID)
		env.Metadata["lineIndex"] = i
		env.Metadata["originalText"] = line.OriginalText
		if err := enqueue(ctx, a.deps, job.Instruction, env); err != nil {
			return data, err
		}
	}
	return data, nil
}

func (a *scheduleInstructionsAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// scheduleSourceAction enqueues the SOURCE job when a source URL is present.
type scheduleSourceAction struct {
	Base
	deps Deps
}

func newScheduleSource(deps Deps) Action {
	return &scheduleSourceAction{Base: NewBase(ScheduleSource, true, job.DefaultPriority), deps: deps}
}

func (a *scheduleSourceAction) ValidateInput(data Data) error {
	if data.ParsedFile == nil {
		return errors.New("action: SCHEDULE_SOURCE requires a parsed file")
	}
	return nil
}

func (a *scheduleSourceAction) Execute(ctx context.Context, data Data) (Data, error) {
	if data.ParsedFile.SourceURL == "" {
		return data, nil
	}
	childID := job.DeterministicChildJobID(data.Job.NoteID, "source", 0)
	env := job.New(childID, data.Job.NoteID, data.Job.ImportID)
	env.Metadata["sourceUrl"] = data.ParsedFile.SourceURL
	if err := enqueue(ctx, a.deps, job.Source, env); err != nil {
		return data, err
	}
	return data, nil
}

func (a *scheduleSourceAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// enqueue publishes env onto the queue registered for name, classifying
// broker failures as transient per spec §4.8.
func enqueue(ctx context.Context, deps Deps, name job.Name, env job.Envelope) error {
	q, ok := deps.queueFor(name)
	if !ok {
		return errhandler.Fatal(fmt.Errorf("action: no queue configured for %s", name))
	}
	if err := q.Enqueue(ctx, name, env); err != nil {
		return errhandler.Transient(fmt.Errorf("enqueue %s: %w", name, err))
	}
	return nil
}
