package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/recipeforge/ingest-pipeline/engine/errhandler"
	"github.com/recipeforge/ingest-pipeline/engine/ingestparse"
	"github.com/recipeforge/ingest-pipeline/engine/job"
	"github.com/recipeforge/ingest-pipeline/engine/parsedfile"
	"github.com/recipeforge/ingest-pipeline/engine/persist"
	"github.com/recipeforge/ingest-pipeline/engine/status"
)

// updateIngredientCountAction is the conditional pipeline step the builder
// only inserts when currentIngredientIndex/totalIngredients are present on
// the job (spec §4.3): it reports a PROCESSING progress tick before this
// line's own work runs.
type updateIngredientCountAction struct {
	Base
	deps Deps
}

func newUpdateIngredientCount(deps Deps) Action {
	return &updateIngredientCountAction{Base: NewBase(UpdateIngredientCount, true, job.DefaultPriority), deps: deps}
}

func (a *updateIngredientCountAction) ValidateInput(data Data) error {
	return nil
}

func (a *updateIngredientCountAction) Execute(ctx context.Context, data Data) (Data, error) {
	current, ok := asInt(data.Job.Metadata["currentIngredientIndex"])
	if !ok {
		return data, nil
	}
	total, _ := asInt(data.Job.Metadata["totalIngredients"])
	if a.deps.Broadcast != nil {
		a.deps.Broadcast.AddStatusEventAndBroadcast(status.NewProgress(
			data.Job.ImportID, data.Job.NoteID, "ingredient_processing", "🥕", current, total, "ingredients"))
	}
	return data, nil
}

func (a *updateIngredientCountAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// parseIngredientLineAction turns the raw reference string into quantity/
// unit/name segments via engine/ingestparse.
type parseIngredientLineAction struct {
	Base
	deps Deps
}

func newParseIngredientLine(deps Deps) Action {
	return &parseIngredientLineAction{Base: NewBase(ParseIngredientLine, true, job.DefaultPriority), deps: deps}
}

func (a *parseIngredientLineAction) ValidateInput(data Data) error {
	if _, ok := data.Job.Metadata["reference"].(string); !ok {
		return errors.New("action: PARSE_INGREDIENT_LINE requires a reference string")
	}
	return nil
}

func (a *parseIngredientLineAction) Execute(ctx context.Context, data Data) (Data, error) {
	reference, _ := data.Job.Metadata["reference"].(string)
	lineIndex, _ := asInt(data.Job.Metadata["lineIndex"])
	blockIndex, _ := asInt(data.Job.Metadata["blockIndex"])

	segs := ingestparse.ParseLine(reference)
	parseStatus := parsedfile.CompletedSuccessfully
	if len(segs) == 0 {
		parseStatus = parsedfile.CompletedWithError
	}

	line := parsedfile.ParsedIngredientLine{
		ID:          data.Job.JobID,
		Reference:   reference,
		BlockIndex:  blockIndex,
		LineIndex:   lineIndex,
		ParseStatus: parseStatus,
	}
	data.Ingredient = &line
	data.LineIndex = lineIndex

	segments := make([]persist.Segment, len(segs))
	for i, s := range segs {
		segments[i] = persist.Segment{Index: s.Index, Quantity: s.Quantity, Unit: s.Unit, Name: s.Name, Raw: s.Raw}
	}
	data = withMetadata(data, "segments", segments)
	return data, nil
}

func (a *parseIngredientLineAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// saveIngredientLineAction persists the parsed line, its segments, and the
// canonical ingredient/reference rows those segments resolve to.
type saveIngredientLineAction struct {
	Base
	deps Deps
}

func newSaveIngredientLine(deps Deps) Action {
	return &saveIngredientLineAction{Base: NewBase(SaveIngredientLine, true, job.DefaultPriority), deps: deps}
}

func (a *saveIngredientLineAction) ValidateInput(data Data) error {
	if data.Ingredient == nil {
		return errors.New("action: SAVE_INGREDIENT_LINE requires a parsed ingredient line")
	}
	return nil
}

func (a *saveIngredientLineAction) Execute(ctx context.Context, data Data) (Data, error) {
	line := *data.Ingredient
	fields := persist.IngredientLineFields{
		BlockIndex:  line.BlockIndex,
		LineIndex:   line.LineIndex,
		Reference:   line.Reference,
		NoteID:      data.Job.NoteID,
		ParseStatus: line.ParseStatus,
		ParsedAt:    data.Job.CreatedAt,
	}
	if err := a.deps.Store.CreateOrUpdateParsedIngredientLine(ctx, line.ID, fields); err != nil {
		return data, errhandler.Transient(fmt.Errorf("save ingredient line: %w", err))
	}

	segments, _ := data.Metadata["segments"].([]persist.Segment)
	if err := a.deps.Store.ReplaceParsedSegments(ctx, line.ID, segments); err != nil {
		return data, errhandler.Transient(fmt.Errorf("replace parsed segments: %w", err))
	}

	for _, seg := range segments {
		if seg.Name == "" {
			continue
		}
		ing, err := a.deps.Store.FindOrCreateIngredient(ctx, seg.Name, line.Reference)
		if err != nil {
			return data, errhandler.Transient(fmt.Errorf("find or create ingredient %q: %w", seg.Name, err))
		}
		err = a.deps.Store.CreateIngredientReference(ctx, persist.IngredientReferenceArgs{
			IngredientID: ing.ID,
			ParsedLineID: line.ID,
			SegmentIndex: seg.Index,
			Reference:    line.Reference,
			NoteID:       data.Job.NoteID,
			Context:      "main_ingredient",
		})
		if err != nil {
			return data, errhandler.Transient(fmt.Errorf("create ingredient reference: %w", err))
		}
	}
	return data, nil
}

func (a *saveIngredientLineAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// trackPatternAction forwards the line's quantity/unit/name shape onto the
// PATTERN_TRACKING side-channel queue (spec §2's fan-out diagram), distinct
// from the PATTERN_TRACKING worker's own RECORD_PATTERN persistence step.
type trackPatternAction struct {
	Base
	deps Deps
}

func newTrackPattern(deps Deps) Action {
	return &trackPatternAction{Base: NewBase(TrackPattern, true, job.DefaultPriority), deps: deps}
}

func (a *trackPatternAction) ValidateInput(data Data) error {
	if data.Ingredient == nil {
		return errors.New("action: TRACK_PATTERN requires a parsed ingredient line")
	}
	return nil
}

func (a *trackPatternAction) Execute(ctx context.Context, data Data) (Data, error) {
	segments, _ := data.Metadata["segments"].([]persist.Segment)
	pattern := patternSignature(segments)
	data.Pattern = pattern

	childID := job.DeterministicChildJobID(data.Job.NoteID, "pattern", data.LineIndex)
	env := job.New(childID, data.Job.NoteID, data.Job.ImportID)
	env.Metadata["pattern"] = pattern
	if err := enqueue(ctx, a.deps, job.PatternTracking, env); err != nil {
		return data, err
	}
	return data, nil
}

func (a *trackPatternAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// patternSignature collapses a parsed line's segments into a shape string
// like "QUANTITY UNIT NAME" for frequency tracking, blank name segments
// contributing just their own slot.
func patternSignature(segments []persist.Segment) string {
	sig := ""
	for i, s := range segments {
		if i > 0 {
			sig += "; "
		}
		switch {
		case s.Quantity != "" && s.Unit != "":
			sig += "QUANTITY UNIT NAME"
		case s.Quantity != "":
			sig += "QUANTITY NAME"
		default:
			sig += "NAME"
		}
	}
	return sig
}

// completionStatusAction increments the note's completion tracker and,
// only when that increment completes the tracker, broadcasts the terminal
// progress event (spec §4.6/§8 Scenario S6's exact n/total ordering).
type completionStatusAction struct {
	Base
	deps Deps
}

func newCompletionStatus(deps Deps) Action {
	return &completionStatusAction{Base: NewBase(CompletionStatus, true, job.DefaultPriority), deps: deps}
}

func (a *completionStatusAction) ValidateInput(data Data) error {
	return nil
}

func (a *completionStatusAction) Execute(ctx context.Context, data Data) (Data, error) {
	st := a.deps.Tracker.Increment(data.Job.NoteID)
	// UPDATE_INGREDIENT_COUNT already reported this job's "current/total"
	// tick before its own work ran; broadcasting again here on every line
	// would double every progress count (spec §8 S6 names the exact
	// 0/3,1/3,2/3,COMPLETED-3/3 sequence). Only the increment that flips
	// the tracker to complete gets its own event, the terminal one.
	if st.JustCompleted && a.deps.Broadcast != nil {
		a.deps.Broadcast.AddStatusEventAndBroadcast(status.NewProgress(
			data.Job.ImportID, data.Job.NoteID, "ingredient_processing", "🥕", st.CompletedJobs, st.TotalJobs, "ingredients"))
	}
	data = withMetadata(data, "trackerJustCompleted", st.JustCompleted)
	return data, nil
}

func (a *completionStatusAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// scheduleCategorizationAfterCompletionAction fires the CATEGORIZATION job
// exactly once per note: only the Increment call that flips the tracker
// from incomplete to complete sets trackerJustCompleted, so a duplicate
// delivery of the last child is a no-op here (spec §4.6/§8 Scenario S2).
type scheduleCategorizationAfterCompletionAction struct {
	Base
	deps Deps
}

func newScheduleCategorizationAfterCompletion(deps Deps) Action {
	return &scheduleCategorizationAfterCompletionAction{
		Base: NewBase(ScheduleCategorizationAfterCompletion, true, job.DefaultPriority), deps: deps,
	}
}

func (a *scheduleCategorizationAfterCompletionAction) ValidateInput(data Data) error {
	return nil
}

func (a *scheduleCategorizationAfterCompletionAction) Execute(ctx context.Context, data Data) (Data, error) {
	justCompleted, _ := data.Metadata["trackerJustCompleted"].(bool)
	if !justCompleted {
		return data, nil
	}
	childID := job.DeterministicChildJobID(data.Job.NoteID, "categorization", 0)
	env := job.New(childID, data.Job.NoteID, data.Job.ImportID)
	if err := enqueue(ctx, a.deps, job.Categorization, env); err != nil {
		return data, err
	}
	return data, nil
}

func (a *scheduleCategorizationAfterCompletionAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}
