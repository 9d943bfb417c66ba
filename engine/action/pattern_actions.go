package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/recipeforge/ingest-pipeline/engine/errhandler"
	"github.com/recipeforge/ingest-pipeline/engine/job"
)

// recordPatternAction persists the pattern signature TRACK_PATTERN forwarded
// from the INGREDIENT pipeline's side-channel. It is the PATTERN_TRACKING
// queue's sole action.
type recordPatternAction struct {
	Base
	deps Deps
}

func newRecordPattern(deps Deps) Action {
	return &recordPatternAction{Base: NewBase(RecordPattern, true, job.DefaultPriority), deps: deps}
}

func (a *recordPatternAction) ValidateInput(data Data) error {
	if _, ok := data.Job.Metadata["pattern"].(string); !ok {
		return errors.New("action: RECORD_PATTERN requires a pattern string")
	}
	return nil
}

func (a *recordPatternAction) Execute(ctx context.Context, data Data) (Data, error) {
	pattern, _ := data.Job.Metadata["pattern"].(string)
	data.Pattern = pattern
	if err := a.deps.Store.RecordPattern(ctx, data.Job.NoteID, pattern); err != nil {
		return data, errhandler.Transient(fmt.Errorf("record pattern: %w", err))
	}
	return data, nil
}

func (a *recordPatternAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}
