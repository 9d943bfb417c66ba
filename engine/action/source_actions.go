package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/recipeforge/ingest-pipeline/engine/errhandler"
	"github.com/recipeforge/ingest-pipeline/engine/job"
)

// processSourceAction runs the optional ProcessSourceURL hook (e.g. resolve
// redirects, snapshot the page) over the raw source URL; identity
// passthrough when the hook isn't configured.
type processSourceAction struct {
	Base
	deps Deps
}

func newProcessSource(deps Deps) Action {
	return &processSourceAction{Base: NewBase(ProcessSource, true, job.DefaultPriority), deps: deps}
}

func (a *processSourceAction) ValidateInput(data Data) error {
	if _, ok := data.Job.Metadata["sourceUrl"].(string); !ok {
		return errors.New("action: PROCESS_SOURCE requires a source URL")
	}
	return nil
}

func (a *processSourceAction) Execute(ctx context.Context, data Data) (Data, error) {
	url, _ := data.Job.Metadata["sourceUrl"].(string)
	if a.deps.ProcessSourceURL == nil {
		data.SourceURL = url
		return a.save(ctx, data)
	}
	processed, err := a.deps.ProcessSourceURL(ctx, url)
	if err != nil {
		return data, errhandler.Transient(fmt.Errorf("process source: %w", err))
	}
	data.SourceURL = processed
	return a.save(ctx, data)
}

// save persists the processed source URL. PROCESS_SOURCE is the only
// action for the SOURCE queue's pipeline row (spec §4.3), so it owns both
// the transform and the write.
func (a *processSourceAction) save(ctx context.Context, data Data) (Data, error) {
	if err := a.deps.Store.SaveSource(ctx, data.Job.NoteID, data.SourceURL); err != nil {
		return data, errhandler.Transient(fmt.Errorf("save source: %w", err))
	}
	return data, nil
}

func (a *processSourceAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}
