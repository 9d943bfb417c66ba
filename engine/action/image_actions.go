package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/recipeforge/ingest-pipeline/engine/errhandler"
	"github.com/recipeforge/ingest-pipeline/engine/job"
)

// processImageAction runs the optional ProcessImageRef hook (e.g. upload
// to blob storage, re-encode) over the raw image reference; an identity
// passthrough when the hook isn't configured, since image processing
// itself is out of scope (spec §1).
type processImageAction struct {
	Base
	deps Deps
}

func newProcessImage(deps Deps) Action {
	return &processImageAction{Base: NewBase(ProcessImage, true, job.DefaultPriority), deps: deps}
}

func (a *processImageAction) ValidateInput(data Data) error {
	if _, ok := data.Job.Metadata["image"].(string); !ok {
		return errors.New("action: PROCESS_IMAGE requires an image reference")
	}
	return nil
}

func (a *processImageAction) Execute(ctx context.Context, data Data) (Data, error) {
	ref, _ := data.Job.Metadata["image"].(string)
	if a.deps.ProcessImageRef == nil {
		data.ImageRef = ref
		return data, nil
	}
	processed, err := a.deps.ProcessImageRef(ctx, ref)
	if err != nil {
		return data, errhandler.Transient(fmt.Errorf("process image: %w", err))
	}
	data.ImageRef = processed
	return data, nil
}

func (a *processImageAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// saveImageAction persists the (possibly processed) image reference.
type saveImageAction struct {
	Base
	deps Deps
}

func newSaveImage(deps Deps) Action {
	return &saveImageAction{Base: NewBase(SaveImage, true, job.DefaultPriority), deps: deps}
}

func (a *saveImageAction) ValidateInput(data Data) error {
	if data.ImageRef == "" {
		return errors.New("action: SAVE_IMAGE requires a processed image reference")
	}
	return nil
}

func (a *saveImageAction) Execute(ctx context.Context, data Data) (Data, error) {
	if err := a.deps.Store.SaveImage(ctx, data.Job.NoteID, data.ImageRef); err != nil {
		return data, errhandler.Transient(fmt.Errorf("save image: %w", err))
	}
	return data, nil
}

func (a *saveImageAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}
