// Package pipeline builds the fixed, ordered Action sequence each worker
// runs a job through (spec §4.3), the dynamic-sequence counterpart to the
// teacher's engine/ingest.NewPipeline generic Stage chain. Actions here all
// operate on the single action.Data type, so a plain ordered slice serves
// instead of a compile-time fn.Stage[In,Out] composition.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/recipeforge/ingest-pipeline/engine/action"
	"github.com/recipeforge/ingest-pipeline/engine/job"
)

// ErrUnknownQueue is returned by Build when name isn't one of the seven
// queues a pipeline is defined for.
var ErrUnknownQueue = errors.New("pipeline: unknown queue")

// fixed lists the non-conditional action order per queue (spec §4.3's
// table). INGREDIENT's conditional UPDATE_INGREDIENT_COUNT step is handled
// separately in buildIngredient.
var fixed = map[job.Name][]action.Name{
	job.Note: {
		action.ParseHTML, action.SaveNote, action.ScheduleImages,
		action.ScheduleIngredients, action.ScheduleInstructions, action.ScheduleSource,
	},
	job.Instruction: {
		action.FormatInstructionLine, action.SaveInstructionLine,
	},
	job.Image: {
		action.ProcessImage, action.SaveImage,
	},
	job.Categorization: {
		action.DetermineCategory, action.SaveCategory, action.DetermineTags, action.SaveTags,
	},
	job.Source: {
		action.ProcessSource,
	},
	job.PatternTracking: {
		action.RecordPattern,
	},
}

// Build returns the ordered Action sequence for queue name, given data.
// Pipelines are pure: they only sequence actions, never create queues or
// issue broadcasts directly (spec §4.3).
func Build(f *action.Factory, deps action.Deps, name job.Name, data action.Data) ([]action.Action, error) {
	if name == job.Ingredient {
		return buildIngredient(f, deps, data)
	}
	names, ok := fixed[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, name)
	}
	return createAll(f, deps, names)
}

// buildIngredient inserts UPDATE_INGREDIENT_COUNT only when the job carries
// both currentIngredientIndex and totalIngredients (spec §4.3).
func buildIngredient(f *action.Factory, deps action.Deps, data action.Data) ([]action.Action, error) {
	names := make([]action.Name, 0, 6)
	if hasIngredientCountMetadata(data) {
		names = append(names, action.UpdateIngredientCount)
	}
	names = append(names,
		action.ParseIngredientLine, action.SaveIngredientLine, action.TrackPattern,
		action.CompletionStatus, action.ScheduleCategorizationAfterCompletion,
	)
	return createAll(f, deps, names)
}

func hasIngredientCountMetadata(data action.Data) bool {
	_, hasCurrent := data.Job.Metadata["currentIngredientIndex"]
	_, hasTotal := data.Job.Metadata["totalIngredients"]
	return hasCurrent && hasTotal
}

func createAll(f *action.Factory, deps action.Deps, names []action.Name) ([]action.Action, error) {
	actions := make([]action.Action, 0, len(names))
	for _, name := range names {
		act, err := f.Create(name, deps)
		if err != nil {
			return nil, fmt.Errorf("pipeline: create %s: %w", name, err)
		}
		actions = append(actions, act)
	}
	return actions, nil
}
