package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/recipeforge/ingest-pipeline/engine/errhandler"
	"github.com/recipeforge/ingest-pipeline/engine/job"
	"github.com/recipeforge/ingest-pipeline/engine/parsedfile"
)

// formatInstructionLineAction normalizes whitespace in an instruction's
// original text, the one transformation the instruction pipeline applies
// before persistence.
type formatInstructionLineAction struct {
	Base
	deps Deps
}

func newFormatInstructionLine(deps Deps) Action {
	return &formatInstructionLineAction{Base: NewBase(FormatInstructionLine, true, job.DefaultPriority), deps: deps}
}

func (a *formatInstructionLineAction) ValidateInput(data Data) error {
	if _, ok := data.Job.Metadata["originalText"].(string); !ok {
		return errors.New("action: FORMAT_INSTRUCTION_LINE requires originalText")
	}
	return nil
}

func (a *formatInstructionLineAction) Execute(ctx context.Context, data Data) (Data, error) {
	original, _ := data.Job.Metadata["originalText"].(string)
	lineIndex, _ := asInt(data.Job.Metadata["lineIndex"])

	normalized := strings.Join(strings.Fields(original), " ")

	line := parsedfile.ParsedInstructionLine{
		ID:             data.Job.JobID,
		OriginalText:   original,
		NormalizedText: normalized,
		LineIndex:      lineIndex,
		ParseStatus:    parsedfile.CompletedSuccessfully,
	}
	data.Instruction = &line
	data.LineIndex = lineIndex
	return data, nil
}

func (a *formatInstructionLineAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}

// saveInstructionLineAction persists the formatted instruction line.
type saveInstructionLineAction struct {
	Base
	deps Deps
}

func newSaveInstructionLine(deps Deps) Action {
	return &saveInstructionLineAction{Base: NewBase(SaveInstructionLine, true, job.DefaultPriority), deps: deps}
}

func (a *saveInstructionLineAction) ValidateInput(data Data) error {
	if data.Instruction == nil {
		return errors.New("action: SAVE_INSTRUCTION_LINE requires a formatted instruction line")
	}
	return nil
}

func (a *saveInstructionLineAction) Execute(ctx context.Context, data Data) (Data, error) {
	if err := a.deps.Store.CreateInstructionLine(ctx, data.Instruction.ID, *data.Instruction, data.Job.NoteID); err != nil {
		return data, errhandler.Transient(fmt.Errorf("save instruction line: %w", err))
	}
	return data, nil
}

func (a *saveInstructionLineAction) ExecuteWithTiming(ctx context.Context, data Data) ExecResult {
	return Run(ctx, a.Name(), data, a.ValidateInput, a.Execute)
}
