// Package action implements the Action/ActionFactory abstraction of spec
// §4.1/§4.2: named, retryable, timed units of work, produced by a
// name→constructor registry and composed into per-worker pipelines.
package action

import "errors"

// Name is one of the closed enumeration of action names in spec §6.
type Name string

const (
	ParseHTML                          Name = "PARSE_HTML"
	SaveNote                           Name = "SAVE_NOTE"
	ScheduleImages                     Name = "SCHEDULE_IMAGES"
	ScheduleIngredients                Name = "SCHEDULE_INGREDIENTS"
	ScheduleInstructions               Name = "SCHEDULE_INSTRUCTIONS"
	ScheduleSource                     Name = "SCHEDULE_SOURCE"
	ScheduleCategorizationAfterCompletion Name = "SCHEDULE_CATEGORIZATION_AFTER_COMPLETION"
	ParseIngredientLine                Name = "PARSE_INGREDIENT_LINE"
	SaveIngredientLine                 Name = "SAVE_INGREDIENT_LINE"
	UpdateIngredientCount              Name = "UPDATE_INGREDIENT_COUNT"
	FormatInstructionLine              Name = "FORMAT_INSTRUCTION_LINE"
	SaveInstructionLine                Name = "SAVE_INSTRUCTION_LINE"
	ProcessImage                       Name = "PROCESS_IMAGE"
	SaveImage                          Name = "SAVE_IMAGE"
	DetermineCategory                  Name = "DETERMINE_CATEGORY"
	SaveCategory                       Name = "SAVE_CATEGORY"
	DetermineTags                      Name = "DETERMINE_TAGS"
	SaveTags                           Name = "SAVE_TAGS"
	ProcessSource                      Name = "PROCESS_SOURCE"
	TrackPattern                       Name = "TRACK_PATTERN"
	CompletionStatus                   Name = "COMPLETION_STATUS"
	RecordPattern                      Name = "RECORD_PATTERN"
)

// AllNames lists the full closed set, for registration-completeness checks.
var AllNames = []Name{
	ParseHTML, SaveNote, ScheduleImages, ScheduleIngredients, ScheduleInstructions,
	ScheduleSource, ScheduleCategorizationAfterCompletion, ParseIngredientLine,
	SaveIngredientLine, UpdateIngredientCount, FormatInstructionLine, SaveInstructionLine,
	ProcessImage, SaveImage, DetermineCategory, SaveCategory, DetermineTags, SaveTags,
	ProcessSource, TrackPattern, CompletionStatus, RecordPattern,
}

// ErrDuplicateRegistration is returned by Factory.Register when name is
// already bound.
var ErrDuplicateRegistration = errors.New("action: duplicate registration")

// ErrUnknownAction is returned by Factory.Create when name was never
// registered.
var ErrUnknownAction = errors.New("action: unknown action")
