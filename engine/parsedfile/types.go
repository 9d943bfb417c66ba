// Package parsedfile defines the HTML-parse output types that flow into
// the NOTE pipeline, and the validation that guards the stage boundary.
package parsedfile

import "time"

// ParseStatus is the lifecycle of a single parsed line.
type ParseStatus string

const (
	AwaitingParsing         ParseStatus = "AWAITING_PARSING"
	CompletedSuccessfully   ParseStatus = "COMPLETED_SUCCESSFULLY"
	CompletedWithError      ParseStatus = "COMPLETED_WITH_ERROR"
)

// EvernoteMetadata carries the optional export metadata a note may have
// retained from its source notebook.
type EvernoteMetadata struct {
	Source            string    `json:"source,omitempty"`
	OriginalCreatedAt time.Time `json:"original_created_at,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	Notebook          string    `json:"notebook,omitempty"`
}

// ParsedIngredientLine is one line of the ingredients block, in its
// original (blockIndex, lineIndex) position.
type ParsedIngredientLine struct {
	ID          string      `json:"id"`
	Reference   string      `json:"reference"`
	BlockIndex  int         `json:"block_index"`
	LineIndex   int         `json:"line_index"`
	ParseStatus ParseStatus `json:"parse_status"`
}

// ParsedInstructionLine is one line of the instructions block.
type ParsedInstructionLine struct {
	ID             string      `json:"id"`
	OriginalText   string      `json:"original_text"`
	NormalizedText string      `json:"normalized_text,omitempty"`
	LineIndex      int         `json:"line_index"`
	ParseStatus    ParseStatus `json:"parse_status"`
}

// File is the pure-function output of the (out of scope) HTML parser:
// content in, structured recipe data out.
type File struct {
	Title                string                  `json:"title"`
	Contents             string                  `json:"contents"`
	Ingredients          []ParsedIngredientLine  `json:"ingredients"`
	Instructions         []ParsedInstructionLine `json:"instructions"`
	EvernoteMetadata     *EvernoteMetadata       `json:"evernote_metadata,omitempty"`
	Image                string                  `json:"image,omitempty"`
	HistoricalCreatedAt  time.Time               `json:"historical_created_at,omitempty"`
	SourceURL            string                  `json:"source_url,omitempty"`
}

// WithDefaults fills the zero-value sequences the spec requires to default
// to empty rather than nil, so downstream fan-out counting never panics on
// a nil slice.
func (f File) WithDefaults() File {
	if f.Ingredients == nil {
		f.Ingredients = []ParsedIngredientLine{}
	}
	if f.Instructions == nil {
		f.Instructions = []ParsedInstructionLine{}
	}
	return f
}
