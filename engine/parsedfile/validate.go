package parsedfile

import (
	"errors"
	"net/url"
	"strings"
)

const maxTitleLen = 255

// Validate checks a parsed file against the stage-boundary schema described
// in spec §3 and §6. Error text is bit-exact where the spec enumerates it.
func Validate(f File) error {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return newValidationError("title", f.Title, ErrTitleRequired)
	}
	if len(f.Title) > maxTitleLen {
		return newValidationError("title", f.Title, ErrTitleRequired)
	}
	if strings.TrimSpace(f.Contents) == "" {
		return newValidationError("contents", "", ErrContentsRequired)
	}
	if f.SourceURL != "" {
		if !isValidURL(f.SourceURL) {
			return newValidationError("source_url", f.SourceURL, ErrInvalidSourceURL)
		}
	}
	if f.EvernoteMetadata != nil && f.EvernoteMetadata.Source != "" {
		if !isValidURL(f.EvernoteMetadata.Source) {
			return newValidationError("evernote_metadata.source", f.EvernoteMetadata.Source, ErrInvalidSourceURL)
		}
	}
	return nil
}

func isValidURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// ValidateIntakeContent checks the raw HTML payload at the HTTP intake
// boundary before it ever reaches the NOTE pipeline (spec §6 / §8 S3).
// MaxContentBytes matches the 10 MiB ceiling in spec §8's boundary table.
const MaxContentBytes = 10 * 1024 * 1024

// ErrContentEmptyMsg is the bit-exact message spec.md names for an empty
// intake body.
const ErrContentEmptyMsg = "Content cannot be empty"

func ValidateIntakeContent(content string) error {
	if content == "" {
		return newValidationError("content", content, errContentEmpty)
	}
	if len(content) > MaxContentBytes {
		return newValidationError("content", "", errContentTooLarge)
	}
	return nil
}

var (
	errContentEmpty    = errors.New(ErrContentEmptyMsg)
	errContentTooLarge = errors.New("Content exceeds maximum size")
)
