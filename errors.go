package gifsync

import (
	"errors"
	"fmt"
)

// Decode error kinds. Match them with errors.Is.
var (
	ErrEmptyInput    = errors.New("empty input")
	ErrIOFailure     = errors.New("failed to read input")
	ErrDecodeFailure = errors.New("failed to decode gif")
)

// ErrInvalidBars is returned when a sync length is not a positive number.
var ErrInvalidBars = errors.New("sync length must be a positive number of bars")

// DecodeError reports why a load did not produce a sequence.
type DecodeError struct {
	Kind error // one of ErrEmptyInput, ErrIOFailure, ErrDecodeFailure
	Err  error // underlying cause, may be nil
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func decodeError(kind, err error) error {
	return &DecodeError{Kind: kind, Err: err}
}

// Status lines shown to the user in place of a frame.
const (
	StatusPrompt     = "Right-click to load a GIF"
	StatusMissing    = "Saved GIF missing. Right-click to load a GIF"
	StatusOpenFailed = "Failed to open file"
	StatusReadFailed = "Failed to read file"
	StatusBadGIF     = "Failed to decode GIF"
)

// StatusFor maps a load error to the status line shown in the view.
func StatusFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIOFailure):
		return StatusOpenFailed
	case errors.Is(err, ErrEmptyInput):
		return StatusReadFailed
	default:
		return StatusBadGIF
	}
}
