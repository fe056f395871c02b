package translate

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable matches every *ModelUnavailableError.
	ErrModelUnavailable = errors.New("translation model unavailable")
	// ErrInferenceFailure matches every *InferenceError.
	ErrInferenceFailure = errors.New("translation inference failed")

	ErrEmptyInput   = errors.New("empty input text")
	ErrInputTooLong = errors.New("input exceeds model length")
	ErrEmptyOutput  = errors.New("model produced no text")
)

// ModelUnavailableError reports that no model could be resolved for a pair.
type ModelUnavailableError struct {
	Pair    LanguagePair
	ModelID string
	Err     error
}

func (e *ModelUnavailableError) Error() string {
	if e.ModelID == "" {
		return fmt.Sprintf("no translation model for %s: %v", e.Pair, e.Err)
	}
	return fmt.Sprintf("no translation model for %s (%s): %v", e.Pair, e.ModelID, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// InferenceError reports a tokenization or generation failure on a loaded model.
type InferenceError struct {
	ModelID string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("translate with %s: %v", e.ModelID, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) Is(target error) bool { return target == ErrInferenceFailure }
