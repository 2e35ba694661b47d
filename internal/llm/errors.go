package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies analysis failures for the user interface.
type ErrorKind string

const (
	KindNotFridgeImage ErrorKind = "NOT_FRIDGE_IMAGE"
	KindAnalysisFailed ErrorKind = "ANALYSIS_FAILED"
	KindRecipeFailed   ErrorKind = "RECIPE_FAILED"
)

var (
	// ErrNotFridgeImage means the model answered without any JSON object,
	// which happens when the photo does not show food.
	ErrNotFridgeImage = errors.New("image does not look like a fridge")
	// ErrAnalysisFailed covers transport errors and malformed model output.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrRecipeFailed is returned when recipe suggestions cannot be produced.
	ErrRecipeFailed = errors.New("recipe suggestions failed")
)

// AnalysisError carries the kind of failure and its underlying cause.
type AnalysisError struct {
	Kind ErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an AnalysisError against the sentinel of its kind.
func (e *AnalysisError) Is(target error) bool {
	switch target {
	case ErrNotFridgeImage:
		return e.Kind == KindNotFridgeImage
	case ErrAnalysisFailed:
		return e.Kind == KindAnalysisFailed
	case ErrRecipeFailed:
		return e.Kind == KindRecipeFailed
	}
	return false
}

func newAnalysisError(kind ErrorKind, err error) *AnalysisError {
	return &AnalysisError{Kind: kind, Err: err}
}

// KindOf returns the kind of an analysis error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

var errNoSuggester = errors.New("analyzer cannot suggest recipes")
