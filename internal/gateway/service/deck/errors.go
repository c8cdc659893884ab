package deck

import (
	"context"
	"errors"
	"fmt"

	"deckshot/internal/browser"
)

// Error kinds. A failure matches exactly one kind via errors.Is.
var (
	ErrInputValidation = errors.New("invalid input")
	ErrAuth            = errors.New("unauthorized")
	ErrLaunch          = errors.New("browser launch failed")
	ErrNavigation      = errors.New("navigation failed")
	ErrControlNotFound = errors.New("control not found")
	ErrPopupTimeout    = errors.New("image view did not open")
	ErrDeckNotFound    = errors.New("deck not found")
	ErrCapture         = errors.New("capture failed")
	ErrUpload          = errors.New("upload failed")
	ErrRecordUpdate    = errors.New("record update failed")
	ErrBusy            = errors.New("no acquisition slot available")
	ErrDeadline        = errors.New("acquisition deadline exceeded")
)

// StepError records which step failed, the kind of failure and its cause.
type StepError struct {
	Step Step
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// FailedStep returns the step of the first StepError in err's chain.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}

// Retryable reports whether the failure came from the third-party site or
// the browser rather than from the caller's input.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrInputValidation), errors.Is(err, ErrAuth), errors.Is(err, ErrDeckNotFound):
		return false
	default:
		return err != nil
	}
}

// classify maps a driver error onto a kind. fallback applies when the error
// carries no browser sentinel.
func classify(ctx context.Context, step Step, fallback, err error) error {
	kind := fallback
	switch {
	case ctx.Err() != nil:
		kind = ErrDeadline
	case errors.Is(err, browser.ErrLaunch):
		kind = ErrLaunch
	case errors.Is(err, browser.ErrElementNotFound), errors.Is(err, browser.ErrNotVisible):
		kind = ErrControlNotFound
	case errors.Is(err, browser.ErrNoPopup):
		kind = ErrPopupTimeout
	case errors.Is(err, browser.ErrNavigation):
		kind = ErrNavigation
	}
	return &StepError{Step: step, Kind: kind, Err: err}
}
