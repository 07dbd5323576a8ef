package apperrors

import "fmt"

// ValidationError rejects bad or missing input before any side effect.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidation(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names an unknown prospect, sequence, template or token.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Ref)
}

func NewNotFound(kind, ref string) error {
	return &NotFoundError{Kind: kind, Ref: ref}
}

// QuotaExhaustedError means every sender account for a sequence has reached
// its daily cap. Surfaced to the caller, never retried automatically.
type QuotaExhaustedError struct {
	SequenceID uint
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("all sender accounts for sequence %d are at their daily cap", e.SequenceID)
}

func NewQuotaExhausted(sequenceID uint) error {
	return &QuotaExhaustedError{SequenceID: sequenceID}
}

// TransportError wraps a mail or provider failure. Batch operations record
// it and continue; single sends return it to the caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func NewTransport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// TimeoutError marks a provider polling loop that exceeded its attempt
// budget. Terminal for the job within the current invocation.
type TimeoutError struct {
	Op       string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %d attempts", e.Op, e.Attempts)
}

func NewTimeout(op string, attempts int) error {
	return &TimeoutError{Op: op, Attempts: attempts}
}
