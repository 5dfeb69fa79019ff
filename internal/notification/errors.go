package notification

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a notification does not exist
	ErrNotFound = errors.New("notification not found")

	// ErrTemplateNotFound is returned when a template lookup misses
	ErrTemplateNotFound = errors.New("template not found")

	// ErrBatchNotFound is returned when a batch lookup misses
	ErrBatchNotFound = errors.New("batch not found")

	// ErrInvalidState is returned when a state transition is rejected, e.g.
	// processing a batch that is not pending or advancing a failed history row
	ErrInvalidState = errors.New("invalid state transition")
)

// ValidationError is a synchronous input error. Nothing is persisted when
// one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// MissingVariableError is returned when a render context lacks a variable
// referenced by the template
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable %q", e.Name)
}

// UndeclaredVariableError is returned at template definition time when the
// title or message references placeholders absent from the declared
// variable set
type UndeclaredVariableError struct {
	Names []string
}

func (e *UndeclaredVariableError) Error() string {
	return fmt.Sprintf("undeclared template variables: %s", strings.Join(e.Names, ", "))
}
