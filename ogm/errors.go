package ogm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrVeto can be returned by a BeforeAdd hook to cancel an association
// without reporting an underlying failure.
var ErrVeto = errors.New("association vetoed")

// NotRegisteredError is returned when an operation is attempted on a Go type
// that has not been registered with the mapper.
type NotRegisteredError struct {
	TypeName string
}

// Error returns the error message for NotRegisteredError.
func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("type %q is not registered", e.TypeName)
}

// ConfigurationError is returned for inconsistent model or association
// declarations, and for query proxies built in a way that can never compile.
// It is deterministic: retrying the same call fails the same way.
type ConfigurationError struct {
	Subject string
	Message string
}

// Error returns the error message for ConfigurationError.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Subject, e.Message)
}

// ResolutionError is returned when a lazily referenced model or relationship
// model cannot be found at the time it is first needed.
type ResolutionError struct {
	Association string
	Name        string
}

// Error returns the error message for ResolutionError.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("association %s: cannot resolve model %q", e.Association, e.Name)
}

// UsageError is returned when a proxy call receives a malformed argument,
// such as a filter on an identifier that is not in scope.
type UsageError struct {
	Op      string
	Message string
}

// Error returns the error message for UsageError.
func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ExecutionError wraps a failure reported by the statement executor. The
// message carries the statement text and association name but never the
// parameter values.
type ExecutionError struct {
	Statement   string
	Association string
	Cause       error
}

// Error returns the error message for ExecutionError.
func (e *ExecutionError) Error() string {
	stmt := strings.ReplaceAll(e.Statement, "\n", " ")
	if e.Association != "" {
		return fmt.Sprintf("executing %s (%s): %v", e.Association, stmt, e.Cause)
	}
	return fmt.Sprintf("executing (%s): %v", stmt, e.Cause)
}

// Unwrap returns the executor error unchanged.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// CascadeError is returned when dependent deletion fails partway. Undoing
// the partial work is left to the enclosing transaction.
type CascadeError struct {
	Owner       string
	Association string
	Cause       error
}

// Error returns the error message for CascadeError.
func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascading %s.%s: %v", e.Owner, e.Association, e.Cause)
}

// Unwrap returns the underlying cause of the CascadeError.
func (e *CascadeError) Unwrap() error {
	return e.Cause
}

// HookVetoError is returned when a BeforeAdd hook rejects an association.
type HookVetoError struct {
	Association string
	Cause       error
}

// Error returns the error message for HookVetoError.
func (e *HookVetoError) Error() string {
	return fmt.Sprintf("association %s: before-add hook rejected: %v", e.Association, e.Cause)
}

// Unwrap returns the error returned by the hook.
func (e *HookVetoError) Unwrap() error {
	return e.Cause
}

// HydrationError is returned when an error occurs while populating a Go struct
// with data retrieved from the database.
type HydrationError struct {
	TypeName string
	Field    string
	Cause    error
}

// Error returns the error message for HydrationError.
func (e *HydrationError) Error() string {
	return fmt.Sprintf("hydrating %s.%s: %v", e.TypeName, e.Field, e.Cause)
}

// Unwrap returns the underlying cause of the HydrationError.
func (e *HydrationError) Unwrap() error {
	return e.Cause
}

// ReservedWordError is returned when a Cypher reserved keyword is used
// as an explicit identifier, label or property name.
type ReservedWordError struct {
	Word    string
	Context string // "identifier", "label", "property", "type"
}

// Error returns the error message for ReservedWordError.
func (e *ReservedWordError) Error() string {
	return fmt.Sprintf("ogm: %q is a Cypher reserved keyword and cannot be used as %s name",
		e.Word, e.Context)
}

// NotFoundError is returned when a query expected to return an instance
// finds no matching results.
type NotFoundError struct {
	TypeName string
}

// Error returns the error message for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: not found", e.TypeName)
}

// NotUniqueError is returned when a query expected to return a single
// unique instance finds multiple matches.
type NotUniqueError struct {
	TypeName string
	Count    int
}

// Error returns the error message for NotUniqueError.
func (e *NotUniqueError) Error() string {
	return fmt.Sprintf("%s: expected unique, got %d", e.TypeName, e.Count)
}

// NotPersistedError is returned when an operation needs the database
// identity of a record that has not been saved yet.
type NotPersistedError struct {
	TypeName string
	Op       string
}

// Error returns the error message for NotPersistedError.
func (e *NotPersistedError) Error() string {
	return fmt.Sprintf("%s: %s requires a persisted record", e.TypeName, e.Op)
}

func configErr(subject, format string, args ...any) error {
	return &ConfigurationError{Subject: subject, Message: fmt.Sprintf(format, args...)}
}

func usageErr(op, format string, args ...any) error {
	return &UsageError{Op: op, Message: fmt.Sprintf(format, args...)}
}
