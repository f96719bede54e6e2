package driver

import (
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DriverError represents an error reported by the server or the underlying
// neo4j driver.
type DriverError struct {
	// Code is the Neo4j status code, e.g. Neo.ClientError.Statement.SyntaxError.
	Code string
	// Message is the error message returned from the driver.
	Message string
	// Retryable is set for transient failures worth running again.
	Retryable bool
	Cause     error
}

func (e *DriverError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the driver error.
func (e *DriverError) Unwrap() error { return e.Cause }

var (
	// ErrNotConnected is returned when an operation is attempted on a closed driver.
	ErrNotConnected = errors.New("driver: not connected")
	// ErrTxClosed is returned when a committed, rolled back or closed transaction is used.
	ErrTxClosed = errors.New("driver: transaction closed")
)

// wrapError converts driver errors into DriverError. nil stays nil.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var dbErr *DriverError
	if errors.As(err, &dbErr) {
		return err
	}
	out := &DriverError{Message: err.Error(), Retryable: neo4j.IsRetryable(err), Cause: err}
	var nerr *neo4j.Neo4jError
	if errors.As(err, &nerr) {
		out.Code = nerr.Code
		out.Message = nerr.Msg
	}
	return out
}
