package datasource

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
)

// ExecutionErrorKind groups query failures by how the caller should react.
type ExecutionErrorKind string

const (
	// ExecutionErrorConnection means the database could not be reached.
	ExecutionErrorConnection ExecutionErrorKind = "connection"
	// ExecutionErrorTimeout means the statement exceeded its deadline.
	ExecutionErrorTimeout ExecutionErrorKind = "timeout"
	// ExecutionErrorExecution means the database rejected the statement.
	ExecutionErrorExecution ExecutionErrorKind = "execution"
)

// ExecutionError is a classified query failure. The cause carries raw driver
// text and must be sanitized before it is logged.
type ExecutionError struct {
	Kind ExecutionErrorKind
	Err  error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return "query " + string(e.Kind) + " error"
	}
	return "query " + string(e.Kind) + " error: " + e.Err.Error()
}

// Unwrap returns the driver error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is matches apperrors.ErrExecutionFailed.
func (e *ExecutionError) Is(target error) bool {
	return target == apperrors.ErrExecutionFailed
}

// IsRetryable reports whether running the same statement again may succeed.
func (e *ExecutionError) IsRetryable() bool {
	return e.Kind == ExecutionErrorConnection || e.Kind == ExecutionErrorTimeout
}

// NewExecutionError classifies err. A nil err returns nil; an
// *ExecutionError is returned unchanged.
func NewExecutionError(err error) *ExecutionError {
	if err == nil {
		return nil
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr
	}
	return &ExecutionError{Kind: classifyExecutionError(err), Err: err}
}

func classifyExecutionError(err error) ExecutionErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ExecutionErrorTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "57014": // query_canceled (statement_timeout)
			return ExecutionErrorTimeout
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "53300":
			return ExecutionErrorConnection
		}
		return ExecutionErrorExecution
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || errors.Is(err, driver.ErrBadConn) {
		return ExecutionErrorConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ExecutionErrorTimeout
		}
		return ExecutionErrorConnection
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return ExecutionErrorTimeout
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "broken pipe"), strings.Contains(lower, "no such host"),
		strings.Contains(lower, "login failed"):
		return ExecutionErrorConnection
	}
	return ExecutionErrorExecution
}
