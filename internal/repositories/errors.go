package repositories

import "fmt"

// ErrorCode enumerates persistence failure categories shared by repositories.
type ErrorCode string

const (
	// ErrorCodeUnknown represents an unspecified failure.
	ErrorCodeUnknown ErrorCode = "unknown"
	// ErrorCodeNotFound indicates the requested row does not exist.
	ErrorCodeNotFound ErrorCode = "not_found"
	// ErrorCodeConflict indicates a concurrent modification or state guard rejected the write.
	ErrorCodeConflict ErrorCode = "conflict"
	// ErrorCodeUnavailable indicates the backing store could not be reached.
	ErrorCodeUnavailable ErrorCode = "unavailable"
)

// Error is the concrete RepositoryError implementation returned by the SQL
// repositories.
type Error struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound implements RepositoryError.
func (e *Error) IsNotFound() bool { return e != nil && e.Code == ErrorCodeNotFound }

// IsConflict implements RepositoryError.
func (e *Error) IsConflict() bool { return e != nil && e.Code == ErrorCodeConflict }

// IsUnavailable implements RepositoryError.
func (e *Error) IsUnavailable() bool { return e != nil && e.Code == ErrorCodeUnavailable }

// NewError constructs a categorised repository error.
func NewError(op string, code ErrorCode, message string, err error) *Error {
	if message == "" {
		message = string(code)
	}
	return &Error{Op: op, Code: code, Message: message, Err: err}
}

// InsufficientStockError reports that a stock reservation could not cover the
// requested quantity for a product.
type InsufficientStockError struct {
	ProductID int64
	Requested int
}

// Error implements the error interface.
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (requested %d)", e.ProductID, e.Requested)
}

// IsNotFound implements RepositoryError.
func (e *InsufficientStockError) IsNotFound() bool { return false }

// IsConflict implements RepositoryError.
func (e *InsufficientStockError) IsConflict() bool { return true }

// IsUnavailable implements RepositoryError.
func (e *InsufficientStockError) IsUnavailable() bool { return false }
