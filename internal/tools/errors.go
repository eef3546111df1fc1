package tools

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/advisorhub/mira/pkg/models"
)

// Error codes.
const (
	CodeToolNotFound         = "tool_not_found"
	CodeValidation           = "validation_error"
	CodeDatabaseConnection   = "database_connection_error"
	CodeDatabaseTimeout      = "database_timeout"
	CodeNotFound             = "not_found"
	CodeForeignKeyViolation  = "foreign_key_violation"
	CodeUniqueViolation      = "unique_violation"
	CodePermissionDenied     = "permission_denied"
	CodeDatabaseError        = "database_error"
	CodeNetworkError         = "network_error"
	CodeCancelled            = "cancelled"
	CodeUnknownError         = "unknown_error"
	uniqueViolationMessage   = "A record with this value already exists."
	notFoundMessage          = "The requested record was not found."
	foreignKeyMessage        = "This record references data that does not exist."
	permissionDeniedMessage  = "You do not have permission to perform this action."
	connectionMessage        = "Could not connect to the database. Please try again."
	timeoutMessage           = "The database took too long to respond. Please try again."
	cancelledMessage         = "The operation was cancelled."
	defaultUnknownMessage    = "An unexpected error occurred."
	defaultNetworkMessage    = "A network error occurred. Please try again."
	postgrestNoRowsErrorCode = "PGRST116"
)

// ToolError is a categorized tool failure.
type ToolError = models.ToolError

// coder is implemented by driver errors that expose a SQLSTATE-like code.
type coder interface{ Code() string }

type sqlStater interface{ SQLState() string }

// CategorizeError maps an error to a user-facing code, message and retry
// class. A nil error yields nil.
func CategorizeError(err error) *ToolError {
	if err == nil {
		return nil
	}

	var te *ToolError
	if errors.As(err, &te) {
		return te
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ToolError{Code: CodeCancelled, Message: cancelledMessage, Retryable: false}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &ToolError{Code: CodeNotFound, Message: notFoundMessage}
	}

	if code := errorCode(err); code != "" {
		return categorizeCode(code, err)
	}

	if isNetworkError(err) {
		return &ToolError{Code: CodeNetworkError, Message: messageOr(err, defaultNetworkMessage), Retryable: true}
	}

	return &ToolError{Code: CodeUnknownError, Message: messageOr(err, defaultUnknownMessage)}
}

func errorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	var s sqlStater
	if errors.As(err, &s) {
		return s.SQLState()
	}
	return ""
}

func categorizeCode(code string, err error) *ToolError {
	switch code {
	case "08000", "08003", "08006":
		return &ToolError{Code: CodeDatabaseConnection, Message: connectionMessage, Retryable: true}
	case "57014":
		return &ToolError{Code: CodeDatabaseTimeout, Message: timeoutMessage, Retryable: true}
	case postgrestNoRowsErrorCode:
		return &ToolError{Code: CodeNotFound, Message: notFoundMessage}
	case "23503":
		return &ToolError{Code: CodeForeignKeyViolation, Message: foreignKeyMessage}
	case "23505":
		return &ToolError{Code: CodeUniqueViolation, Message: uniqueViolationMessage}
	case "42501":
		return &ToolError{Code: CodePermissionDenied, Message: permissionDeniedMessage}
	default:
		return &ToolError{Code: CodeDatabaseError, Message: messageOr(err, defaultUnknownMessage)}
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	var urlErr *url.Error
	var opErr *net.OpError
	switch {
	case errors.As(err, &urlErr), errors.As(err, &opErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET):
		return true
	}
	return false
}

func messageOr(err error, fallback string) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
