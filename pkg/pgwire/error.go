package pgwire

import (
	"fmt"
	"runtime"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgproto3"
)

// Err wraps a PostgreSQL wire-format error: a SQLSTATE, a severity, and an
// optional underlying cause. It satisfies error and converts directly into
// a pgproto3.ErrorResponse for sending to the client.
type Err struct {
	pgproto3.ErrorResponse
	Cause error
}

var _ error = (*Err)(nil)

func (e *Err) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %s", e.Severity, e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s %s: %s", e.Severity, e.Code, e.Message)
}

func (e *Err) Unwrap() error {
	return e.Cause
}

// NewErr builds an Err with the given severity, SQLSTATE code and message.
// The caller's file/line is recorded for the ErrorResponse's File/Line
// fields, matching what a real Postgres backend reports.
func NewErr(severity Severity, code string, message string, cause error) *Err {
	_, file, line, _ := runtime.Caller(1)
	return &Err{
		ErrorResponse: pgproto3.ErrorResponse{
			Severity: string(severity),
			Code:     code,
			Message:  message,
			File:     file,
			Line:     int32(line),
		},
		Cause: cause,
	}
}

// NewProtocolViolation builds a fatal 08P01 protocol-violation error,
// optionally naming the unexpected message that triggered it.
func NewProtocolViolation(format string, args ...any) *Err {
	_, file, line, _ := runtime.Caller(1)
	return &Err{
		ErrorResponse: pgproto3.ErrorResponse{
			Severity: string(ErrorFatal),
			Code:     pgerrcode.ProtocolViolation,
			Message:  fmt.Sprintf(format, args...),
			File:     file,
			Line:     int32(line),
		},
	}
}

// Common SQLSTATEs PGAdapter raises itself, kept
// as local aliases onto pgerrcode so call sites read in domain terms.
const (
	CodeProtocolViolation           = pgerrcode.ProtocolViolation
	CodeInvalidSQLStatementName     = "26000"
	CodeDuplicatePreparedStatement  = pgerrcode.DuplicatePreparedStatement
	CodeSyntaxError                 = pgerrcode.SyntaxError
	CodeUndefinedTable              = pgerrcode.UndefinedTable
	CodeQueryCanceled               = pgerrcode.QueryCanceled
	CodeInternalError               = pgerrcode.InternalError
	CodeFeatureNotSupported         = pgerrcode.FeatureNotSupported
	CodeInvalidAuthorizationSpec    = pgerrcode.InvalidAuthorizationSpecification
	CodeInvalidCatalogName          = pgerrcode.InvalidCatalogName
	CodeUndefinedParameter          = "42704"
	CodeBindParameterCountMismatch  = "08P01"
	CodeInvalidParameterValue       = pgerrcode.InvalidParameterValue
	CodeInvalidTextRepresentation   = pgerrcode.InvalidTextRepresentation
	CodeInvalidBinaryRepresentation = pgerrcode.InvalidBinaryRepresentation
)
