package backend

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SQLState maps an error returned by a Connection to the PostgreSQL
// SQLSTATE the client should see. Spanner surfaces its failures as gRPC
// status codes; each code is translated to the closest SQLSTATE so drivers
// that branch on error class (retry on serialization failure, report
// undefined table, etc.) keep working.
func SQLState(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pgerrcode.QueryCanceled
	}
	s, ok := status.FromError(err)
	if !ok {
		return pgerrcode.InternalError
	}
	switch s.Code() {
	case codes.Canceled, codes.DeadlineExceeded:
		return pgerrcode.QueryCanceled
	case codes.NotFound:
		return pgerrcode.UndefinedTable
	case codes.AlreadyExists:
		return pgerrcode.DuplicateTable
	case codes.InvalidArgument:
		return pgerrcode.SyntaxError
	case codes.PermissionDenied, codes.Unauthenticated:
		return pgerrcode.InsufficientPrivilege
	case codes.FailedPrecondition:
		return pgerrcode.ObjectNotInPrerequisiteState
	case codes.Unimplemented:
		return pgerrcode.FeatureNotSupported
	case codes.ResourceExhausted:
		return pgerrcode.InsufficientResources
	case codes.Aborted:
		return pgerrcode.SerializationFailure
	default:
		return pgerrcode.InternalError
	}
}
