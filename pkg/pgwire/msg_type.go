// Package pgwire holds the small, protocol-level building blocks shared by
// every layer of PGAdapter: message identifier bytes, severities,
// transaction-status bytes, and SQLSTATE-tagged errors. Byte-level framing
// itself is handled by github.com/jackc/pgx/v5/pgproto3; this package
// supplies the PGAdapter-specific vocabulary layered on top of it.
package pgwire

// MsgType represents a PostgreSQL wire protocol message type byte.
type MsgType byte

// MsgLookup is a lookup table from MsgType to T.
// It uses [256]T so that indexing by a byte is always in-bounds, allowing
// the compiler to eliminate bounds checks entirely.
type MsgLookup[T any] [256]T

// Get returns the value for the given message type.
func (t *MsgLookup[T]) Get(m MsgType) T {
	return t[m]
}

// Client (frontend) message types.
const (
	MsgClientBind      MsgType = 'B'
	MsgClientClose     MsgType = 'C'
	MsgClientCopyData  MsgType = 'd'
	MsgClientCopyDone  MsgType = 'c'
	MsgClientCopyFail  MsgType = 'f'
	MsgClientDescribe  MsgType = 'D'
	MsgClientExecute   MsgType = 'E'
	MsgClientFlush     MsgType = 'H'
	MsgClientFunc      MsgType = 'F'
	MsgClientParse     MsgType = 'P'
	MsgClientPassword  MsgType = 'p'
	MsgClientQuery     MsgType = 'Q'
	MsgClientSync      MsgType = 'S'
	MsgClientTerminate MsgType = 'X'
)

// Server (backend) message types.
const (
	MsgServerAuth                 MsgType = 'R'
	MsgServerBackendKeyData       MsgType = 'K'
	MsgServerBindComplete         MsgType = '2'
	MsgServerCloseComplete        MsgType = '3'
	MsgServerCommandComplete      MsgType = 'C'
	MsgServerCopyData             MsgType = 'd'
	MsgServerCopyDone             MsgType = 'c'
	MsgServerCopyInResponse       MsgType = 'G'
	MsgServerDataRow              MsgType = 'D'
	MsgServerEmptyQueryResponse   MsgType = 'I'
	MsgServerErrorResponse        MsgType = 'E'
	MsgServerNoData               MsgType = 'n'
	MsgServerNoticeResponse       MsgType = 'N'
	MsgServerParameterDescription MsgType = 't'
	MsgServerParameterStatus      MsgType = 'S'
	MsgServerParseComplete        MsgType = '1'
	MsgServerPortalSuspended      MsgType = 's'
	MsgServerReadyForQuery        MsgType = 'Z'
	MsgServerRowDescription       MsgType = 'T'
)

// MsgName returns a human-readable name for the message type, used in
// logging and protocol-violation error messages.
var MsgName = MsgLookup[string]{
	'B': "Bind",
	'C': "Close/CommandComplete",
	'c': "CopyDone",
	'd': "CopyData",
	'D': "Describe/DataRow",
	'E': "Execute/ErrorResponse",
	'f': "CopyFail",
	'F': "FunctionCall",
	'H': "Flush",
	'P': "Parse",
	'p': "PasswordMessage",
	'Q': "Query",
	'S': "Sync/ParameterStatus",
	'X': "Terminate",
	'1': "ParseComplete",
	'2': "BindComplete",
	'3': "CloseComplete",
	'G': "CopyInResponse",
	'I': "EmptyQueryResponse",
	'K': "BackendKeyData",
	'n': "NoData",
	'N': "NoticeResponse",
	'R': "Authentication",
	's': "PortalSuspended",
	't': "ParameterDescription",
	'T': "RowDescription",
	'Z': "ReadyForQuery",
}
