// Package backend implements the Backend Connection Adapter: a thin, typed
// facade over the Cloud Spanner PostgreSQL-dialect RPC surface, owning one
// logical Spanner session per client connection.
package backend

import (
	"context"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/values"
)

// Mutation is a typed row insert/update/delete targeted at a table,
// batched and flushed by the COPY engine.
type Mutation struct {
	Kind    MutationKind
	Table   string
	Columns []string
	Values  []any
}

// MutationKind names the row operation a Mutation performs. PGAdapter's
// COPY engine only ever produces MutationInsertOrUpdate.
type MutationKind int

const (
	MutationInsertOrUpdate MutationKind = iota
	MutationDelete
)

// Result is the row-producing outcome of Execute for a QUERY statement.
type Result struct {
	Fields []ResultField
	Rows   RowIterator
}

// ResultField describes one output column's name and backend type.
type ResultField struct {
	Name string
	OID  uint32
}

// RowIterator streams decoded column values one row at a time. Next
// returns ErrRowsDone once exhausted.
type RowIterator interface {
	Next() ([]any, error)
	Stop()
}

// Update is the outcome of Execute for a DML statement: the number of rows
// affected.
type Update struct {
	RowsAffected int64
}

// DDLAck is the outcome of Execute for a DDL statement once applied.
type DDLAck struct{}

// Connection is the abstract backend one client session drives: query and
// DML execution, transaction control, buffered mutations, and cancellation.
// One Connection is owned by exactly one client Session for its entire
// lifetime.
//
// Statement execution is split into three methods (Query/Exec/ApplyDDL)
// rather than one polymorphic call: the frontend already knows a
// statement's pkg/sqlparser.StatementKind before it reaches the backend, so
// the result-shape union is resolved by which method is called, not by
// inspecting a return value.
type Connection interface {
	// Query runs a QUERY statement and streams its rows.
	Query(ctx context.Context, sql string, params map[string]any) (*Result, error)
	// Analyze resolves a QUERY statement's result column metadata without
	// handing the caller its rows, for Describe('P')'s early-plan contract.
	Analyze(ctx context.Context, sql string, params map[string]any) ([]ResultField, error)
	// Exec runs a DML statement and reports rows affected.
	Exec(ctx context.Context, sql string, params map[string]any) (*Update, error)
	// ApplyDDL runs one already-translated DDL statement.
	ApplyDDL(ctx context.Context, sql string) (*DDLAck, error)

	BeginTx(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// BufferMutation queues a row write produced by the COPY engine.
	BufferMutation(m Mutation)
	// FlushMutations applies every buffered Mutation as one batch.
	FlushMutations(ctx context.Context) error

	// Cancel aborts whatever Execute/FlushMutations call is currently
	// in-flight on this Connection.
	Cancel()

	TableExists(name string) (bool, error)
	IndexExists(name string) (bool, error)

	// ColumnTypes resolves the wire OID for each named column of table, in
	// order, so the COPY engine can decode a payload without the
	// client ever describing its own schema.
	ColumnTypes(ctx context.Context, table string, columns []string) ([]values.OID, error)
	// TableColumns lists table's column names in ordinal position order, for
	// a COPY statement that omits its own explicit column list.
	TableColumns(ctx context.Context, table string) ([]string, error)

	Close(ctx context.Context) error
}
