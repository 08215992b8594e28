package backend

import (
	"context"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/values"
)

// Fake is an in-memory Connection double used by pkg/frontend's tests,
// letting wire-level scenario tests run without a live Spanner instance.
type Fake struct {
	Tables  map[string]bool
	Indexes map[string]bool

	// Queries maps a SQL string (as the frontend sends it, post-translation)
	// to the Result it should return. Each Query call yields a fresh row
	// iterator, so the same entry can be executed repeatedly.
	Queries map[string]*Result
	// QueryFunc, when set, overrides map-driven Query handling entirely;
	// used by tests that need a blocking or failing backend call.
	QueryFunc func(ctx context.Context, sql string, params map[string]any) (*Result, error)
	// Updates maps a SQL string to the Update it should return.
	Updates map[string]*Update
	// Columns maps a table name to the wire OID of each of its columns, by
	// name, for ColumnTypes. Unset columns default to OIDText.
	Columns map[string]map[string]values.OID
	// ColumnOrder maps a table name to its column names in declaration
	// order, for TableColumns.
	ColumnOrder map[string][]string

	ExecutedDDL []string
	Mutations   []Mutation
	InTx        bool
	Canceled    bool
	// CancelSignal, when non-nil, is closed by Cancel so a blocking
	// QueryFunc can observe the cancellation.
	CancelSignal chan struct{}
}

// NewFake returns an empty Fake ready for a test to populate.
func NewFake() *Fake {
	return &Fake{
		Tables:  make(map[string]bool),
		Indexes: make(map[string]bool),
		Queries: make(map[string]*Result),
		Updates: make(map[string]*Update),
	}
}

func (f *Fake) Query(ctx context.Context, sql string, params map[string]any) (*Result, error) {
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, sql, params)
	}
	if r, ok := f.Queries[sql]; ok {
		rows, _ := r.Rows.(*fakeRowIterator)
		var data [][]any
		if rows != nil {
			data = rows.rows
		}
		return &Result{Fields: r.Fields, Rows: &fakeRowIterator{rows: data}}, nil
	}
	return &Result{Rows: &fakeRowIterator{}}, nil
}

func (f *Fake) Analyze(ctx context.Context, sql string, params map[string]any) ([]ResultField, error) {
	if r, ok := f.Queries[sql]; ok {
		return r.Fields, nil
	}
	return nil, nil
}

func (f *Fake) Exec(ctx context.Context, sql string, params map[string]any) (*Update, error) {
	if u, ok := f.Updates[sql]; ok {
		return u, nil
	}
	return &Update{RowsAffected: 0}, nil
}

func (f *Fake) ApplyDDL(ctx context.Context, sql string) (*DDLAck, error) {
	f.ExecutedDDL = append(f.ExecutedDDL, sql)
	return &DDLAck{}, nil
}

func (f *Fake) BeginTx(ctx context.Context) error { f.InTx = true; return nil }
func (f *Fake) Commit(ctx context.Context) error { f.InTx = false; return nil }
func (f *Fake) Rollback(ctx context.Context) error { f.InTx = false; return nil }

func (f *Fake) BufferMutation(m Mutation) { f.Mutations = append(f.Mutations, m) }
func (f *Fake) FlushMutations(ctx context.Context) error { return nil }

func (f *Fake) Cancel() {
	f.Canceled = true
	if f.CancelSignal != nil {
		close(f.CancelSignal)
		f.CancelSignal = nil
	}
}

func (f *Fake) TableExists(name string) (bool, error) { return f.Tables[name], nil }
func (f *Fake) IndexExists(name string) (bool, error) { return f.Indexes[name], nil }

func (f *Fake) ColumnTypes(ctx context.Context, table string, columns []string) ([]values.OID, error) {
	oids := make([]values.OID, len(columns))
	byName := f.Columns[table]
	for i, name := range columns {
		if oid, ok := byName[name]; ok {
			oids[i] = oid
		} else {
			oids[i] = values.OIDText
		}
	}
	return oids, nil
}

func (f *Fake) TableColumns(ctx context.Context, table string) ([]string, error) {
	return f.ColumnOrder[table], nil
}

func (f *Fake) Close(ctx context.Context) error { return nil }

// fakeRowIterator yields a fixed slice of rows for Fake.Query results.
type fakeRowIterator struct {
	rows [][]any
	pos  int
}

func (it *fakeRowIterator) Next() ([]any, error) {
	if it.pos >= len(it.rows) {
		return nil, ErrRowsDone
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *fakeRowIterator) Stop() {}

// NewFakeRows builds a RowIterator over fixed rows, for constructing
// Fake.Queries entries in tests.
func NewFakeRows(rows [][]any) RowIterator {
	return &fakeRowIterator{rows: rows}
}

var _ Connection = (*Fake)(nil)
