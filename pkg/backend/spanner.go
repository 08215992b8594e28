package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/spanner"
	database "cloud.google.com/go/spanner/admin/database/apiv1"
	"cloud.google.com/go/spanner/admin/database/apiv1/databasepb"
	"google.golang.org/api/iterator"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/session"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/values"
)

var _ Connection = (*SpannerConnection)(nil)

// SpannerConnection is the concrete Connection backing one client session,
// talking to Cloud Spanner's PostgreSQL dialect over cloud.google.com/go/spanner.
type SpannerConnection struct {
	client       *spanner.Client
	adminClient  *database.DatabaseAdminClient
	databasePath string
	state        *session.State

	mu          sync.Mutex
	tx          *spanner.ReadWriteStmtBasedTransaction
	pending     []*spanner.Mutation
	cancelFuncs []context.CancelFunc

	tableExistsCache map[string]bool
	indexExistsCache map[string]bool
}

// NewSpannerConnection dials a Spanner client and admin client for
// databasePath ("projects/P/instances/I/databases/D"), scoped to one
// client session's lifetime.
func NewSpannerConnection(ctx context.Context, databasePath string, state *session.State) (*SpannerConnection, error) {
	client, err := spanner.NewClient(ctx, databasePath)
	if err != nil {
		return nil, fmt.Errorf("creating spanner client: %w", err)
	}
	adminClient, err := database.NewDatabaseAdminClient(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("creating spanner database admin client: %w", err)
	}
	return &SpannerConnection{
		client:           client,
		adminClient:      adminClient,
		databasePath:     databasePath,
		state:            state,
		tableExistsCache: make(map[string]bool),
		indexExistsCache: make(map[string]bool),
	}, nil
}

func (c *SpannerConnection) trackCancel(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFuncs = append(c.cancelFuncs, cancel)
	c.mu.Unlock()
	return cctx, cancel
}

// Cancel aborts every Execute/FlushMutations call currently in flight on
// this Connection.
func (c *SpannerConnection) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.cancelFuncs {
		cancel()
	}
	c.cancelFuncs = nil
}

func (c *SpannerConnection) Query(ctx context.Context, sql string, params map[string]any) (*Result, error) {
	ctx, cancel := c.trackCancel(ctx)
	defer cancel()

	stmt := spanner.Statement{SQL: sql, Params: params}

	var iter *spanner.RowIterator
	if c.tx != nil {
		iter = c.tx.Query(ctx, stmt)
	} else {
		iter = c.client.Single().Query(ctx, stmt)
	}

	row, err := iter.Next()
	if err == iterator.Done {
		return &Result{Fields: nil, Rows: &spannerRowIterator{done: true}}, nil
	}
	if err != nil {
		iter.Stop()
		return nil, fmt.Errorf("executing query: %w", err)
	}

	fields := make([]ResultField, row.Size())
	firstValues := make([]any, row.Size())
	for i := 0; i < row.Size(); i++ {
		var gcv spanner.GenericColumnValue
		if err := row.Column(i, &gcv); err != nil {
			iter.Stop()
			return nil, fmt.Errorf("decoding column %d: %w", i, err)
		}
		fields[i] = ResultField{Name: row.ColumnName(i), OID: uint32(oidForSpannerType(gcv.Type))}
		v, err := decodeColumn(gcv)
		if err != nil {
			iter.Stop()
			return nil, fmt.Errorf("decoding column %d: %w", i, err)
		}
		firstValues[i] = v
	}

	return &Result{
		Fields: fields,
		Rows:   &spannerRowIterator{iter: iter, firstValues: firstValues, hasFirst: true},
	}, nil
}

// Analyze runs sql just far enough to learn its result columns' wire types,
// then stops the underlying iterator without streaming any rows to the
// caller. Cloud Spanner's client library has no separate plan-only RPC, so
// this is Query's one real round trip with its RowIterator discarded
// immediately after the first row, rather than a true zero-execution dry
// run.
func (c *SpannerConnection) Analyze(ctx context.Context, sql string, params map[string]any) ([]ResultField, error) {
	result, err := c.Query(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	result.Rows.Stop()
	return result.Fields, nil
}

// spannerRowIterator adapts spanner.RowIterator to backend.RowIterator,
// decoding each spanner.Row into a []any of Go values via GenericColumnValue.
type spannerRowIterator struct {
	iter        *spanner.RowIterator
	firstValues []any
	hasFirst    bool
	done        bool
}

func (it *spannerRowIterator) Next() ([]any, error) {
	if it.done {
		return nil, ErrRowsDone
	}
	if it.hasFirst {
		it.hasFirst = false
		return it.firstValues, nil
	}

	row, err := it.iter.Next()
	if err == iterator.Done {
		it.done = true
		return nil, ErrRowsDone
	}
	if err != nil {
		return nil, fmt.Errorf("reading row: %w", err)
	}

	out := make([]any, row.Size())
	for i := 0; i < row.Size(); i++ {
		var gcv spanner.GenericColumnValue
		if err := row.Column(i, &gcv); err != nil {
			return nil, fmt.Errorf("decoding column %d: %w", i, err)
		}
		v, err := decodeColumn(gcv)
		if err != nil {
			return nil, fmt.Errorf("decoding column %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (it *spannerRowIterator) Stop() {
	if it.iter != nil {
		it.iter.Stop()
	}
}

// ErrRowsDone is returned by RowIterator.Next once exhausted.
var ErrRowsDone = fmt.Errorf("backend: no more rows")

func (c *SpannerConnection) Exec(ctx context.Context, sql string, params map[string]any) (*Update, error) {
	ctx, cancel := c.trackCancel(ctx)
	defer cancel()

	stmt := spanner.Statement{SQL: sql, Params: params}

	if c.tx != nil {
		n, err := c.tx.Update(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("executing update: %w", err)
		}
		return &Update{RowsAffected: n}, nil
	}

	if c.state.AutocommitDMLMode() == session.AutocommitDMLModePartitionedNonAtomic {
		n, err := c.client.PartitionedUpdate(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("executing partitioned update: %w", err)
		}
		return &Update{RowsAffected: n}, nil
	}

	var affected int64
	_, err := c.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		n, err := txn.Update(ctx, stmt)
		affected = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("executing autocommit update: %w", err)
	}
	return &Update{RowsAffected: affected}, nil
}

func (c *SpannerConnection) ApplyDDL(ctx context.Context, sql string) (*DDLAck, error) {
	ctx, cancel := c.trackCancel(ctx)
	defer cancel()

	op, err := c.adminClient.UpdateDatabaseDdl(ctx, &databasepb.UpdateDatabaseDdlRequest{
		Database:   c.databasePath,
		Statements: []string{sql},
	})
	if err != nil {
		return nil, fmt.Errorf("submitting DDL: %w", err)
	}
	if err := op.Wait(ctx); err != nil {
		return nil, fmt.Errorf("applying DDL: %w", err)
	}
	c.invalidateExistenceCaches()
	return &DDLAck{}, nil
}

func (c *SpannerConnection) BeginTx(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return fmt.Errorf("backend: transaction already in progress")
	}
	tx, err := spanner.NewReadWriteStmtBasedTransaction(ctx, c.client)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	c.tx = tx
	return nil
}

func (c *SpannerConnection) Commit(ctx context.Context) error {
	c.mu.Lock()
	tx := c.tx
	c.tx = nil
	c.mu.Unlock()
	if tx == nil {
		return nil
	}
	if _, err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (c *SpannerConnection) Rollback(ctx context.Context) error {
	c.mu.Lock()
	tx := c.tx
	c.tx = nil
	c.mu.Unlock()
	if tx == nil {
		return nil
	}
	tx.Rollback(ctx)
	return nil
}

func (c *SpannerConnection) BufferMutation(m Mutation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch m.Kind {
	case MutationDelete:
		c.pending = append(c.pending, spanner.Delete(m.Table, spanner.Key(m.Values)))
	default:
		c.pending = append(c.pending, spanner.InsertOrUpdate(m.Table, m.Columns, m.Values))
	}
}

// FlushMutations applies every buffered Mutation as one batch, per the COPY
// engine's periodic-commit contract.
func (c *SpannerConnection) FlushMutations(ctx context.Context) error {
	ctx, cancel := c.trackCancel(ctx)
	defer cancel()

	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if c.state.AutocommitDMLMode() == session.AutocommitDMLModePartitionedNonAtomic {
		// Partitioned non-atomic loads apply each mutation's effect via a
		// best-effort non-transactional Apply so arbitrarily large loads
		// don't hit a single transaction's mutation-count limit.
		_, err := c.client.Apply(ctx, batch, spanner.ApplyAtLeastOnce())
		if err != nil {
			return fmt.Errorf("applying partitioned mutation batch: %w", err)
		}
		return nil
	}

	_, err := c.client.Apply(ctx, batch)
	if err != nil {
		return fmt.Errorf("applying mutation batch: %w", err)
	}
	return nil
}

func (c *SpannerConnection) TableExists(name string) (bool, error) {
	c.mu.Lock()
	if v, ok := c.tableExistsCache[name]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	ctx := context.Background()
	ctx, cancel := c.trackCancel(ctx)
	defer cancel()

	iter := c.client.Single().Query(ctx, spanner.Statement{
		SQL:    "SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1",
		Params: map[string]any{"p1": strings.ToLower(name)},
	})
	defer iter.Stop()
	_, err := iter.Next()
	exists := err == nil
	if err != nil && err != iterator.Done {
		return false, fmt.Errorf("checking table existence: %w", err)
	}

	c.mu.Lock()
	c.tableExistsCache[name] = exists
	c.mu.Unlock()
	return exists, nil
}

func (c *SpannerConnection) IndexExists(name string) (bool, error) {
	c.mu.Lock()
	if v, ok := c.indexExistsCache[name]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	ctx := context.Background()
	ctx, cancel := c.trackCancel(ctx)
	defer cancel()

	iter := c.client.Single().Query(ctx, spanner.Statement{
		SQL:    "SELECT 1 FROM information_schema.indexes WHERE table_schema = 'public' AND index_name = $1",
		Params: map[string]any{"p1": strings.ToLower(name)},
	})
	defer iter.Stop()
	_, err := iter.Next()
	exists := err == nil
	if err != nil && err != iterator.Done {
		return false, fmt.Errorf("checking index existence: %w", err)
	}

	c.mu.Lock()
	c.indexExistsCache[name] = exists
	c.mu.Unlock()
	return exists, nil
}

// ColumnTypes resolves the wire OID of each named column of table by
// reading information_schema.columns' spanner_type text with one query per
// call; unlike TableExists/IndexExists above, the result is not cached. Columns
// the schema doesn't know about (or when table itself doesn't exist, e.g. a
// COPY into a table created earlier in the same statement batch) fall back
// to OIDText, letting the COPY engine keep decoding a row as plain text
// rather than failing the whole load over one unresolved column.
func (c *SpannerConnection) ColumnTypes(ctx context.Context, table string, columns []string) ([]values.OID, error) {
	ctx, cancel := c.trackCancel(ctx)
	defer cancel()

	iter := c.client.Single().Query(ctx, spanner.Statement{
		SQL:    "SELECT column_name, spanner_type FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1",
		Params: map[string]any{"p1": strings.ToLower(table)},
	})
	defer iter.Stop()

	byName := make(map[string]string)
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading column types: %w", err)
		}
		var name, spannerType string
		if err := row.Columns(&name, &spannerType); err != nil {
			return nil, fmt.Errorf("decoding column type row: %w", err)
		}
		byName[strings.ToLower(name)] = spannerType
	}

	oids := make([]values.OID, len(columns))
	for i, name := range columns {
		oids[i] = oidForSpannerTypeName(byName[strings.ToLower(name)])
	}
	return oids, nil
}

// TableColumns lists table's column names in declaration order, for a COPY
// statement that names only the table ("COPY foo FROM STDIN" with no
// column list).
func (c *SpannerConnection) TableColumns(ctx context.Context, table string) ([]string, error) {
	ctx, cancel := c.trackCancel(ctx)
	defer cancel()

	iter := c.client.Single().Query(ctx, spanner.Statement{
		SQL:    "SELECT column_name FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position",
		Params: map[string]any{"p1": strings.ToLower(table)},
	})
	defer iter.Stop()

	var names []string
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing table columns: %w", err)
		}
		var name string
		if err := row.Columns(&name); err != nil {
			return nil, fmt.Errorf("decoding column name row: %w", err)
		}
		names = append(names, name)
	}
	return names, nil
}

func (c *SpannerConnection) invalidateExistenceCaches() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableExistsCache = make(map[string]bool)
	c.indexExistsCache = make(map[string]bool)
}

func (c *SpannerConnection) Close(ctx context.Context) error {
	c.Cancel()
	if c.tx != nil {
		c.tx.Rollback(ctx)
	}
	c.client.Close()
	c.adminClient.Close()
	return nil
}
