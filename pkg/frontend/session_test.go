package frontend

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/backend"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/config"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/pgwire"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/session"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/values"
)

// testTimeout is the maximum time for a single test case.
const testTimeout = 5 * time.Second

const (
	testPID    = uint32(7)
	testSecret = uint32(42)
)

func testConfig() *config.Config {
	return &config.Config{
		Project:         "test-project",
		Instance:        "test-instance",
		DefaultDatabase: "testdb",
		TCPPort:         15432,
		DisableAuth:     true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConn wraps the client side of an in-memory connection to a running
// Session backed by a backend.Fake. It uses pgproto3.Frontend to send
// client messages and receive server responses.
type testConn struct {
	t    *testing.T
	conn net.Conn
	fe   *pgproto3.Frontend
	sess *Session
	fake *backend.Fake
}

// startSession spins up a Session over net.Pipe, wired to fake instead of a
// real Spanner connection, and returns the client side.
func startSession(t *testing.T, fake *backend.Fake) *testConn {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	require.NoError(t, clientConn.SetDeadline(time.Now().Add(testTimeout)))

	sess := NewSession(testPID, testSecret, serverConn, testConfig(), discardLogger())
	sess.newConnection = func(ctx context.Context, databasePath string, state *session.State) (backend.Connection, error) {
		return fake, nil
	}
	go sess.Run()

	t.Cleanup(func() {
		clientConn.Close()
		sess.Terminate()
	})
	return &testConn{
		t:    t,
		conn: clientConn,
		fe:   pgproto3.NewFrontend(clientConn, clientConn),
		sess: sess,
		fake: fake,
	}
}

func (c *testConn) flush() {
	c.t.Helper()
	require.NoError(c.t, c.fe.Flush())
}

func (c *testConn) receive() pgproto3.BackendMessage {
	c.t.Helper()
	msg, err := c.fe.Receive()
	require.NoError(c.t, err)
	return msg
}

// expect receives the next server message and requires it to be of type T.
func expect[T pgproto3.BackendMessage](c *testConn) T {
	c.t.Helper()
	msg := c.receive()
	typed, ok := msg.(T)
	require.True(c.t, ok, "expected %T, got %T: %v", *new(T), msg, msg)
	return typed
}

func (c *testConn) expectReadyForQuery(txStatus byte) {
	c.t.Helper()
	rfq := expect[*pgproto3.ReadyForQuery](c)
	assert.Equal(c.t, txStatus, rfq.TxStatus)
}

func (c *testConn) expectCommandComplete(tag string) {
	c.t.Helper()
	cc := expect[*pgproto3.CommandComplete](c)
	assert.Equal(c.t, tag, string(cc.CommandTag))
}

func (c *testConn) expectError(sqlstate string) {
	c.t.Helper()
	er := expect[*pgproto3.ErrorResponse](c)
	assert.Equal(c.t, sqlstate, er.Code)
}

// startup performs the startup handshake and consumes everything up to the
// first ReadyForQuery, returning the ParameterStatus values sent.
func (c *testConn) startup(parameters map[string]string) map[string]string {
	c.t.Helper()
	if parameters == nil {
		parameters = map[string]string{}
	}
	if parameters["user"] == "" {
		parameters["user"] = "alice"
	}
	if parameters["database"] == "" {
		parameters["database"] = "testdb"
	}
	c.fe.Send(&pgproto3.StartupMessage{
		ProtocolVersion: pgproto3.ProtocolVersionNumber,
		Parameters:      parameters,
	})
	c.flush()

	expect[*pgproto3.AuthenticationOk](c)

	statuses := map[string]string{}
	for {
		msg := c.receive()
		switch m := msg.(type) {
		case *pgproto3.ParameterStatus:
			statuses[m.Name] = m.Value
		case *pgproto3.BackendKeyData:
			assert.Equal(c.t, testPID, m.ProcessID)
			assert.Equal(c.t, testSecret, m.SecretKey)
		case *pgproto3.ReadyForQuery:
			assert.Equal(c.t, byte(pgwire.TxIdle), m.TxStatus)
			return statuses
		default:
			c.t.Fatalf("unexpected startup message %T: %v", msg, msg)
		}
	}
}

func (c *testConn) query(sql string) {
	c.t.Helper()
	c.fe.Send(&pgproto3.Query{String: sql})
	c.flush()
}

// selectOneFake registers "SELECT 1" with a single int4 row.
func selectOneFake() *backend.Fake {
	fake := backend.NewFake()
	fake.Queries["SELECT 1"] = &backend.Result{
		Fields: []backend.ResultField{{Name: "", OID: uint32(values.OIDInt4)}},
		Rows:   backend.NewFakeRows([][]any{{int64(1)}}),
	}
	return fake
}

func TestStartupHandshake(t *testing.T) {
	c := startSession(t, backend.NewFake())
	statuses := c.startup(map[string]string{"application_name": "psql"})

	assert.Equal(t, "14.1", statuses["server_version"])
	assert.Equal(t, "on", statuses["integer_datetimes"])
	assert.Equal(t, "UTF8", statuses["server_encoding"])
	assert.Equal(t, "UTF8", statuses["client_encoding"])
	assert.Equal(t, "ISO,YMD", statuses["DateStyle"])
	assert.Equal(t, "iso_8601", statuses["IntervalStyle"])
	assert.Equal(t, "on", statuses["standard_conforming_strings"])
	assert.Equal(t, "psql", statuses["application_name"])
	assert.Equal(t, "alice", statuses["session_authorization"])
}

func TestSimpleQuerySelect(t *testing.T) {
	c := startSession(t, selectOneFake())
	c.startup(nil)

	c.query("SELECT 1")

	rd := expect[*pgproto3.RowDescription](c)
	require.Len(t, rd.Fields, 1)
	assert.Equal(t, "?column?", string(rd.Fields[0].Name))
	assert.Equal(t, uint32(values.OIDInt4), rd.Fields[0].DataTypeOID)

	dr := expect[*pgproto3.DataRow](c)
	require.Len(t, dr.Values, 1)
	assert.Equal(t, "1", string(dr.Values[0]))

	c.expectCommandComplete("SELECT 1")
	c.expectReadyForQuery('I')
}

func TestSimpleQueryBatch(t *testing.T) {
	c := startSession(t, selectOneFake())
	c.startup(nil)

	c.query("SELECT 1; SELECT 1")

	for i := 0; i < 2; i++ {
		expect[*pgproto3.RowDescription](c)
		expect[*pgproto3.DataRow](c)
		c.expectCommandComplete("SELECT 1")
	}
	c.expectReadyForQuery('I')
}

func TestEmptyQuery(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.query("")
	expect[*pgproto3.EmptyQueryResponse](c)
	c.expectReadyForQuery('I')
}

func TestExtendedQueryFlow(t *testing.T) {
	fake := backend.NewFake()
	fake.Queries["SELECT $1::int"] = &backend.Result{
		Fields: []backend.ResultField{{Name: "", OID: uint32(values.OIDInt4)}},
		Rows:   backend.NewFakeRows([][]any{{int64(42)}}),
	}
	c := startSession(t, fake)
	c.startup(nil)

	c.fe.Send(&pgproto3.Parse{Query: "SELECT $1::int", ParameterOIDs: []uint32{uint32(values.OIDInt4)}})
	c.fe.Send(&pgproto3.Bind{Parameters: [][]byte{[]byte("42")}})
	c.fe.Send(&pgproto3.Execute{})
	c.fe.Send(&pgproto3.Sync{})
	c.flush()

	expect[*pgproto3.ParseComplete](c)
	expect[*pgproto3.BindComplete](c)
	rd := expect[*pgproto3.RowDescription](c)
	require.Len(t, rd.Fields, 1)
	dr := expect[*pgproto3.DataRow](c)
	assert.Equal(t, "42", string(dr.Values[0]))
	c.expectCommandComplete("SELECT 1")
	c.expectReadyForQuery('I')
}

func TestExtendedQueryDescribePortal(t *testing.T) {
	fake := backend.NewFake()
	fake.Queries["SELECT id FROM t"] = &backend.Result{
		Fields: []backend.ResultField{{Name: "id", OID: uint32(values.OIDInt8)}},
		Rows:   backend.NewFakeRows([][]any{{int64(5)}}),
	}
	c := startSession(t, fake)
	c.startup(nil)

	c.fe.Send(&pgproto3.Parse{Query: "SELECT id FROM t"})
	c.fe.Send(&pgproto3.Bind{})
	c.fe.Send(&pgproto3.Describe{ObjectType: 'P'})
	c.fe.Send(&pgproto3.Execute{})
	c.fe.Send(&pgproto3.Sync{})
	c.flush()

	expect[*pgproto3.ParseComplete](c)
	expect[*pgproto3.BindComplete](c)
	rd := expect[*pgproto3.RowDescription](c)
	assert.Equal(t, "id", string(rd.Fields[0].Name))
	// Execute must not repeat the RowDescription the Describe already sent.
	dr := expect[*pgproto3.DataRow](c)
	assert.Equal(t, "5", string(dr.Values[0]))
	c.expectCommandComplete("SELECT 1")
	c.expectReadyForQuery('I')
}

func TestDescribeStatementDML(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.fe.Send(&pgproto3.Parse{Name: "ins", Query: "INSERT INTO t (id) VALUES ($1)", ParameterOIDs: []uint32{uint32(values.OIDInt8)}})
	c.fe.Send(&pgproto3.Describe{ObjectType: 'S', Name: "ins"})
	c.fe.Send(&pgproto3.Sync{})
	c.flush()

	expect[*pgproto3.ParseComplete](c)
	pd := expect[*pgproto3.ParameterDescription](c)
	require.Len(t, pd.ParameterOIDs, 1)
	assert.Equal(t, uint32(values.OIDInt8), pd.ParameterOIDs[0])
	expect[*pgproto3.NoData](c)
	c.expectReadyForQuery('I')
}

func TestSyncWindowSingleErrorThenSkip(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	// Bind against a statement that was never parsed, then keep going
	// inside the same Sync window: only one ErrorResponse may come back.
	c.fe.Send(&pgproto3.Bind{PreparedStatement: "nope"})
	c.fe.Send(&pgproto3.Execute{})
	c.fe.Send(&pgproto3.Bind{PreparedStatement: "nope"})
	c.fe.Send(&pgproto3.Sync{})
	c.flush()

	c.expectError(pgwire.CodeInvalidSQLStatementName)
	c.expectReadyForQuery('I')
}

func TestSyncWindowRecoversAfterSync(t *testing.T) {
	c := startSession(t, selectOneFake())
	c.startup(nil)

	c.fe.Send(&pgproto3.Bind{PreparedStatement: "nope"})
	c.fe.Send(&pgproto3.Sync{})
	c.flush()
	c.expectError(pgwire.CodeInvalidSQLStatementName)
	c.expectReadyForQuery('I')

	// The next window works normally again.
	c.fe.Send(&pgproto3.Parse{Query: "SELECT 1"})
	c.fe.Send(&pgproto3.Bind{})
	c.fe.Send(&pgproto3.Execute{})
	c.fe.Send(&pgproto3.Sync{})
	c.flush()
	expect[*pgproto3.ParseComplete](c)
	expect[*pgproto3.BindComplete](c)
	expect[*pgproto3.RowDescription](c)
	expect[*pgproto3.DataRow](c)
	c.expectCommandComplete("SELECT 1")
	c.expectReadyForQuery('I')
}

func TestParseDuplicateStatementName(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.fe.Send(&pgproto3.Parse{Name: "s1", Query: "SELECT 1"})
	c.fe.Send(&pgproto3.Parse{Name: "s1", Query: "SELECT 2"})
	c.fe.Send(&pgproto3.Sync{})
	c.flush()

	expect[*pgproto3.ParseComplete](c)
	c.expectError(pgwire.CodeDuplicatePreparedStatement)
	c.expectReadyForQuery('I')
}

func TestBindParameterCountMismatch(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.fe.Send(&pgproto3.Parse{Query: "SELECT $1::int", ParameterOIDs: []uint32{uint32(values.OIDInt4)}})
	c.fe.Send(&pgproto3.Bind{})
	c.fe.Send(&pgproto3.Sync{})
	c.flush()

	expect[*pgproto3.ParseComplete](c)
	c.expectError(pgwire.CodeProtocolViolation)
	c.expectReadyForQuery('I')
}

func TestBindValueDecodeError(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.fe.Send(&pgproto3.Parse{Query: "SELECT $1::int", ParameterOIDs: []uint32{uint32(values.OIDInt4)}})
	c.fe.Send(&pgproto3.Bind{Parameters: [][]byte{[]byte("not-a-number")}})
	c.fe.Send(&pgproto3.Execute{})
	c.fe.Send(&pgproto3.Sync{})
	c.flush()

	expect[*pgproto3.ParseComplete](c)
	expect[*pgproto3.BindComplete](c)
	c.expectError(pgwire.CodeInvalidTextRepresentation)
	c.expectReadyForQuery('I')
}

func TestClosePortalAndStatement(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.fe.Send(&pgproto3.Parse{Name: "s1", Query: "SELECT 1"})
	c.fe.Send(&pgproto3.Close{ObjectType: 'S', Name: "s1"})
	c.fe.Send(&pgproto3.Close{ObjectType: 'S', Name: "never-existed"})
	c.fe.Send(&pgproto3.Sync{})
	c.flush()

	expect[*pgproto3.ParseComplete](c)
	expect[*pgproto3.CloseComplete](c)
	expect[*pgproto3.CloseComplete](c)
	c.expectReadyForQuery('I')
}

func TestDDLIfNotExistsSkipsWhenTableExists(t *testing.T) {
	fake := backend.NewFake()
	fake.Tables["foo"] = true
	c := startSession(t, fake)
	c.startup(nil)

	c.query("create table if not exists foo (id bigint primary key)")

	c.expectCommandComplete("CREATE TABLE")
	c.expectReadyForQuery('I')
	assert.Empty(t, fake.ExecutedDDL, "backend must not receive DDL for an existing table")
}

func TestDDLIfNotExistsStripsWhenTableMissing(t *testing.T) {
	fake := backend.NewFake()
	c := startSession(t, fake)
	c.startup(nil)

	c.query("create table if not exists foo (id bigint primary key)")

	c.expectCommandComplete("CREATE TABLE")
	c.expectReadyForQuery('I')
	require.Len(t, fake.ExecutedDDL, 1)
	assert.Equal(t, "create table foo (id bigint primary key)", fake.ExecutedDDL[0])
}

func TestTransactionStatusByte(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.query("BEGIN")
	c.expectCommandComplete("BEGIN")
	c.expectReadyForQuery('T')

	c.query("COMMIT")
	c.expectCommandComplete("COMMIT")
	c.expectReadyForQuery('I')

	assert.False(t, c.fake.InTx)
}

func TestSetShowRoundTrip(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.query("SET application_name = 'myapp'")
	ps := expect[*pgproto3.ParameterStatus](c)
	assert.Equal(t, "application_name", ps.Name)
	assert.Equal(t, "myapp", ps.Value)
	c.expectCommandComplete("SET")
	c.expectReadyForQuery('I')

	c.query("SHOW application_name")
	expect[*pgproto3.RowDescription](c)
	dr := expect[*pgproto3.DataRow](c)
	assert.Equal(t, "myapp", string(dr.Values[0]))
	c.expectCommandComplete("SHOW")
	c.expectReadyForQuery('I')
}

func TestSetLocalRevertsAndReportsAtCommit(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.query("BEGIN")
	c.expectCommandComplete("BEGIN")
	c.expectReadyForQuery('T')

	c.query("SET LOCAL TimeZone = 'America/New_York'")
	ps := expect[*pgproto3.ParameterStatus](c)
	assert.Equal(t, "TimeZone", ps.Name)
	assert.Equal(t, "America/New_York", ps.Value)
	c.expectCommandComplete("SET")
	c.expectReadyForQuery('T')

	// COMMIT reverts the LOCAL override and reports the restored value.
	c.query("COMMIT")
	ps = expect[*pgproto3.ParameterStatus](c)
	assert.Equal(t, "TimeZone", ps.Name)
	assert.Equal(t, "UTC", ps.Value)
	c.expectCommandComplete("COMMIT")
	c.expectReadyForQuery('I')
}

func TestSetVendorSetting(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.query("SET spanner.autocommit_dml_mode = 'partitioned_non_atomic'")
	c.expectCommandComplete("SET")
	c.expectReadyForQuery('I')

	c.query("SHOW spanner.autocommit_dml_mode")
	expect[*pgproto3.RowDescription](c)
	dr := expect[*pgproto3.DataRow](c)
	assert.Equal(t, "partitioned_non_atomic", string(dr.Values[0]))
	c.expectCommandComplete("SHOW")
	c.expectReadyForQuery('I')
}

func TestSetUnknownParameterRejected(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	c.query("SET definitely_not_a_parameter = 'x'")
	c.expectError(pgwire.CodeUndefinedParameter)
	c.expectReadyForQuery('I')
}

func copyTestFake() *backend.Fake {
	fake := backend.NewFake()
	fake.ColumnOrder = map[string][]string{"k": {"id", "value"}}
	fake.Columns = map[string]map[string]values.OID{
		"k": {"id": values.OIDInt8, "value": values.OIDText},
	}
	return fake
}

func TestCopyStreamAcrossChunks(t *testing.T) {
	fake := copyTestFake()
	c := startSession(t, fake)
	c.startup(nil)

	c.query("COPY k FROM STDIN")
	cir := expect[*pgproto3.CopyInResponse](c)
	require.Len(t, cir.ColumnFormatCodes, 2)

	// Row boundaries deliberately do not line up with chunk boundaries.
	for _, chunk := range []string{"1\t'one'\n2\t", "'two'\n3\t'th", "ree'\n4\t'four'\n"} {
		c.fe.Send(&pgproto3.CopyData{Data: []byte(chunk)})
	}
	c.fe.Send(&pgproto3.CopyDone{})
	c.flush()

	c.expectCommandComplete("COPY 4")
	c.expectReadyForQuery('I')

	require.Len(t, fake.Mutations, 4)
	wantValues := []string{"'one'", "'two'", "'three'", "'four'"}
	for i, m := range fake.Mutations {
		assert.Equal(t, "k", m.Table)
		assert.Equal(t, []string{"id", "value"}, m.Columns)
		assert.Equal(t, int64(i+1), m.Values[0])
		assert.Equal(t, wantValues[i], m.Values[1])
	}
}

func TestCopyIgnoresFlushAndSync(t *testing.T) {
	fake := copyTestFake()
	c := startSession(t, fake)
	c.startup(nil)

	c.query("COPY k FROM STDIN")
	expect[*pgproto3.CopyInResponse](c)

	// JDBC-style interleaving: Flush/Sync during COPY_IN must produce no
	// output at all.
	c.fe.Send(&pgproto3.Flush{})
	c.fe.Send(&pgproto3.Sync{})
	c.fe.Send(&pgproto3.CopyData{Data: []byte("1\tx\n")})
	c.fe.Send(&pgproto3.CopyDone{})
	c.flush()

	c.expectCommandComplete("COPY 1")
	c.expectReadyForQuery('I')
	require.Len(t, fake.Mutations, 1)
}

func TestCopyFailDiscardsBatch(t *testing.T) {
	fake := copyTestFake()
	c := startSession(t, fake)
	c.startup(nil)

	c.query("COPY k FROM STDIN")
	expect[*pgproto3.CopyInResponse](c)

	c.fe.Send(&pgproto3.CopyFail{Message: "client changed its mind"})
	c.flush()

	c.expectError(pgwire.CodeQueryCanceled)
	c.expectReadyForQuery('I')
	assert.Empty(t, fake.Mutations)

	// The connection is usable again afterwards.
	c.query("BEGIN")
	c.expectCommandComplete("BEGIN")
	c.expectReadyForQuery('T')
}

func TestInvalidMessageThrottling(t *testing.T) {
	c := startSession(t, backend.NewFake())
	c.startup(nil)

	// CopyData outside COPY_IN is rejected with an ErrorResponse each time;
	// the connection survives exactly MaxInvalidMessageCount of them.
	for i := 0; i < pgwire.MaxInvalidMessageCount; i++ {
		c.fe.Send(&pgproto3.CopyData{Data: []byte("x")})
		c.flush()
		c.expectError(pgwire.CodeProtocolViolation)
	}

	c.fe.Send(&pgproto3.CopyData{Data: []byte("x")})
	c.flush()
	c.expectError(pgwire.CodeProtocolViolation)

	_, err := c.fe.Receive()
	require.Error(t, err, "connection must be terminated after exceeding the invalid-message budget")
}

func TestCancelDuringQuery(t *testing.T) {
	fake := backend.NewFake()
	sig := make(chan struct{})
	fake.CancelSignal = sig
	fake.QueryFunc = func(ctx context.Context, sql string, params map[string]any) (*backend.Result, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-sig:
			return nil, context.Canceled
		}
	}
	c := startSession(t, fake)
	c.startup(nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		c.sess.Cancel()
	}()

	c.query("SELECT pg_sleep(3600)")
	c.expectError(pgwire.CodeQueryCanceled)
	c.expectReadyForQuery('I')
	assert.True(t, fake.Canceled)
}

func TestStatementTimeout(t *testing.T) {
	fake := backend.NewFake()
	fake.QueryFunc = func(ctx context.Context, sql string, params map[string]any) (*backend.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c := startSession(t, fake)
	c.startup(nil)

	c.query("SET statement_timeout = '50'")
	c.expectCommandComplete("SET")
	c.expectReadyForQuery('I')

	c.query("SELECT pg_sleep(3600)")
	er := expect[*pgproto3.ErrorResponse](c)
	assert.Equal(t, pgwire.CodeQueryCanceled, er.Code)
	assert.Contains(t, er.Message, "statement timeout")
	c.expectReadyForQuery('I')
}

func TestCancelRequestInvokesHandler(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	require.NoError(t, clientConn.SetDeadline(time.Now().Add(testTimeout)))
	t.Cleanup(func() { clientConn.Close() })

	sess := NewSession(testPID, testSecret, serverConn, testConfig(), discardLogger())
	got := make(chan [2]uint32, 1)
	sess.SetCancelHandler(func(pid, secret uint32) {
		got <- [2]uint32{pid, secret}
	})
	go sess.Run()
	t.Cleanup(sess.Terminate)

	fe := pgproto3.NewFrontend(clientConn, clientConn)
	fe.Send(&pgproto3.CancelRequest{ProcessID: 99, SecretKey: 1234})
	require.NoError(t, fe.Flush())

	select {
	case pair := <-got:
		assert.Equal(t, uint32(99), pair[0])
		assert.Equal(t, uint32(1234), pair[1])
	case <-time.After(testTimeout):
		t.Fatal("cancel handler was not invoked")
	}
}

func TestSSLRequestDeclinedWithoutTLS(t *testing.T) {
	c := startSession(t, selectOneFake())

	// Raw bootstrap frame: length 8, SSLRequest code 80877103.
	var frame [8]byte
	binary.BigEndian.PutUint32(frame[0:4], 8)
	binary.BigEndian.PutUint32(frame[4:8], 80877103)
	_, err := c.conn.Write(frame[:])
	require.NoError(t, err)

	var reply [1]byte
	_, err = io.ReadFull(c.conn, reply[:])
	require.NoError(t, err)
	assert.Equal(t, byte('N'), reply[0])

	// Plaintext startup proceeds normally after the decline.
	c.startup(nil)
	c.query("SELECT 1")
	expect[*pgproto3.RowDescription](c)
	expect[*pgproto3.DataRow](c)
	c.expectCommandComplete("SELECT 1")
	c.expectReadyForQuery('I')
}

func TestDuplicateSSLRequestTerminates(t *testing.T) {
	c := startSession(t, backend.NewFake())

	var frame [8]byte
	binary.BigEndian.PutUint32(frame[0:4], 8)
	binary.BigEndian.PutUint32(frame[4:8], 80877103)

	_, err := c.conn.Write(frame[:])
	require.NoError(t, err)
	var reply [1]byte
	_, err = io.ReadFull(c.conn, reply[:])
	require.NoError(t, err)

	// A second SSLRequest on the same connection is a protocol violation.
	_, err = c.conn.Write(frame[:])
	if err == nil {
		_, err = io.ReadFull(c.conn, reply[:])
	}
	require.Error(t, err, "connection must close after a duplicate SSLRequest")
}

func TestDMLCommandTags(t *testing.T) {
	fake := backend.NewFake()
	fake.Updates["INSERT INTO t (id) VALUES (1)"] = &backend.Update{RowsAffected: 1}
	fake.Updates["UPDATE t SET v = 2"] = &backend.Update{RowsAffected: 3}
	c := startSession(t, fake)
	c.startup(nil)

	c.query("INSERT INTO t (id) VALUES (1)")
	c.expectCommandComplete("INSERT 0 1")
	c.expectReadyForQuery('I')

	c.query("UPDATE t SET v = 2")
	c.expectCommandComplete("UPDATE 3")
	c.expectReadyForQuery('I')
}
