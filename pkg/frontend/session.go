package frontend

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgproto3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/backend"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/config"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/observability"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/params"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/pgwire"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/session"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/sqlparser"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/stmtcache"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/values"
)

// Status is the Connection's lifecycle state.
type Status int

const (
	StatusUnauthenticated Status = iota
	StatusAuthenticated
	StatusCopyIn
	StatusTerminated
)

// newConnectionFactory lets tests substitute a fake backend.Connection in
// place of dialing Spanner for real.
type newConnectionFactory func(ctx context.Context, databasePath string, state *session.State) (backend.Connection, error)

// Session is one client connection's full state: wire I/O, session GUCs,
// the statement/portal cache, the backend adapter, and (while COPY_IN) the
// active copy stream. It owns everything transitively and is dropped on
// terminate.
//
// There is no second wire-protocol peer to multiplex against: the backend
// is an abstract backend.Connection called synchronously, so one goroutine
// per client connection reads, dispatches, and replies, with no dual-reader
// channel plumbing.
type Session struct {
	id     uint32
	secret uint32

	conn     net.Conn
	logger   *slog.Logger
	cfg      *config.Config
	frontend Frontend

	ctx    context.Context
	cancel context.CancelFunc

	sync    syncWindow
	invalid pgwire.InvalidMessageCounter

	startupParameters map[string]string
	databaseName      string
	userName          string

	state *session.State
	stmts *stmtcache.Cache
	be    backend.Connection

	// reportedParams is the tracked-parameter view the client last saw via
	// ParameterStatus messages, diffed after SET/RESET/transaction end.
	reportedParams params.ParameterStatuses

	newConnection newConnectionFactory

	metrics *observability.Metrics
	tracer  trace.Tracer

	status    Status
	txStatus  pgwire.TxStatus
	connected bool

	sslNegotiated bool

	copy *copySession

	// onCancelRequest, when set by the Server, routes a bootstrap
	// CancelRequest's (pid, secret) to the registry. Left nil in unit
	// tests that construct a bare Session directly.
	onCancelRequest func(pid, secret uint32)
}

// NewSession wraps an accepted net.Conn into a Session ready to Run.
func NewSession(id, secret uint32, conn net.Conn, cfg *config.Config, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:     id,
		secret: secret,
		conn:   conn,
		logger: logger,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		stmts:  stmtcache.New(),
		newConnection: func(ctx context.Context, databasePath string, state *session.State) (backend.Connection, error) {
			return backend.NewSpannerConnection(ctx, databasePath, state)
		},
		tracer:   otel.Tracer("pgadapter/frontend"),
		txStatus: pgwire.TxIdle,
	}
}

// Cancel is invoked by the Server when a matching CancelRequest arrives.
// It is idempotent and best-effort: it aborts any in-flight backend call
// but does not itself tear down the protocol state machine.
func (s *Session) Cancel() {
	if s.be != nil {
		s.be.Cancel()
	}
}

// Terminate forcibly closes the connection, used by tests and by the
// server on shutdown.
func (s *Session) Terminate() {
	s.cancel()
	s.conn.Close()
}

// Run drives the connection's full lifecycle: bootstrap, authenticate,
// then dispatch messages until Terminate, EOF, or a fatal error.
func (s *Session) Run() {
	defer s.close()

	be := pgproto3.NewBackend(s.conn, s.conn)
	s.frontend = NewFrontend(s.ctx, be)

	startup, err := s.handleBootstrap()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Debug("bootstrap failed", "error", err)
		}
		return
	}
	if startup == nil {
		// CancelRequest connection: nothing further to do.
		return
	}

	if err := s.completeStartup(startup); err != nil {
		s.sendFatal(err)
		return
	}

	s.logger = s.logger.With("user", s.userName, "database", s.databaseName, "pid", s.id)
	enableTracing(s.ctx, s.logger, s.frontend.Backend)

	if err := s.authenticate(); err != nil {
		s.sendFatal(err)
		return
	}
	s.status = StatusAuthenticated

	be2, err := s.newConnection(s.ctx, s.cfg.DatabasePath(s.databaseName), s.state)
	if err != nil {
		s.sendFatal(pgwire.NewErr(pgwire.ErrorFatal, pgwire.CodeInternalError, "failed to connect to backend", err))
		return
	}
	s.be = be2

	s.metrics.RecordClientConnection(s.databaseName, s.userName)
	s.connected = true

	if err := s.sendInitialParameterStatuses(); err != nil {
		return
	}
	if err := s.sendBackendKeyData(); err != nil {
		return
	}
	if err := s.sendReadyForQuery(); err != nil {
		return
	}

	for s.status != StatusTerminated {
		msg, err := s.frontend.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				s.logger.Debug("receive failed", "error", err)
			}
			return
		}
		if s.dispatch(msg) {
			return
		}
	}
}

func (s *Session) close() {
	s.status = StatusTerminated
	s.cancel()
	if s.connected {
		s.metrics.RecordClientDisconnect(s.databaseName, s.userName)
		s.connected = false
	}
	if s.be != nil {
		s.be.Close(context.Background())
	}
	s.conn.Close()
}

// handleBootstrap negotiates SSLRequest/GSSEncRequest and returns the
// eventual StartupMessage, or (nil, nil) if this connection turned out to
// be a CancelRequest (already handled via onCancelRequest).
func (s *Session) handleBootstrap() (*pgproto3.StartupMessage, error) {
	for {
		msg, err := s.frontend.Backend.ReceiveStartupMessage()
		if err != nil {
			return nil, err
		}
		switch m := msg.(type) {
		case *pgproto3.StartupMessage:
			if s.cfg.TLS.Required() && !s.sslNegotiated {
				return nil, pgwire.NewErr(pgwire.ErrorFatal, pgwire.CodeInvalidAuthorizationSpec, "connection requires SSL", nil)
			}
			return m, nil
		case *pgproto3.SSLRequest:
			if err := s.handleSSLRequest(); err != nil {
				return nil, err
			}
		case *pgproto3.GSSEncRequest:
			if _, err := s.conn.Write([]byte{'N'}); err != nil {
				return nil, err
			}
		case *pgproto3.CancelRequest:
			s.handleCancelRequest(m)
			return nil, nil
		default:
			return nil, pgwire.NewProtocolViolation("unexpected bootstrap message %T", msg)
		}
	}
}

// handleCancelRequest routes a bootstrap CancelRequest's (pid, secret) to
// whatever handler the Server registered via SetCancelHandler.
func (s *Session) handleCancelRequest(m *pgproto3.CancelRequest) {
	if s.onCancelRequest != nil {
		s.onCancelRequest(m.ProcessID, m.SecretKey)
	}
}

// SetCancelHandler wires this Session's bootstrap CancelRequest handling
// to the Server's (connectionId, secret) registry.
func (s *Session) SetCancelHandler(f func(pid, secret uint32)) {
	s.onCancelRequest = f
}

// handleSSLRequest answers the one SSLRequest a client may send before its
// StartupMessage with 'S' (proceed with TLS) or 'N' (plaintext). A second
// SSLRequest on the same connection is a protocol violation.
func (s *Session) handleSSLRequest() error {
	if s.sslNegotiated {
		return pgwire.NewProtocolViolation("duplicate SSLRequest")
	}
	s.sslNegotiated = true

	if !s.cfg.TLS.Enabled() {
		_, err := s.conn.Write([]byte{'N'})
		return err
	}

	if _, err := s.conn.Write([]byte{'S'}); err != nil {
		return err
	}

	tlsResult, err := s.cfg.TLS.NewTLS()
	if err != nil {
		return err
	}
	tlsConn := tls.Server(s.conn, tlsResult.Config)
	if err := tlsConn.HandshakeContext(s.ctx); err != nil {
		return fmt.Errorf("TLS handshake: %w", err)
	}
	s.conn = tlsConn
	s.frontend = NewFrontend(s.ctx, pgproto3.NewBackend(s.conn, s.conn))
	return nil
}

func (s *Session) completeStartup(startup *pgproto3.StartupMessage) error {
	s.startupParameters = startup.Parameters
	s.databaseName = startup.Parameters["database"]
	s.userName = startup.Parameters["user"]
	if s.databaseName == "" {
		s.databaseName = s.userName
	}

	s.state = session.NewState()
	if err := s.state.ApplyStartupParameters(startup.Parameters); err != nil {
		return err
	}
	return nil
}

// authenticate implements the minimal trust/cleartext boundary: with -x,
// every connection is trusted; otherwise a cleartext password is required
// but not checked against any credential store, since PGAdapter has none to
// check against. Credentials for the backend come from Application Default
// Credentials, never from the client.
func (s *Session) authenticate() error {
	if s.cfg.DisableAuth {
		return s.frontendSendFlush(&pgproto3.AuthenticationOk{})
	}

	if err := s.frontendSendFlush(&pgproto3.AuthenticationCleartextPassword{}); err != nil {
		return err
	}
	msg, err := s.frontend.Receive()
	if err != nil {
		return err
	}
	pw, ok := msg.(*pgproto3.PasswordMessage)
	if !ok {
		return pgwire.NewProtocolViolation("expected PasswordMessage, got %T", msg)
	}
	if pw.Password == "" {
		return pgwire.NewErr(pgwire.ErrorFatal, pgwire.CodeInvalidAuthorizationSpec, "password authentication failed", nil)
	}
	return s.frontendSendFlush(&pgproto3.AuthenticationOk{})
}

func (s *Session) frontendSendFlush(msg pgproto3.BackendMessage) error {
	s.frontend.Send(msg)
	return s.frontend.Flush()
}

func (s *Session) sendBackendKeyData() error {
	return s.frontendSendFlush(&pgproto3.BackendKeyData{ProcessID: s.id, SecretKey: s.secret})
}

func (s *Session) sendInitialParameterStatuses() error {
	statuses := maps.Clone(params.BaseParameterStatuses)
	statuses[params.ParamServerVersion] = "14.1"
	statuses[params.ParamApplicationName] = s.startupParameters["application_name"]
	statuses[params.ParamSessionAuthorization] = s.userName
	if ce, ok := s.startupParameters["client_encoding"]; ok {
		statuses[params.ParamClientEncoding] = ce
	} else {
		statuses[params.ParamClientEncoding] = "UTF8"
	}
	if tz, ok := s.state.Get("TimeZone"); ok {
		statuses[params.ParamTimeZone] = tz
	}
	s.reportedParams = params.ParameterStatuses{}
	for _, name := range params.BaseTrackedParameters {
		v, ok := statuses[name]
		if !ok {
			continue
		}
		// Keep the GUC table in step with what the client was told, so
		// later SET/RESET diffs start from the reported values.
		s.state.Set(session.ContextSession, name, v)
		s.reportedParams[name] = v
		s.frontend.Send(&pgproto3.ParameterStatus{Name: name, Value: v})
	}
	return s.frontend.Flush()
}

// reportParameterStatusChanges sends a ParameterStatus message for every
// tracked parameter whose active value changed since the client last heard
// about it, as real PostgreSQL does after SET, RESET, and transaction end.
func (s *Session) reportParameterStatusChanges() {
	tip := params.ParameterStatuses{}
	for _, name := range params.BaseTrackedParameters {
		if v, ok := s.state.Get(name); ok {
			tip[name] = v
		}
	}
	for name, v := range s.reportedParams.DiffToTip(tip) {
		if v == nil {
			continue
		}
		s.frontend.Send(&pgproto3.ParameterStatus{Name: name, Value: *v})
	}
	s.reportedParams = tip
}

func (s *Session) sendReadyForQuery() error {
	return s.frontendSendFlush(&pgproto3.ReadyForQuery{TxStatus: byte(s.txStatus)})
}

func (s *Session) sendError(err error) error {
	pe := asErr(err)
	s.metrics.RecordError(pe.Code)
	s.frontend.Send(&pe.ErrorResponse)
	return s.frontend.Flush()
}

func (s *Session) sendFatal(err error) {
	s.sendError(err)
}

// asErr coerces any error into a pgwire.Err, defaulting to an internal
// error so every failure path still produces a well-formed ErrorResponse.
func asErr(err error) *pgwire.Err {
	var pe *pgwire.Err
	if errors.As(err, &pe) {
		return pe
	}
	return pgwire.NewErr(pgwire.Error, pgwire.CodeInternalError, err.Error(), err)
}

// dispatch handles one frontend message and reports whether the
// connection should terminate.
func (s *Session) dispatch(msg pgproto3.FrontendMessage) (terminate bool) {
	if s.status == StatusCopyIn {
		return s.dispatchCopy(msg)
	}

	switch m := msg.(type) {
	case *pgproto3.Query:
		s.runSimpleQuery(m.String)
		return false
	case *pgproto3.Parse:
		s.handleParse(m)
		return false
	case *pgproto3.Bind:
		s.handleBind(m)
		return false
	case *pgproto3.Describe:
		s.handleDescribe(m)
		return false
	case *pgproto3.Execute:
		s.handleExecute(m)
		return false
	case *pgproto3.Sync:
		s.handleSync()
		return false
	case *pgproto3.Flush:
		s.handleFlush()
		return false
	case *pgproto3.Close:
		s.handleClose(m)
		return false
	case *pgproto3.Terminate:
		return true
	case *pgproto3.CopyData, *pgproto3.CopyDone, *pgproto3.CopyFail:
		s.recordInvalid(fmt.Sprintf("%T outside COPY_IN", msg))
		return s.invalid.Incr()
	default:
		s.recordInvalid(fmt.Sprintf("unrecognized message %T", msg))
		return s.invalid.Incr()
	}
}

// recordInvalid sends an ErrorResponse for a protocol/mode violation
// without touching the Sync window.
func (s *Session) recordInvalid(detail string) {
	s.metrics.RecordInvalidMessage()
	s.sendError(pgwire.NewErr(pgwire.Error, pgwire.CodeProtocolViolation, detail, nil))
}

// runSimpleQuery implements the simple-query protocol: split on unquoted
// semicolons, run each in turn, and always end with exactly one
// ReadyForQuery even if a statement fails. A COPY that
// takes over the stream defers that ReadyForQuery until CopyDone/CopyFail.
func (s *Session) runSimpleQuery(sql string) {
	stmts := sqlparser.SplitStatements(sql)
	if len(stmts) == 0 {
		s.frontend.Send(&pgproto3.EmptyQueryResponse{})
		s.frontend.Send(&pgproto3.ReadyForQuery{TxStatus: byte(s.txStatus)})
		s.frontend.Flush()
		return
	}

	for _, stmt := range stmts {
		if err := s.execSimpleStatement(stmt); err != nil {
			s.sendError(err)
			break
		}
		if s.status == StatusCopyIn {
			s.copy.readyAfterDone = true
			return
		}
	}
	s.frontend.Send(&pgproto3.ReadyForQuery{TxStatus: byte(s.txStatus)})
	s.frontend.Flush()
}

func (s *Session) execSimpleStatement(stmt string) error {
	kind := sqlparser.Classify(stmt)
	return s.traced(s.ctx, "simple_query", kind.String(), func(ctx context.Context) error {
		switch kind {
		case sqlparser.KindQuery:
			return s.runQuery(ctx, stmt, nil)
		case sqlparser.KindDML:
			return s.runDML(ctx, stmt, nil)
		case sqlparser.KindDDL:
			return s.runDDL(ctx, stmt)
		case sqlparser.KindCopy:
			return s.beginCopy(ctx, stmt)
		case sqlparser.KindBegin:
			return s.runBegin(ctx)
		case sqlparser.KindCommit:
			return s.runCommit(ctx)
		case sqlparser.KindRollback:
			return s.runRollback(ctx)
		case sqlparser.KindSet:
			return s.runSet(stmt)
		case sqlparser.KindShow:
			return s.runShow(stmt)
		case sqlparser.KindClientSide:
			return s.runClientSide(stmt)
		default:
			return s.runDDLPassthrough(ctx, stmt)
		}
	})
}

// traced runs one statement inside a span, recording its kind, duration,
// and outcome on both the span and the statement metrics. The session's
// statement_timeout (or spanner.statement_timeout), when set, bounds the
// statement's context so an overrunning backend call is cancelled and
// surfaces as 57014.
func (s *Session) traced(ctx context.Context, op, kind string, fn func(context.Context) error) error {
	if d := s.state.StatementTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String(observability.AttrDBName, s.databaseName),
		attribute.String(observability.AttrDBUser, s.userName),
		attribute.String(observability.AttrStatementKind, kind),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.metrics.RecordStatement(s.databaseName, kind, time.Since(start).Seconds(), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Session) runBegin(ctx context.Context) error {
	if s.txStatus == pgwire.TxIdle {
		if err := s.be.BeginTx(ctx); err != nil {
			return wrapBackendErr(err)
		}
		s.txStatus = pgwire.TxInTransaction
	}
	return s.sendCommandComplete("BEGIN")
}

func (s *Session) runCommit(ctx context.Context) error {
	if s.txStatus != pgwire.TxIdle {
		err := s.be.Commit(ctx)
		s.state.EndTransaction()
		s.reportParameterStatusChanges()
		s.txStatus = pgwire.TxIdle
		if err != nil {
			return wrapBackendErr(err)
		}
	}
	return s.sendCommandComplete("COMMIT")
}

func (s *Session) runRollback(ctx context.Context) error {
	if s.txStatus != pgwire.TxIdle {
		s.be.Rollback(ctx)
		s.state.EndTransaction()
		s.reportParameterStatusChanges()
		s.txStatus = pgwire.TxIdle
	}
	return s.sendCommandComplete("ROLLBACK")
}

func (s *Session) runSet(stmt string) error {
	name, value, isLocal, isReset := sqlparser.ParseSet(stmt)
	ctx := session.ContextSession
	if isLocal {
		ctx = session.ContextLocal
	}
	if isReset {
		s.state.Reset(name)
		s.reportParameterStatusChanges()
		return s.sendCommandComplete("RESET")
	}
	if err := s.state.Set(ctx, name, value); err != nil {
		return err
	}
	s.reportParameterStatusChanges()
	return s.sendCommandComplete("SET")
}

func (s *Session) runShow(stmt string) error {
	name := sqlparser.ParseShowName(stmt)
	value, ok := s.state.Show(name)
	if !ok {
		return pgwire.NewErr(pgwire.Error, pgwire.CodeUndefinedParameter, fmt.Sprintf("unrecognized configuration parameter %q", name), nil)
	}
	s.sendRowDescription([]resultColumn{{name: name, oid: values.OIDText}})
	s.frontend.Send(&pgproto3.DataRow{Values: [][]byte{[]byte(value)}})
	return s.sendCommandComplete("SHOW")
}

// runClientSide handles DEALLOCATE/DISCARD/LISTEN/NOTIFY/UNLISTEN as inert
// acknowledgements: PGAdapter has no listen/notify bus and DEALLOCATE ALL
// is satisfied by clearing the statement cache.
func (s *Session) runClientSide(stmt string) error {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return s.sendCommandComplete("")
	}
	tag := strings.ToUpper(fields[0])
	if tag == "DEALLOCATE" {
		s.stmts = stmtcache.New()
	}
	return s.sendCommandComplete(tag)
}

// backendExistenceChecker adapts backend.Connection's TableExists/
// IndexExists to sqlparser.ExistenceChecker.
type backendExistenceChecker struct {
	be backend.Connection
}

func (c backendExistenceChecker) TableExists(name string) (bool, error) { return c.be.TableExists(name) }
func (c backendExistenceChecker) IndexExists(name string) (bool, error) { return c.be.IndexExists(name) }

// runDDL translates IF [NOT] EXISTS / named primary-key constraints before
// issuing the statement, or no-ops when the translator determines the
// operation has nothing left to do.
func (s *Session) runDDL(ctx context.Context, stmt string) error {
	out, skip, err := sqlparser.Translate(stmt, backendExistenceChecker{s.be})
	if err != nil {
		return err
	}
	s.metrics.RecordDDLTranslation(s.databaseName, skip)
	tag := ddlCommandTag(stmt)
	if skip {
		return s.sendCommandComplete(tag)
	}
	if _, err := s.be.ApplyDDL(ctx, out); err != nil {
		return wrapBackendErr(err)
	}
	return s.sendCommandComplete(tag)
}

// runDDLPassthrough handles statement kinds the tokenizer didn't recognize
// as one of the classified kinds by sending it straight to ApplyDDL; this
// only matters for OTHER-classified DDL-adjacent statements (e.g. COMMENT
// ON, GRANT) that the classifier has no dedicated kind for.
func (s *Session) runDDLPassthrough(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := s.be.ApplyDDL(ctx, stmt); err != nil {
		return wrapBackendErr(err)
	}
	return s.sendCommandComplete(ddlCommandTag(stmt))
}

// ddlCommandTag derives the CommandComplete tag for a DDL statement,
// handling the three-word "CREATE UNIQUE INDEX" case.
func ddlCommandTag(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return ""
	}
	first := strings.ToUpper(fields[0])
	if len(fields) == 1 {
		return first
	}
	second := strings.ToUpper(fields[1])
	if first == "CREATE" && second == "UNIQUE" && len(fields) >= 3 {
		return "CREATE " + strings.ToUpper(fields[2])
	}
	return first + " " + second
}

// resultColumn is the minimal per-column shape runQuery needs to emit a
// RowDescription; it exists so runQuery doesn't need to import stmtcache's
// richer FieldDescription for the simple-query path.
type resultColumn struct {
	name string
	oid  values.OID
}

func (s *Session) sendRowDescription(cols []resultColumn) {
	s.frontend.Send(rowDescriptionMessage(cols))
}

func (s *Session) sendCommandComplete(tag string) error {
	s.frontend.Send(&pgproto3.CommandComplete{CommandTag: []byte(tag)})
	return s.frontend.Flush()
}

// resultColumnsFrom adapts a Result's backend field metadata into the
// resultColumn shape sendRowDescription and streamRows share.
func resultColumnsFrom(fields []backend.ResultField) []resultColumn {
	cols := make([]resultColumn, len(fields))
	for i, f := range fields {
		name := f.Name
		if name == "" {
			name = "?column?"
		}
		cols[i] = resultColumn{name: name, oid: values.OID(f.OID)}
	}
	return cols
}

// runQuery executes a QUERY-classified statement and streams its result
// set back as RowDescription + DataRow* + CommandComplete, for the
// simple-query path where no prior Describe has already sent a
// RowDescription.
func (s *Session) runQuery(ctx context.Context, sql string, params map[string]any) error {
	result, err := s.be.Query(ctx, sql, params)
	if err != nil {
		return wrapBackendErr(err)
	}
	cols := resultColumnsFrom(result.Fields)
	s.sendRowDescription(cols)
	return s.streamRows(result, cols)
}

// streamRows sends a Result's rows as DataRow* + CommandComplete, without a
// RowDescription: the extended-query path sends its RowDescription from
// Describe (or from Execute when the portal was never described).
func (s *Session) streamRows(result *backend.Result, cols []resultColumn) error {
	var n int64
	for {
		row, err := result.Rows.Next()
		if errors.Is(err, backend.ErrRowsDone) {
			break
		}
		if err != nil {
			result.Rows.Stop()
			return wrapBackendErr(err)
		}
		vals := make([][]byte, len(row))
		for i, v := range row {
			if v == nil {
				vals[i] = nil
				continue
			}
			codec, ok := values.Lookup(cols[i].oid)
			if !ok {
				vals[i] = []byte(fmt.Sprintf("%v", v))
				continue
			}
			b, err := codec.TextEncode(v)
			if err != nil {
				result.Rows.Stop()
				return err
			}
			vals[i] = b
		}
		s.frontend.Send(&pgproto3.DataRow{Values: vals})
		n++
	}
	return s.sendCommandComplete(fmt.Sprintf("SELECT %d", n))
}

// runDML executes an INSERT/UPDATE/DELETE statement.
func (s *Session) runDML(ctx context.Context, sql string, params map[string]any) error {
	update, err := s.be.Exec(ctx, sql, params)
	if err != nil {
		return wrapBackendErr(err)
	}
	return s.sendCommandComplete(dmlCommandTag(sql, update.RowsAffected))
}

// dmlCommandTag builds the CommandComplete tag for a DML statement. INSERT
// tags carry a legacy OID field that is always 0.
func dmlCommandTag(sql string, affected int64) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return fmt.Sprintf("UPDATE %d", affected)
	}
	kw := strings.ToUpper(fields[0])
	if kw == "INSERT" {
		return fmt.Sprintf("INSERT 0 %d", affected)
	}
	return fmt.Sprintf("%s %d", kw, affected)
}

// wrapBackendErr tags a backend error with the SQLSTATE derived from its
// Spanner RPC status. An error that already carries a SQLSTATE passes through.
func wrapBackendErr(err error) error {
	var pe *pgwire.Err
	if errors.As(err, &pe) {
		return pe
	}
	code := backend.SQLState(err)
	msg := err.Error()
	if code == pgwire.CodeQueryCanceled {
		msg = "canceling statement due to user request"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "canceling statement due to statement timeout"
		}
	}
	return pgwire.NewErr(pgwire.Error, code, msg, err)
}

// bindParams decodes a Bind message's raw parameter bytes into the
// positional ($1, $2, ...) map backend.Connection.Query/Exec expect,
// shared by extended_query.go's Execute handling.
func bindParams(oids []values.OID, raw [][]byte, formats []values.FormatCode) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for i, b := range raw {
		var format values.FormatCode
		if len(formats) == 1 {
			format = formats[0]
		} else if i < len(formats) {
			format = formats[i]
		}
		var oid values.OID
		if i < len(oids) {
			oid = oids[i]
		} else {
			oid = values.OIDText
		}
		v, err := values.Decode(oid, format, b)
		if err != nil {
			return nil, wireDecodeErr(err)
		}
		out[strconv.Itoa(i+1)] = v
	}
	return out, nil
}

// wireDecodeErr tags a value-decode failure with the SQLSTATE its
// ErrorClass calls for: malformed-but-typed input is 22P02, bytes that do
// not form the declared type at all are 08P01.
func wireDecodeErr(err error) error {
	var de *values.DecodeError
	if !errors.As(err, &de) {
		return err
	}
	code := pgwire.CodeInvalidTextRepresentation
	if de.Class == values.ClassProtocolViolation {
		code = pgwire.CodeProtocolViolation
	}
	return pgwire.NewErr(pgwire.Error, code, de.Message, err)
}
