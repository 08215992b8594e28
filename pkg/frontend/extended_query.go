package frontend

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/pgwire"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/sqlparser"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/stmtcache"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/values"
)

// handleParse stores a new prepared statement, eagerly classifying it so
// handleExecute later knows which backend call to make without
// re-tokenizing the statement text.
func (s *Session) handleParse(m *pgproto3.Parse) {
	if s.sync.action() == ActionSkip {
		return
	}
	oids := make([]values.OID, len(m.ParameterOIDs))
	for i, o := range m.ParameterOIDs {
		oids[i] = values.OID(o)
	}
	stmt := &stmtcache.PreparedStatement{
		Name:          m.Name,
		SQL:           m.Query,
		ParsedKind:    sqlparser.Classify(m.Query).String(),
		ParameterOIDs: oids,
	}
	if err := s.stmts.Parse(stmt); err != nil {
		s.extendedError(err)
		return
	}
	s.frontend.Send(&pgproto3.ParseComplete{})
}

// handleBind binds a portal against an already-parsed statement. Parameter
// values stay raw here; they are decoded by handleExecute (or a
// Describe('P')'s Analyze), so a portal that is bound but never executed
// never pays for decoding.
func (s *Session) handleBind(m *pgproto3.Bind) {
	if s.sync.action() == ActionSkip {
		return
	}
	stmt, err := s.stmts.Statement(m.PreparedStatement)
	if err != nil {
		s.extendedError(err)
		return
	}
	if len(stmt.ParameterOIDs) > 0 && len(m.Parameters) != len(stmt.ParameterOIDs) {
		s.extendedError(pgwire.NewErr(pgwire.Error, pgwire.CodeProtocolViolation,
			fmt.Sprintf("bind message supplies %d parameters, but prepared statement %q requires %d",
				len(m.Parameters), stmt.Name, len(stmt.ParameterOIDs)), nil))
		return
	}
	paramFormats := make([]values.FormatCode, len(m.ParameterFormatCodes))
	for i, f := range m.ParameterFormatCodes {
		paramFormats[i] = values.FormatCode(f)
	}
	resultFormats := make([]values.FormatCode, len(m.ResultFormatCodes))
	for i, f := range m.ResultFormatCodes {
		resultFormats[i] = values.FormatCode(f)
	}
	s.stmts.Bind(m.DestinationPortal, stmt, m.Parameters, paramFormats, resultFormats)
	s.frontend.Send(&pgproto3.BindComplete{})
}

// handleDescribe answers Describe('S') with ParameterDescription +
// RowDescription/NoData, resolving a query's columns via Analyze with
// placeholder NULL parameters, and Describe('P') by resolving the bound
// portal's actual result columns via Analyze; neither runs the statement's
// real side effects.
func (s *Session) handleDescribe(m *pgproto3.Describe) {
	if s.sync.action() == ActionSkip {
		return
	}
	switch m.ObjectType {
	case 'S':
		s.describeStatement(m.Name)
	case 'P':
		s.describePortal(m.Name)
	default:
		s.recordInvalid("Describe with unknown ObjectType")
	}
}

func (s *Session) describeStatement(name string) {
	stmt, err := s.stmts.Statement(name)
	if err != nil {
		s.extendedError(err)
		return
	}
	oids := make([]uint32, len(stmt.ParameterOIDs))
	for i, o := range stmt.ParameterOIDs {
		oids[i] = uint32(o)
	}
	s.frontend.Send(&pgproto3.ParameterDescription{ParameterOIDs: oids})

	if stmt.ParsedKind != sqlparser.KindQuery.String() {
		s.frontend.Send(&pgproto3.NoData{})
		return
	}
	params, err := bindParams(stmt.ParameterOIDs, placeholderParams(len(stmt.ParameterOIDs)), nil)
	if err != nil {
		s.extendedError(err)
		return
	}
	fields, err := s.be.Analyze(s.ctx, stmt.SQL, params)
	if err != nil {
		s.extendedError(wrapBackendErr(err))
		return
	}
	s.frontend.Send(rowDescriptionMessage(resultColumnsFrom(fields)))
}

func (s *Session) describePortal(name string) {
	portal, err := s.stmts.Portal(name)
	if err != nil {
		s.extendedError(err)
		return
	}
	if portal.Statement.ParsedKind != sqlparser.KindQuery.String() {
		s.frontend.Send(&pgproto3.NoData{})
		return
	}
	params, err := bindParams(portal.Statement.ParameterOIDs, portal.BoundParameters, portal.ParameterFormats)
	if err != nil {
		s.extendedError(err)
		return
	}
	fields, err := s.be.Analyze(s.ctx, portal.Statement.SQL, params)
	if err != nil {
		s.extendedError(wrapBackendErr(err))
		return
	}
	portal.Described = true
	s.frontend.Send(rowDescriptionMessage(resultColumnsFrom(fields)))
}

// placeholderParams builds n nil raw parameter values, used only so
// describeStatement can reuse bindParams' OID-driven decoding for a
// statement that has parameter types but, being unbound, no actual values
// yet; every placeholder decodes to a Go nil, which is fine since Analyze
// only inspects result column shape, never parameter values.
func placeholderParams(n int) [][]byte {
	return make([][]byte, n)
}

// rowDescriptionMessage builds the RowDescription pgproto3 message for a
// set of columns, shared by the simple-query path (which also flushes) and
// handleDescribe (which leaves flushing to handleSync/handleFlush).
func rowDescriptionMessage(cols []resultColumn) *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(cols))
	for i, c := range cols {
		fields[i] = pgproto3.FieldDescription{
			Name:         []byte(c.name),
			DataTypeOID:  uint32(c.oid),
			DataTypeSize: -1,
			Format:       int16(values.FormatText),
		}
	}
	return &pgproto3.RowDescription{Fields: fields}
}

// handleExecute runs a bound portal's statement and streams its results.
// MaxRows (partial-result portal suspension) is not honored: Execute always
// runs a portal to completion, streaming every row the backend returns.
func (s *Session) handleExecute(m *pgproto3.Execute) {
	if s.sync.action() == ActionSkip {
		return
	}
	portal, err := s.stmts.Portal(m.Portal)
	if err != nil {
		s.extendedError(err)
		return
	}
	params, err := bindParams(portal.Statement.ParameterOIDs, portal.BoundParameters, portal.ParameterFormats)
	if err != nil {
		s.extendedError(err)
		return
	}

	sql := portal.Statement.SQL
	kind := portal.Statement.ParsedKind
	err = s.traced(s.ctx, "execute", kind, func(ctx context.Context) error {
		portal.State = stmtcache.PortalExecuting
		defer func() { portal.State = stmtcache.PortalDone }()
		switch kind {
		case sqlparser.KindQuery.String():
			return s.executeQuery(ctx, portal, params)
		case sqlparser.KindDML.String():
			return s.runDML(ctx, sql, params)
		case sqlparser.KindDDL.String():
			return s.runDDL(ctx, sql)
		case sqlparser.KindCopy.String():
			return s.beginCopy(ctx, sql)
		case sqlparser.KindBegin.String():
			return s.runBegin(ctx)
		case sqlparser.KindCommit.String():
			return s.runCommit(ctx)
		case sqlparser.KindRollback.String():
			return s.runRollback(ctx)
		case sqlparser.KindSet.String():
			return s.runSet(sql)
		case sqlparser.KindShow.String():
			return s.runShow(sql)
		case sqlparser.KindClientSide.String():
			return s.runClientSide(sql)
		default:
			return s.runDDLPassthrough(ctx, sql)
		}
	})
	if err != nil {
		s.extendedError(err)
	}
}

// executeQuery runs a QUERY portal's statement and streams DataRow* +
// CommandComplete. A portal that was never described gets its
// RowDescription here first, so clients that skip Describe
// still learn the result shape; clients that did describe already have it.
func (s *Session) executeQuery(ctx context.Context, portal *stmtcache.Portal, params map[string]any) error {
	result, err := s.be.Query(ctx, portal.Statement.SQL, params)
	if err != nil {
		return wrapBackendErr(err)
	}
	cols := resultColumnsFrom(result.Fields)
	if !portal.Described {
		portal.Described = true
		s.frontend.Send(rowDescriptionMessage(cols))
	}
	return s.streamRows(result, cols)
}

// handleSync closes out the current extended-query window: it clears skip
// mode and always replies with exactly one ReadyForQuery.
func (s *Session) handleSync() {
	s.sync.resetAtSync()
	s.frontend.Send(&pgproto3.ReadyForQuery{TxStatus: byte(s.txStatus)})
	s.frontend.Flush()
}

// handleFlush forces buffered responses to the wire without ending the
// current Sync window, matching real PostgreSQL's Flush semantics.
func (s *Session) handleFlush() {
	s.frontend.Flush()
}

// handleClose drops a prepared statement or portal, replying with
// CloseComplete even for an absent name.
func (s *Session) handleClose(m *pgproto3.Close) {
	if s.sync.action() == ActionSkip {
		return
	}
	switch m.ObjectType {
	case 'S':
		s.stmts.CloseStatement(m.Name)
	case 'P':
		s.stmts.ClosePortal(m.Name)
	}
	s.frontend.Send(&pgproto3.CloseComplete{})
}

// extendedError sends an ErrorResponse and puts the connection into skip
// mode for the remainder of the current Sync window: the first error since
// the last Sync suppresses every later Parse/Bind/Describe/Execute/Close up
// to and including the next Sync.
func (s *Session) extendedError(err error) {
	if s.sync.enterSkipMode() {
		s.sendError(err)
	}
}
