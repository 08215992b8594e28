package frontend

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/copyengine"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/pgwire"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/sqlparser"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/values"
)

// copySession wraps one COPY ... FROM STDIN transfer in progress; its
// lifetime is exactly the connection's StatusCopyIn window.
type copySession struct {
	engine *copyengine.Session
	bytes  int64
	// readyAfterDone marks a COPY started by a simple Query message, whose
	// ReadyForQuery is owed after CopyDone/CopyFail rather than at a Sync.
	readyAfterDone bool
}

// beginCopy starts a COPY FROM STDIN: it resolves the target columns'
// types, replies with CopyInResponse, and puts the connection into
// StatusCopyIn until CopyDone or CopyFail arrives.
func (s *Session) beginCopy(ctx context.Context, stmt string) error {
	table, cols, format, ok := sqlparser.ParseCopy(stmt)
	if !ok {
		return pgwire.NewErr(pgwire.Error, pgwire.CodeFeatureNotSupported, "only COPY ... FROM STDIN is supported", nil)
	}

	copyFormat, err := parseCopyFormat(format)
	if err != nil {
		return err
	}

	if len(cols) == 0 {
		names, err := s.be.TableColumns(ctx, table)
		if err != nil {
			return wrapBackendErr(err)
		}
		cols = names
	}
	if len(cols) == 0 {
		return pgwire.NewErr(pgwire.Error, pgwire.CodeUndefinedTable, fmt.Sprintf("table %q not found or has no columns", table), nil)
	}

	oids, err := s.be.ColumnTypes(ctx, table, cols)
	if err != nil {
		return wrapBackendErr(err)
	}
	columns := make([]copyengine.Column, len(cols))
	formatCodes := make([]uint16, len(cols))
	for i, name := range cols {
		columns[i] = copyengine.Column{Name: name, OID: oids[i]}
		formatCodes[i] = uint16(values.FormatText)
	}

	s.frontend.Send(&pgproto3.CopyInResponse{
		OverallFormat:     0,
		ColumnFormatCodes: formatCodes,
	})
	if err := s.frontend.Flush(); err != nil {
		return err
	}

	s.copy = &copySession{
		engine: copyengine.NewSession(s.be, table, columns, copyFormat, s.cfg.CopyBatchRows, s.cfg.CopyBatchBytes),
	}
	s.status = StatusCopyIn
	return nil
}

func parseCopyFormat(name string) (copyengine.Format, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return copyengine.FormatText, nil
	case "csv":
		return copyengine.FormatCSV, nil
	case "binary":
		return 0, pgwire.NewErr(pgwire.Error, pgwire.CodeFeatureNotSupported, "COPY BINARY is not supported", nil)
	default:
		return 0, pgwire.NewErr(pgwire.Error, pgwire.CodeFeatureNotSupported, fmt.Sprintf("unrecognized COPY format %q", name), nil)
	}
}

// dispatchCopy handles frontend messages while the connection is in
// StatusCopyIn: CopyData is streamed into the engine, CopyDone flushes and
// replies CommandComplete, CopyFail discards the batch and replies with an
// ErrorResponse. Flush and Sync are accepted and silently ignored, since
// the COPY sub-protocol has no portal/statement machinery to synchronize.
func (s *Session) dispatchCopy(msg pgproto3.FrontendMessage) (terminate bool) {
	switch m := msg.(type) {
	case *pgproto3.CopyData:
		s.copy.bytes += int64(len(m.Data))
		if err := s.copy.engine.Write(s.ctx, m.Data); err != nil {
			s.sendError(err)
		}
		return false
	case *pgproto3.CopyDone:
		n, err := s.copy.engine.Done(s.ctx)
		s.finishCopy(func() {
			if err != nil {
				s.sendError(err)
				return
			}
			s.metrics.RecordCopy(s.databaseName, s.copy.engine.Table, n, s.copy.bytes)
			s.sendCommandComplete(fmt.Sprintf("COPY %d", n))
		})
		return false
	case *pgproto3.CopyFail:
		s.copy.engine.Fail()
		s.finishCopy(func() {
			s.sendError(pgwire.NewErr(pgwire.Error, pgwire.CodeQueryCanceled, fmt.Sprintf("COPY failed: %s", m.Message), nil))
		})
		return false
	case *pgproto3.Flush, *pgproto3.Sync:
		return false
	case *pgproto3.Terminate:
		return true
	default:
		s.recordInvalid(fmt.Sprintf("%T during COPY_IN", msg))
		return s.invalid.Incr()
	}
}

// finishCopy leaves COPY_IN, sends the final reply, and, if the COPY was
// started by a simple Query message, the deferred ReadyForQuery.
func (s *Session) finishCopy(reply func()) {
	ready := s.copy.readyAfterDone
	reply()
	s.copy = nil
	s.status = StatusAuthenticated
	if ready {
		s.sendReadyForQuery()
	}
}
