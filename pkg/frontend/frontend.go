// Package frontend implements PGAdapter's connection handler and server:
// the per-connection wire-protocol state machine and the TCP/Unix-domain
// accept loop that creates and registers one handler per connection.
package frontend

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgproto3"
)

// Frontend wraps *pgproto3.Backend with the session's context, so a
// blocking Receive unblocks (with ctx.Err()) when the connection's context
// is cancelled by Cancel or Terminate.
type Frontend struct {
	*pgproto3.Backend
	ctx context.Context
}

// NewFrontend builds a Frontend over an already-constructed pgproto3.Backend.
func NewFrontend(ctx context.Context, be *pgproto3.Backend) Frontend {
	return Frontend{Backend: be, ctx: ctx}
}

// Receive reads the next frontend message, returning ctx.Err() instead of
// blocking forever once the connection's context has been cancelled.
func (f Frontend) Receive() (pgproto3.FrontendMessage, error) {
	if err := f.ctx.Err(); err != nil {
		return nil, err
	}
	return f.Backend.Receive()
}

// slogTraceWriter adapts pgproto3.Backend.Trace's io.Writer sink to
// log/slog, buffering partial lines and emitting one debug log record per
// complete trace line.
type slogTraceWriter struct {
	logger *slog.Logger
	buf    bytes.Buffer
}

func newSlogTraceWriter(logger *slog.Logger) *slogTraceWriter {
	return &slogTraceWriter{logger: logger}
}

func (w *slogTraceWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// No complete line yet; put back the partial bytes we consumed.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.logger.Debug("pgproto3", "trace", line[:len(line)-1])
	}
	return len(p), nil
}

// enableTracing wires a slogTraceWriter into be.Trace when the logger has
// debug logging enabled.
func enableTracing(ctx context.Context, logger *slog.Logger, be *pgproto3.Backend) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	be.Trace(newSlogTraceWriter(logger), pgproto3.TracerOptions{
		SuppressTimestamps: true,
	})
}
