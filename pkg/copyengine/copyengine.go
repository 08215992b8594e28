// Package copyengine implements the COPY ... FROM STDIN streaming mutation
// writer: it parses COPY payload bytes incrementally across CopyData frame
// boundaries, decodes complete rows via pkg/values, and batches the
// resulting Mutations into the backend up to a configurable row/byte
// threshold.
package copyengine

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/backend"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/config"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/pgwire"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/values"
)

// Format names the COPY payload encoding.
type Format int

const (
	FormatText Format = iota
	FormatCSV
	FormatBinary
)

// Column describes one target column's name and wire OID, used to select a
// values.Codec for decoding each field.
type Column struct {
	Name string
	OID  values.OID
}

// Session is the mutation writer for one COPY ... FROM STDIN in progress.
// It exists only while the owning connection's status is COPY_IN.
type Session struct {
	Table   string
	Columns []Column
	Format  Format

	conn          backend.Connection
	rowThreshold  int
	byteThreshold config.ByteSize

	carry        []byte
	pendingRows  int
	pendingBytes int64
	totalRows    int64
	errorSticky  bool
}

// DefaultRowThreshold and DefaultByteThreshold bound a mutation batch when
// the caller does not configure tighter limits.
const DefaultRowThreshold = 1000

var DefaultByteThreshold = config.ByteSize(1) * config.MiB

// NewSession starts a COPY session targeting table/columns over conn.
func NewSession(conn backend.Connection, table string, columns []Column, format Format, rowThreshold int, byteThreshold config.ByteSize) *Session {
	if rowThreshold <= 0 {
		rowThreshold = DefaultRowThreshold
	}
	if byteThreshold <= 0 {
		byteThreshold = DefaultByteThreshold
	}
	return &Session{
		Table:         table,
		Columns:       columns,
		Format:        format,
		conn:          conn,
		rowThreshold:  rowThreshold,
		byteThreshold: byteThreshold,
	}
}

// Write appends one CopyData frame's payload, processing every complete
// line it now contains and carrying any trailing partial line forward to
// the next Write call.
func (s *Session) Write(ctx context.Context, data []byte) error {
	s.carry = append(s.carry, data...)

	for {
		idx := bytes.IndexByte(s.carry, '\n')
		if idx < 0 {
			break
		}
		line := s.carry[:idx]
		s.carry = s.carry[idx+1:]
		if err := s.processLine(ctx, line); err != nil {
			s.errorSticky = true
			return err
		}
	}
	return s.maybeFlush(ctx)
}

// processLine decodes one complete row and buffers its Mutation. If
// errorSticky is already set, the line is parsed no further: it is simply
// discarded so the stream keeps draining.
func (s *Session) processLine(ctx context.Context, line []byte) error {
	if s.errorSticky {
		return nil
	}
	if s.Format == FormatBinary {
		return pgwire.NewErr(pgwire.Error, pgwire.CodeFeatureNotSupported, "COPY BINARY is not supported", nil)
	}

	fields := splitCopyLine(line, s.Format)
	if len(fields) != len(s.Columns) {
		return pgwire.NewErr(pgwire.Error, pgwire.CodeInvalidTextRepresentation,
			fmt.Sprintf("COPY row has %d columns, table %s has %d", len(fields), s.Table, len(s.Columns)), nil)
	}

	rowValues := make([]any, len(fields))
	for i, field := range fields {
		if field == nil {
			rowValues[i] = nil
			continue
		}
		v, err := unescapeAndDecode(field, s.Columns[i].OID)
		if err != nil {
			return err
		}
		rowValues[i] = v
	}

	colNames := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		colNames[i] = c.Name
	}
	s.conn.BufferMutation(backend.Mutation{
		Kind:    backend.MutationInsertOrUpdate,
		Table:   s.Table,
		Columns: colNames,
		Values:  rowValues,
	})

	s.pendingRows++
	s.pendingBytes += int64(len(line))
	s.totalRows++
	return nil
}

func (s *Session) maybeFlush(ctx context.Context) error {
	if s.pendingRows == 0 {
		return nil
	}
	if s.pendingRows < s.rowThreshold && s.pendingBytes < s.byteThreshold.Int64() {
		return nil
	}
	return s.flush(ctx)
}

func (s *Session) flush(ctx context.Context) error {
	if s.pendingRows == 0 {
		return nil
	}
	if err := s.conn.FlushMutations(ctx); err != nil {
		return err
	}
	s.pendingRows = 0
	s.pendingBytes = 0
	return nil
}

// Done is called on CopyDone: it processes any final partial line (a row
// with no trailing newline), flushes the last batch, and returns the total
// row count for the CommandComplete "COPY <n>" tag.
func (s *Session) Done(ctx context.Context) (int64, error) {
	if len(s.carry) > 0 {
		if err := s.processLine(ctx, s.carry); err != nil {
			s.carry = nil
			return s.totalRows, err
		}
		s.carry = nil
	}
	if s.errorSticky {
		return s.totalRows, pgwire.NewErr(pgwire.Error, pgwire.CodeInternalError, "COPY failed earlier in the stream", nil)
	}
	if err := s.flush(ctx); err != nil {
		return s.totalRows, err
	}
	return s.totalRows, nil
}

// Fail is called on CopyFail: the session's partial batch is discarded
// without being applied.
func (s *Session) Fail() {
	s.carry = nil
	s.pendingRows = 0
	s.pendingBytes = 0
}

// splitCopyLine splits one COPY TEXT-format line into fields on unescaped
// tabs. A field equal to the literal two-byte sequence `\N` is returned as
// a nil []byte, meaning SQL NULL. format is not consulted, so a CSV
// payload is split the same way.
func splitCopyLine(line []byte, format Format) [][]byte {
	var fields [][]byte
	start := 0
	for i := 0; i < len(line); i++ {
		if line[i] == '\\' && i+1 < len(line) {
			i++
			continue
		}
		if line[i] == '\t' {
			fields = append(fields, line[start:i])
			start = i + 1
		}
	}
	fields = append(fields, line[start:])

	for i, f := range fields {
		if len(f) == 2 && f[0] == '\\' && f[1] == 'N' {
			fields[i] = nil
		}
	}
	return fields
}

// unescapeAndDecode reverses COPY TEXT format's backslash escaping
// (\t \n \r \\ and \NNN octal) and decodes the resulting bytes via the
// column's values.Codec. Decode failures surface as 22P02 so the client
// sees the same SQLSTATE a real COPY would produce for malformed input.
func unescapeAndDecode(field []byte, oid values.OID) (any, error) {
	raw := unescapeCopyText(field)
	v, err := values.Decode(oid, values.FormatText, raw)
	if err != nil {
		return nil, pgwire.NewErr(pgwire.Error, pgwire.CodeInvalidTextRepresentation, err.Error(), err)
	}
	return v, nil
}

func unescapeCopyText(field []byte) []byte {
	out := make([]byte, 0, len(field))
	for i := 0; i < len(field); i++ {
		if field[i] != '\\' || i+1 >= len(field) {
			out = append(out, field[i])
			continue
		}
		switch field[i+1] {
		case 't':
			out = append(out, '\t')
			i++
		case 'n':
			out = append(out, '\n')
			i++
		case 'r':
			out = append(out, '\r')
			i++
		case '\\':
			out = append(out, '\\')
			i++
		default:
			if i+3 < len(field) && isOctalDigit(field[i+1]) {
				if n, err := strconv.ParseUint(string(field[i+1:i+4]), 8, 8); err == nil {
					out = append(out, byte(n))
					i += 3
					continue
				}
			}
			out = append(out, field[i+1])
			i++
		}
	}
	return out
}

func isOctalDigit(c byte) bool { return c >= '0' && c <= '7' }

// TotalRows returns the number of rows processed so far.
func (s *Session) TotalRows() int64 { return s.totalRows }

// ErrorSticky reports whether a mid-stream error occurred; while true,
// further payloads are drained but not applied.
func (s *Session) ErrorSticky() bool { return s.errorSticky }
