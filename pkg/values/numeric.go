package values

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Numeric preserves arbitrary precision by holding the decimal text form and
// deferring parsing to pgtype.Numeric, rather than collapsing to float64.
func init() {
	register(Codec{
		OID:          OIDNumeric,
		Name:         "numeric",
		TextDecode:   numericTextDecode,
		BinaryDecode: numericBinaryDecode,
		TextEncode:   numericTextEncode,
		BinaryEncode: numericBinaryEncode,
		Bind:         numericBind,
	})
}

func numericTextDecode(src []byte) (any, error) {
	var n pgtype.Numeric
	if err := n.Scan(string(src)); err != nil {
		return nil, invalidArgf("numeric", "invalid input syntax for type numeric: %q", src)
	}
	if !n.Valid {
		return nil, invalidArgf("numeric", "invalid numeric value: %q", src)
	}
	if n.NaN {
		return nil, invalidArgf("numeric", "NaN is not allowed in numeric: %q", src)
	}
	return n, nil
}

// numericBinaryDecode rejects binary numeric parameters: PostgreSQL's
// "send" codec for numeric is wholly specific to PG's own base-10000 digit
// layout, so PGAdapter requires clients to use text format for numeric,
// matching what most drivers already do by default for arbitrary-precision
// types.
func numericBinaryDecode(src []byte) (any, error) {
	return nil, protocolViolationf("numeric", "binary numeric format is not supported")
}

func numericTextEncode(v any) ([]byte, error) {
	n, ok := v.(pgtype.Numeric)
	if !ok {
		return nil, invalidArgf("numeric", "cannot encode %T as numeric", v)
	}
	s, err := n.Value()
	if err != nil {
		return nil, invalidArgf("numeric", "cannot render numeric: %v", err)
	}
	if s == nil {
		return nil, nil
	}
	return []byte(s.(string)), nil
}

func numericBinaryEncode(v any) ([]byte, error) {
	return nil, protocolViolationf("numeric", "binary numeric format is not supported")
}

func numericBind(v any) (any, error) {
	n, ok := v.(pgtype.Numeric)
	if !ok {
		return nil, invalidArgf("numeric", "cannot bind %T as numeric", v)
	}
	s, err := n.Value()
	if err != nil {
		return nil, invalidArgf("numeric", "cannot bind numeric: %v", err)
	}
	return s, nil
}
