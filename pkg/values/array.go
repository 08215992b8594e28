package values

import (
	"encoding/binary"
	"strings"
)

func init() {
	register(arrayCodec(OIDBoolArray, "bool[]", OIDBool))
	register(arrayCodec(OIDByteaArray, "bytea[]", OIDBytea))
	register(arrayCodec(OIDInt2Array, "int2[]", OIDInt2))
	register(arrayCodec(OIDInt4Array, "int4[]", OIDInt4))
	register(arrayCodec(OIDInt8Array, "int8[]", OIDInt8))
	register(arrayCodec(OIDTextArray, "text[]", OIDText))
	register(arrayCodec(OIDVarcharArray, "varchar[]", OIDVarchar))
	register(arrayCodec(OIDFloat4Array, "float4[]", OIDFloat4))
	register(arrayCodec(OIDFloat8Array, "float8[]", OIDFloat8))
	register(arrayCodec(OIDNumericArray, "numeric[]", OIDNumeric))
	register(arrayCodec(OIDTimestamptzArray, "timestamptz[]", OIDTimestamptz))
	register(arrayCodec(OIDJSONBArray, "jsonb[]", OIDJSONB))
}

// arrayCodec builds a one-dimensional array Codec delegating element
// encode/decode to the element type's own Codec, looked up by elemOID.
// PGAdapter only needs one-dimensional arrays.
func arrayCodec(oid OID, name string, elemOID OID) Codec {
	return Codec{
		OID:  oid,
		Name: name,
		TextDecode: func(src []byte) (any, error) {
			return arrayTextDecode(name, elemOID, src)
		},
		BinaryDecode: func(src []byte) (any, error) {
			return arrayBinaryDecode(name, elemOID, src)
		},
		TextEncode: func(v any) ([]byte, error) {
			return arrayTextEncode(name, elemOID, v)
		},
		BinaryEncode: func(v any) ([]byte, error) {
			return arrayBinaryEncode(name, elemOID, v)
		},
		Bind: func(v any) (any, error) {
			return arrayBind(name, elemOID, v)
		},
	}
}

// splitArrayLiteral splits a PG array literal's inner text ("{a,b,c}" with
// braces stripped) into element tokens, honoring double-quoted elements
// with \" and \\ escapes and unquoted NULL.
func splitArrayLiteral(inner string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case inQuotes && c == '\\' && i+1 < len(inner):
			cur.WriteByte(inner[i+1])
			i++
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}

func quoteArrayElement(s string) string {
	if s == "" {
		return `""`
	}
	needsQuote := false
	for _, r := range s {
		if r == ',' || r == '{' || r == '}' || r == '"' || r == '\\' || r == ' ' {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func arrayTextDecode(name string, elemOID OID, src []byte) (any, error) {
	s := strings.TrimSpace(string(src))
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, invalidArgf(name, "malformed array literal: %q", src)
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return []any{}, nil
	}
	elemCodec, ok := Lookup(elemOID)
	if !ok {
		return nil, protocolViolationf(name, "unsupported element OID %d", elemOID)
	}
	tokens := splitArrayLiteral(inner)
	out := make([]any, len(tokens))
	for i, tok := range tokens {
		if strings.EqualFold(strings.TrimSpace(tok), "NULL") {
			out[i] = nil
			continue
		}
		v, err := elemCodec.TextDecode([]byte(tok))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func arrayTextEncode(name string, elemOID OID, v any) ([]byte, error) {
	elems, ok := v.([]any)
	if !ok {
		return nil, invalidArgf(name, "cannot encode %T as %s", v, name)
	}
	elemCodec, ok := Lookup(elemOID)
	if !ok {
		return nil, protocolViolationf(name, "unsupported element OID %d", elemOID)
	}
	parts := make([]string, len(elems))
	for i, e := range elems {
		if e == nil {
			parts[i] = "NULL"
			continue
		}
		b, err := elemCodec.TextEncode(e)
		if err != nil {
			return nil, err
		}
		parts[i] = quoteArrayElement(string(b))
	}
	return []byte("{" + strings.Join(parts, ",") + "}"), nil
}

// arrayBinaryDecode reads the standard one-dimensional PG array wire
// format: ndim(int32) hasnull(int32) elemtype(int32), then per dimension
// size(int32) lowerbound(int32), then each element as length(int32)+bytes
// (-1 length meaning NULL).
func arrayBinaryDecode(name string, elemOID OID, src []byte) (any, error) {
	if len(src) < 12 {
		return nil, protocolViolationf(name, "truncated array header")
	}
	ndim := int32(binary.BigEndian.Uint32(src[0:4]))
	if ndim == 0 {
		return []any{}, nil
	}
	if ndim != 1 {
		return nil, protocolViolationf(name, "only one-dimensional arrays are supported, got %d dimensions", ndim)
	}
	off := 12
	if len(src) < off+8 {
		return nil, protocolViolationf(name, "truncated array dimension header")
	}
	size := int32(binary.BigEndian.Uint32(src[off : off+4]))
	off += 8

	elemCodec, ok := Lookup(elemOID)
	if !ok {
		return nil, protocolViolationf(name, "unsupported element OID %d", elemOID)
	}

	out := make([]any, size)
	for i := int32(0); i < size; i++ {
		if len(src) < off+4 {
			return nil, protocolViolationf(name, "truncated array element length")
		}
		elemLen := int32(binary.BigEndian.Uint32(src[off : off+4]))
		off += 4
		if elemLen < 0 {
			out[i] = nil
			continue
		}
		if len(src) < off+int(elemLen) {
			return nil, protocolViolationf(name, "truncated array element data")
		}
		v, err := elemCodec.BinaryDecode(src[off : off+int(elemLen)])
		if err != nil {
			return nil, err
		}
		out[i] = v
		off += int(elemLen)
	}
	return out, nil
}

func arrayBinaryEncode(name string, elemOID OID, v any) ([]byte, error) {
	elems, ok := v.([]any)
	if !ok {
		return nil, invalidArgf(name, "cannot encode %T as %s", v, name)
	}
	elemCodec, ok := Lookup(elemOID)
	if !ok {
		return nil, protocolViolationf(name, "unsupported element OID %d", elemOID)
	}

	hasNull := int32(0)
	for _, e := range elems {
		if e == nil {
			hasNull = 1
			break
		}
	}

	buf := make([]byte, 20)
	binary.BigEndian.PutUint32(buf[0:4], 1)
	binary.BigEndian.PutUint32(buf[4:8], uint32(hasNull))
	binary.BigEndian.PutUint32(buf[8:12], uint32(elemOID))
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(elems)))
	binary.BigEndian.PutUint32(buf[16:20], 1)

	for _, e := range elems {
		if e == nil {
			lenBuf := make([]byte, 4)
			nullLen := int32(-1)
			binary.BigEndian.PutUint32(lenBuf, uint32(nullLen))
			buf = append(buf, lenBuf...)
			continue
		}
		b, err := elemCodec.BinaryEncode(e)
		if err != nil {
			return nil, err
		}
		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(b)))
		buf = append(buf, lenBuf...)
		buf = append(buf, b...)
	}
	return buf, nil
}

func arrayBind(name string, elemOID OID, v any) (any, error) {
	elems, ok := v.([]any)
	if !ok {
		return nil, invalidArgf(name, "cannot bind %T as %s", v, name)
	}
	elemCodec, ok := Lookup(elemOID)
	if !ok {
		return nil, protocolViolationf(name, "unsupported element OID %d", elemOID)
	}
	out := make([]any, len(elems))
	for i, e := range elems {
		if e == nil {
			out[i] = nil
			continue
		}
		bound, err := elemCodec.Bind(e)
		if err != nil {
			return nil, err
		}
		out[i] = bound
	}
	return out, nil
}
