// Package values implements PGAdapter's per-OID value codecs: the
// translation between PostgreSQL wire-format parameter/column values (text
// or binary) and the Go values bound into Spanner statement parameters.
//
// Each base type gets one Codec, a flat record of function pointers rather
// than a type hierarchy, directly grounded on the original implementation's
// Parser<T> subclasses (parsers/StringParser.java: stringParse/binaryParse/
// bind). Flattening the hierarchy into data keeps dispatch a single map
// lookup by OID instead of a chain of instanceof checks.
package values

import "fmt"

// OID is a PostgreSQL object identifier naming a base type on the wire.
type OID uint32

// Well-known base type OIDs, per PostgreSQL's pg_type catalog. PGAdapter
// only needs the base types it can bind and describe.
const (
	OIDBool             OID = 16
	OIDBytea            OID = 17
	OIDInt8             OID = 20
	OIDInt2             OID = 21
	OIDInt4             OID = 23
	OIDText             OID = 25
	OIDJSON             OID = 114
	OIDFloat4           OID = 700
	OIDFloat8           OID = 701
	OIDVarchar          OID = 1043
	OIDDate             OID = 1082
	OIDTimestamp        OID = 1114
	OIDTimestamptz      OID = 1184
	OIDNumeric          OID = 1700
	OIDJSONB            OID = 3802
	OIDBoolArray        OID = 1000
	OIDByteaArray       OID = 1001
	OIDInt2Array        OID = 1005
	OIDInt4Array        OID = 1007
	OIDTextArray        OID = 1009
	OIDVarcharArray     OID = 1015
	OIDInt8Array        OID = 1016
	OIDFloat4Array      OID = 1021
	OIDFloat8Array      OID = 1022
	OIDNumericArray     OID = 1231
	OIDTimestamptzArray OID = 1185
	OIDJSONBArray       OID = 3807
)

// FormatCode is the wire format (text or binary) used for a parameter or
// result column, as carried by Bind/RowDescription format-code fields.
type FormatCode int16

const (
	FormatText   FormatCode = 0
	FormatBinary FormatCode = 1
)

// ErrorClass distinguishes the two ways a decode can fail:
// bytes that parse but describe an illegal value (INVALID_ARGUMENT) versus
// bytes that are not even shaped like the declared type (PROTOCOL_VIOLATION).
type ErrorClass int

const (
	ClassInvalidArgument ErrorClass = iota
	ClassProtocolViolation
)

// DecodeError reports a failed decode along with its ErrorClass, so the
// frontend can choose the right SQLSTATE without inspecting error text.
type DecodeError struct {
	Class   ErrorClass
	Type    string
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func invalidArgf(typ, format string, args ...any) error {
	return &DecodeError{Class: ClassInvalidArgument, Type: typ, Message: fmt.Sprintf(format, args...)}
}

func protocolViolationf(typ, format string, args ...any) error {
	return &DecodeError{Class: ClassProtocolViolation, Type: typ, Message: fmt.Sprintf(format, args...)}
}

// Codec is the flattened equivalent of a Parser<T> subclass: one record of
// function pointers per base type, keyed by OID in Registry.
//
// Decode functions receive nil for a SQL NULL (wire length -1) and must
// return (nil, nil) in that case; Bind must do the same so the caller can
// place a typed Spanner NULL rather than a Go nil interface.
type Codec struct {
	OID          OID
	Name         string
	TextDecode   func(src []byte) (any, error)
	BinaryDecode func(src []byte) (any, error)
	TextEncode   func(v any) ([]byte, error)
	BinaryEncode func(v any) ([]byte, error)
	// Bind converts a decoded Go value into the representation the Spanner
	// client library accepts in a Statement's Params map, mirroring
	// StringParser.bind's statementBuilder.bind(name).to(item).
	Bind func(v any) (any, error)
}

// Registry maps every supported OID to its Codec.
var Registry = map[OID]Codec{}

func register(c Codec) {
	Registry[c.OID] = c
}

// Lookup returns the Codec for oid, or false if PGAdapter does not support
// binding parameters or describing columns of this type.
func Lookup(oid OID) (Codec, bool) {
	c, ok := Registry[oid]
	return c, ok
}

// Decode dispatches to the Codec's text or binary decoder based on format.
func Decode(oid OID, format FormatCode, src []byte) (any, error) {
	c, ok := Lookup(oid)
	if !ok {
		return nil, protocolViolationf("oid", "unsupported parameter type OID %d", oid)
	}
	if src == nil {
		return nil, nil
	}
	if format == FormatBinary {
		return c.BinaryDecode(src)
	}
	return c.TextDecode(src)
}
