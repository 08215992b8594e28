package backend

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/spanner"
	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/values"
)

// oidForSpannerType maps a Cloud Spanner column type to the PostgreSQL OID
// the frontend advertises in RowDescription, following the type mapping
// table.
func oidForSpannerType(t *sppb.Type) values.OID {
	switch t.GetCode() {
	case sppb.TypeCode_BOOL:
		return values.OIDBool
	case sppb.TypeCode_INT64:
		return values.OIDInt8
	case sppb.TypeCode_FLOAT64:
		return values.OIDFloat8
	case sppb.TypeCode_FLOAT32:
		return values.OIDFloat4
	case sppb.TypeCode_STRING:
		return values.OIDText
	case sppb.TypeCode_BYTES:
		return values.OIDBytea
	case sppb.TypeCode_TIMESTAMP:
		return values.OIDTimestamptz
	case sppb.TypeCode_DATE:
		return values.OIDDate
	case sppb.TypeCode_NUMERIC:
		return values.OIDNumeric
	case sppb.TypeCode_JSON:
		return values.OIDJSONB
	case sppb.TypeCode_ARRAY:
		return arrayOIDFor(oidForSpannerType(t.GetArrayElementType()))
	default:
		return values.OIDText
	}
}

// arrayOIDFor returns the one-dimensional array OID for a scalar element
// OID, falling back to text[] for anything pgadapter's values registry
// doesn't carry an array Codec for.
func arrayOIDFor(elem values.OID) values.OID {
	switch elem {
	case values.OIDBool:
		return values.OIDBoolArray
	case values.OIDBytea:
		return values.OIDByteaArray
	case values.OIDInt2:
		return values.OIDInt2Array
	case values.OIDInt4:
		return values.OIDInt4Array
	case values.OIDInt8:
		return values.OIDInt8Array
	case values.OIDText:
		return values.OIDTextArray
	case values.OIDVarchar:
		return values.OIDVarcharArray
	case values.OIDFloat4:
		return values.OIDFloat4Array
	case values.OIDFloat8:
		return values.OIDFloat8Array
	case values.OIDNumeric:
		return values.OIDNumericArray
	case values.OIDTimestamptz:
		return values.OIDTimestamptzArray
	case values.OIDJSONB:
		return values.OIDJSONBArray
	default:
		return values.OIDTextArray
	}
}

// oidForSpannerTypeName maps information_schema.columns' spanner_type text
// form (e.g. "STRING(MAX)", "ARRAY<INT64>") to a wire OID, for resolving a
// COPY target's column types up front where only the schema
// catalog, not a live query result, is available to type from.
func oidForSpannerTypeName(spannerType string) values.OID {
	t := strings.ToUpper(strings.TrimSpace(spannerType))
	if strings.HasPrefix(t, "ARRAY<") && strings.HasSuffix(t, ">") {
		return arrayOIDFor(oidForSpannerTypeName(t[len("ARRAY<") : len(t)-1]))
	}
	if idx := strings.IndexByte(t, '('); idx >= 0 {
		t = t[:idx]
	}
	switch t {
	case "BOOL":
		return values.OIDBool
	case "INT64":
		return values.OIDInt8
	case "FLOAT64":
		return values.OIDFloat8
	case "FLOAT32":
		return values.OIDFloat4
	case "STRING":
		return values.OIDText
	case "BYTES":
		return values.OIDBytea
	case "TIMESTAMP":
		return values.OIDTimestamptz
	case "DATE":
		return values.OIDDate
	case "NUMERIC":
		return values.OIDNumeric
	case "JSONB":
		return values.OIDJSONB
	default:
		return values.OIDText
	}
}

// decodeColumn converts one spanner.GenericColumnValue into the Go value
// shape the matching values.Codec's TextEncode/BinaryEncode expects, or nil
// if the column is SQL NULL. This is the inverse half of the values
// package: values.Decode turns wire bytes into a Go value that a Codec's
// Bind makes into a Spanner bind parameter, decodeColumn turns a Spanner
// result column into the value a Codec can render back onto the wire.
func decodeColumn(gcv spanner.GenericColumnValue) (any, error) {
	switch gcv.Type.GetCode() {
	case sppb.TypeCode_BOOL:
		var v spanner.NullBool
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding bool column: %w", err)
		}
		if !v.Valid {
			return nil, nil
		}
		return v.Bool, nil
	case sppb.TypeCode_INT64:
		var v spanner.NullInt64
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding int64 column: %w", err)
		}
		if !v.Valid {
			return nil, nil
		}
		return v.Int64, nil
	case sppb.TypeCode_FLOAT64:
		var v spanner.NullFloat64
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding float64 column: %w", err)
		}
		if !v.Valid {
			return nil, nil
		}
		return v.Float64, nil
	case sppb.TypeCode_FLOAT32:
		var v spanner.NullFloat32
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding float32 column: %w", err)
		}
		if !v.Valid {
			return nil, nil
		}
		return float64(v.Float32), nil
	case sppb.TypeCode_STRING, sppb.TypeCode_JSON:
		var v spanner.NullString
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding string column: %w", err)
		}
		if !v.Valid {
			return nil, nil
		}
		return v.StringVal, nil
	case sppb.TypeCode_BYTES:
		var v []byte
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding bytes column: %w", err)
		}
		return v, nil
	case sppb.TypeCode_TIMESTAMP:
		var v spanner.NullTime
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding timestamp column: %w", err)
		}
		if !v.Valid {
			return nil, nil
		}
		return v.Time, nil
	case sppb.TypeCode_DATE:
		var v spanner.NullDate
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding date column: %w", err)
		}
		if !v.Valid {
			return nil, nil
		}
		return dateToTime(v.Date), nil
	case sppb.TypeCode_NUMERIC:
		var v spanner.NullNumeric
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding numeric column: %w", err)
		}
		if !v.Valid {
			return nil, nil
		}
		return numericFromRat(&v.Numeric), nil
	case sppb.TypeCode_ARRAY:
		return decodeArrayColumn(gcv)
	default:
		var v spanner.NullString
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding column of type %s: %w", gcv.Type.GetCode(), err)
		}
		if !v.Valid {
			return nil, nil
		}
		return v.StringVal, nil
	}
}

func dateToTime(d civil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// numericScale is generous enough not to lose precision for the values
// Spanner NUMERIC can hold (up to 9 fractional digits).
const numericScale = 9

// numericFromRat renders a *big.Rat as the pgtype.Numeric values.numeric's
// TextEncode expects, round-tripping through decimal text rather than
// reaching into pgtype's internal representation.
func numericFromRat(r *big.Rat) any {
	if r == nil {
		return nil
	}
	var n pgtype.Numeric
	if err := n.Scan(r.FloatString(numericScale)); err != nil {
		return nil
	}
	return n
}

func decodeArrayColumn(gcv spanner.GenericColumnValue) (any, error) {
	elemType := gcv.Type.GetArrayElementType()
	switch elemType.GetCode() {
	case sppb.TypeCode_BOOL:
		var v []spanner.NullBool
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding bool array column: %w", err)
		}
		return nullableSlice(v, func(e spanner.NullBool) (any, bool) { return e.Bool, e.Valid }), nil
	case sppb.TypeCode_INT64:
		var v []spanner.NullInt64
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding int64 array column: %w", err)
		}
		return nullableSlice(v, func(e spanner.NullInt64) (any, bool) { return e.Int64, e.Valid }), nil
	case sppb.TypeCode_FLOAT64:
		var v []spanner.NullFloat64
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding float64 array column: %w", err)
		}
		return nullableSlice(v, func(e spanner.NullFloat64) (any, bool) { return e.Float64, e.Valid }), nil
	case sppb.TypeCode_STRING, sppb.TypeCode_JSON:
		var v []spanner.NullString
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding string array column: %w", err)
		}
		return nullableSlice(v, func(e spanner.NullString) (any, bool) { return e.StringVal, e.Valid }), nil
	case sppb.TypeCode_TIMESTAMP:
		var v []spanner.NullTime
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding timestamp array column: %w", err)
		}
		return nullableSlice(v, func(e spanner.NullTime) (any, bool) { return e.Time, e.Valid }), nil
	case sppb.TypeCode_NUMERIC:
		var v []spanner.NullNumeric
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding numeric array column: %w", err)
		}
		return nullableSlice(v, func(e spanner.NullNumeric) (any, bool) { return numericFromRat(&e.Numeric), e.Valid }), nil
	default:
		var v []spanner.NullString
		if err := gcv.Decode(&v); err != nil {
			return nil, fmt.Errorf("decoding array column of element type %s: %w", elemType.GetCode(), err)
		}
		return nullableSlice(v, func(e spanner.NullString) (any, bool) { return e.StringVal, e.Valid }), nil
	}
}

// nullableSlice converts a slice of Spanner's NullXxx wrapper types into a
// []any of either the unwrapped value or nil, the shape values.arrayCodec's
// TextEncode expects for its element slice.
func nullableSlice[T any](in []T, unwrap func(T) (any, bool)) []any {
	out := make([]any, len(in))
	for i, e := range in {
		if v, ok := unwrap(e); ok {
			out[i] = v
		} else {
			out[i] = nil
		}
	}
	return out
}
