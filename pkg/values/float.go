package values

import (
	"encoding/binary"
	"math"
	"strconv"
)

func init() {
	register(Codec{
		OID:          OIDFloat4,
		Name:         "float4",
		TextDecode:   float4TextDecode,
		BinaryDecode: float4BinaryDecode,
		TextEncode:   float4TextEncode,
		BinaryEncode: float4BinaryEncode,
		Bind:         func(v any) (any, error) { return asFloat64(v) },
	})
	register(Codec{
		OID:          OIDFloat8,
		Name:         "float8",
		TextDecode:   float8TextDecode,
		BinaryDecode: float8BinaryDecode,
		TextEncode:   float8TextEncode,
		BinaryEncode: float8BinaryEncode,
		Bind:         func(v any) (any, error) { return asFloat64(v) },
	})
}

func float4TextDecode(src []byte) (any, error) {
	f, err := strconv.ParseFloat(string(src), 32)
	if err != nil {
		return nil, invalidArgf("float4", "invalid input syntax for type real: %q", src)
	}
	return float64(float32(f)), nil
}

func float4BinaryDecode(src []byte) (any, error) {
	if len(src) != 4 {
		return nil, protocolViolationf("float4", "invalid binary length %d", len(src))
	}
	return float64(math.Float32frombits(binary.BigEndian.Uint32(src))), nil
}

func float4TextEncode(v any) ([]byte, error) {
	f, err := asFloat64(v)
	if err != nil {
		return nil, invalidArgf("float4", "cannot encode %T as float4", v)
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 32)), nil
}

func float4BinaryEncode(v any) ([]byte, error) {
	f, err := asFloat64(v)
	if err != nil {
		return nil, invalidArgf("float4", "cannot encode %T as float4", v)
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
	return buf, nil
}

func float8TextDecode(src []byte) (any, error) {
	f, err := strconv.ParseFloat(string(src), 64)
	if err != nil {
		return nil, invalidArgf("float8", "invalid input syntax for type double precision: %q", src)
	}
	return f, nil
}

func float8BinaryDecode(src []byte) (any, error) {
	if len(src) != 8 {
		return nil, protocolViolationf("float8", "invalid binary length %d", len(src))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(src)), nil
}

func float8TextEncode(v any) ([]byte, error) {
	f, err := asFloat64(v)
	if err != nil {
		return nil, invalidArgf("float8", "cannot encode %T as float8", v)
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func float8BinaryEncode(v any) ([]byte, error) {
	f, err := asFloat64(v)
	if err != nil {
		return nil, invalidArgf("float8", "cannot encode %T as float8", v)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(f))
	return buf, nil
}

func asFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	default:
		return 0, invalidArgf("float", "not a float: %T", v)
	}
}
