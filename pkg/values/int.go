package values

import (
	"encoding/binary"
	"strconv"
)

func init() {
	register(intCodec(OIDInt2, "int2", 2, 16))
	register(intCodec(OIDInt4, "int4", 4, 32))
	register(intCodec(OIDInt8, "int8", 8, 64))
}

// intCodec builds the Codec for a fixed-width signed integer type. width is
// the wire byte width (2/4/8), bits the bit size passed to strconv.
func intCodec(oid OID, name string, width int, bits int) Codec {
	return Codec{
		OID:  oid,
		Name: name,
		TextDecode: func(src []byte) (any, error) {
			n, err := strconv.ParseInt(string(src), 10, bits)
			if err != nil {
				return nil, invalidArgf(name, "invalid input syntax for type %s: %q", name, src)
			}
			return n, nil
		},
		BinaryDecode: func(src []byte) (any, error) {
			if len(src) != width {
				return nil, protocolViolationf(name, "invalid binary length %d, want %d", len(src), width)
			}
			switch width {
			case 2:
				return int64(int16(binary.BigEndian.Uint16(src))), nil
			case 4:
				return int64(int32(binary.BigEndian.Uint32(src))), nil
			default:
				return int64(binary.BigEndian.Uint64(src)), nil
			}
		},
		TextEncode: func(v any) ([]byte, error) {
			n, err := asInt64(v)
			if err != nil {
				return nil, invalidArgf(name, "cannot encode %T as %s", v, name)
			}
			return []byte(strconv.FormatInt(n, 10)), nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			n, err := asInt64(v)
			if err != nil {
				return nil, invalidArgf(name, "cannot encode %T as %s", v, name)
			}
			buf := make([]byte, width)
			switch width {
			case 2:
				binary.BigEndian.PutUint16(buf, uint16(int16(n)))
			case 4:
				binary.BigEndian.PutUint32(buf, uint32(int32(n)))
			default:
				binary.BigEndian.PutUint64(buf, uint64(n))
			}
			return buf, nil
		},
		Bind: func(v any) (any, error) { return asInt64(v) },
	}
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, invalidArgf("int", "not an integer: %T", v)
	}
}
