package values

import (
	"encoding/hex"
	"strconv"
)

func init() {
	register(Codec{
		OID:          OIDBytea,
		Name:         "bytea",
		TextDecode:   byteaTextDecode,
		BinaryDecode: func(src []byte) (any, error) { return append([]byte(nil), src...), nil },
		TextEncode:   byteaTextEncode,
		BinaryEncode: func(v any) ([]byte, error) { return asBytes(v) },
		Bind:         func(v any) (any, error) { return asBytes(v) },
	})
}

func byteaTextDecode(src []byte) (any, error) {
	if len(src) >= 2 && src[0] == '\\' && src[1] == 'x' {
		b, err := hex.DecodeString(string(src[2:]))
		if err != nil {
			return nil, invalidArgf("bytea", "invalid hex data for type bytea: %v", err)
		}
		return b, nil
	}
	return byteaDecodeOctalEscape(src)
}

// byteaDecodeOctalEscape decodes the classic escape format: \\ for a
// backslash and \NNN (three octal digits) for any other byte.
func byteaDecodeOctalEscape(src []byte) (any, error) {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		if src[i] != '\\' {
			out = append(out, src[i])
			continue
		}
		if i+1 < len(src) && src[i+1] == '\\' {
			out = append(out, '\\')
			i++
			continue
		}
		if i+3 >= len(src) {
			return nil, invalidArgf("bytea", "invalid escape sequence at position %d", i)
		}
		n, err := strconv.ParseUint(string(src[i+1:i+4]), 8, 8)
		if err != nil {
			return nil, invalidArgf("bytea", "invalid octal escape at position %d", i)
		}
		out = append(out, byte(n))
		i += 3
	}
	return out, nil
}

func byteaTextEncode(v any) ([]byte, error) {
	b, err := asBytes(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 2+hex.EncodedLen(len(b)))
	out[0] = '\\'
	out[1] = 'x'
	hex.Encode(out[2:], b)
	return out, nil
}

func asBytes(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, invalidArgf("bytea", "cannot encode %T as bytea", v)
	}
	return b, nil
}
