package values

import (
	"encoding/binary"
	"strings"
	"time"
)

// timestamptzLayouts are tried in order; time.Parse requires an exact
// layout, so we cover both 'T' and space separators and optional
// fractional seconds / offsets.
var timestamptzLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func init() {
	register(Codec{
		OID:          OIDTimestamptz,
		Name:         "timestamptz",
		TextDecode:   timestamptzTextDecode,
		BinaryDecode: timestampBinaryDecode,
		TextEncode:   timestamptzTextEncode,
		BinaryEncode: timestampBinaryEncode,
		Bind:         func(v any) (any, error) { return asTime(v) },
	})
	register(Codec{
		OID:          OIDTimestamp,
		Name:         "timestamp",
		TextDecode:   timestamptzTextDecode,
		BinaryDecode: timestampBinaryDecode,
		TextEncode:   timestamptzTextEncode,
		BinaryEncode: timestampBinaryEncode,
		Bind:         func(v any) (any, error) { return asTime(v) },
	})
}

// stripWrapping trims one layer of surrounding parentheses or quotes and
// any leading/trailing whitespace, tolerating the wrapped timestamp
// literals some drivers produce.
func stripWrapping(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '(' && last == ')') || (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

func timestamptzTextDecode(src []byte) (any, error) {
	s := stripWrapping(string(src))
	for _, layout := range timestamptzLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	// No recognizable layout. Offset-less inputs were already tried above
	// and are read as UTC; the session's TimeZone setting is not applied.
	return nil, invalidArgf("timestamptz", "invalid input syntax for type timestamp: %q", src)
}

func timestampBinaryDecode(src []byte) (any, error) {
	if len(src) != 8 {
		return nil, protocolViolationf("timestamptz", "invalid binary length %d", len(src))
	}
	micros := int64(binary.BigEndian.Uint64(src))
	return pgEpoch.Add(time.Duration(micros) * time.Microsecond), nil
}

func timestamptzTextEncode(v any) ([]byte, error) {
	t, err := asTime(v)
	if err != nil {
		return nil, invalidArgf("timestamptz", "cannot encode %T as timestamptz", v)
	}
	return []byte(t.UTC().Format("2006-01-02 15:04:05.999999Z07")), nil
}

func timestampBinaryEncode(v any) ([]byte, error) {
	t, err := asTime(v)
	if err != nil {
		return nil, invalidArgf("timestamptz", "cannot encode %T as timestamptz", v)
	}
	micros := t.UTC().Sub(pgEpoch).Microseconds()
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(micros))
	return buf, nil
}
