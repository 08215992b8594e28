package values

import (
	"encoding/binary"
	"time"
)

// pgEpoch is the PostgreSQL epoch date: 2000-01-01. Both the date and
// timestamp binary wire formats are offsets from this instant.
var pgEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const dateLayout = "2006-01-02"

func init() {
	register(Codec{
		OID:          OIDDate,
		Name:         "date",
		TextDecode:   dateTextDecode,
		BinaryDecode: dateBinaryDecode,
		TextEncode:   dateTextEncode,
		BinaryEncode: dateBinaryEncode,
		Bind:         func(v any) (any, error) { return asTime(v) },
	})
}

func dateTextDecode(src []byte) (any, error) {
	t, err := time.Parse(dateLayout, string(src))
	if err != nil {
		return nil, invalidArgf("date", "invalid input syntax for type date: %q", src)
	}
	return t, nil
}

func dateBinaryDecode(src []byte) (any, error) {
	if len(src) != 4 {
		return nil, protocolViolationf("date", "invalid binary length %d", len(src))
	}
	days := int32(binary.BigEndian.Uint32(src))
	return pgEpoch.AddDate(0, 0, int(days)), nil
}

func dateTextEncode(v any) ([]byte, error) {
	t, err := asTime(v)
	if err != nil {
		return nil, invalidArgf("date", "cannot encode %T as date", v)
	}
	return []byte(t.Format(dateLayout)), nil
}

func dateBinaryEncode(v any) ([]byte, error) {
	t, err := asTime(v)
	if err != nil {
		return nil, invalidArgf("date", "cannot encode %T as date", v)
	}
	days := int32(t.UTC().Sub(pgEpoch).Hours() / 24)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(days))
	return buf, nil
}

func asTime(v any) (time.Time, error) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, invalidArgf("date", "not a time.Time: %T", v)
	}
	return t, nil
}
