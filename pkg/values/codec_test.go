package values

import (
	"testing"
	"time"
)

func TestBoolRoundTrip(t *testing.T) {
	for _, b := range []bool{true, false} {
		c, _ := Lookup(OIDBool)
		text, err := c.TextEncode(b)
		if err != nil {
			t.Fatalf("TextEncode(%v): %v", b, err)
		}
		got, err := c.TextDecode(text)
		if err != nil {
			t.Fatalf("TextDecode(%q): %v", text, err)
		}
		if got != b {
			t.Fatalf("round trip %v -> %q -> %v", b, text, got)
		}

		bin, err := c.BinaryEncode(b)
		if err != nil {
			t.Fatalf("BinaryEncode(%v): %v", b, err)
		}
		got, err = c.BinaryDecode(bin)
		if err != nil {
			t.Fatalf("BinaryDecode: %v", err)
		}
		if got != b {
			t.Fatalf("binary round trip %v -> %v", b, got)
		}
	}
}

func TestIntRoundTrip(t *testing.T) {
	for _, oid := range []OID{OIDInt2, OIDInt4, OIDInt8} {
		c, ok := Lookup(oid)
		if !ok {
			t.Fatalf("no codec for %d", oid)
		}
		for _, n := range []int64{0, 1, -1, 42, -12345} {
			text, err := c.TextEncode(n)
			if err != nil {
				t.Fatalf("TextEncode(%d): %v", n, err)
			}
			got, err := c.TextDecode(text)
			if err != nil {
				t.Fatalf("TextDecode(%q): %v", text, err)
			}
			if got != n {
				t.Fatalf("oid %d: text round trip %d -> %q -> %v", oid, n, text, got)
			}

			bin, err := c.BinaryEncode(n)
			if err != nil {
				t.Fatalf("BinaryEncode(%d): %v", n, err)
			}
			got, err = c.BinaryDecode(bin)
			if err != nil {
				t.Fatalf("BinaryDecode: %v", err)
			}
			if got != n {
				t.Fatalf("oid %d: binary round trip %d -> %v", oid, n, got)
			}
		}
	}
}

func TestByteaEscapeForms(t *testing.T) {
	c, _ := Lookup(OIDBytea)

	got, err := c.TextDecode([]byte(`\x48656c6c6f`))
	if err != nil {
		t.Fatalf("hex decode: %v", err)
	}
	if string(got.([]byte)) != "Hello" {
		t.Fatalf("hex decode = %q", got)
	}

	got, err = c.TextDecode([]byte(`\110\145\154\154\157`))
	if err != nil {
		t.Fatalf("octal decode: %v", err)
	}
	if string(got.([]byte)) != "Hello" {
		t.Fatalf("octal decode = %q", got)
	}
}

func TestDateRoundTrip(t *testing.T) {
	c, _ := Lookup(OIDDate)
	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	text, err := c.TextEncode(want)
	if err != nil {
		t.Fatalf("TextEncode: %v", err)
	}
	if string(text) != "2024-03-15" {
		t.Fatalf("TextEncode = %q", text)
	}
	got, err := c.TextDecode(text)
	if err != nil {
		t.Fatalf("TextDecode: %v", err)
	}
	if !got.(time.Time).Equal(want) {
		t.Fatalf("text round trip = %v, want %v", got, want)
	}

	bin, err := c.BinaryEncode(want)
	if err != nil {
		t.Fatalf("BinaryEncode: %v", err)
	}
	got, err = c.BinaryDecode(bin)
	if err != nil {
		t.Fatalf("BinaryDecode: %v", err)
	}
	if !got.(time.Time).Equal(want) {
		t.Fatalf("binary round trip = %v, want %v", got, want)
	}
}

// TestTimestamptzBinaryLaw: for every representable
// instant, textDecode(textEncode(t)) == t and binaryDecode(binaryEncode(t))
// == t, with binary form equal to micros since 2000-01-01 UTC.
func TestTimestamptzBinaryLaw(t *testing.T) {
	c, _ := Lookup(OIDTimestamptz)
	instants := []time.Time{
		pgEpoch,
		pgEpoch.Add(time.Microsecond),
		time.Date(2026, time.August, 3, 12, 30, 0, 0, time.UTC),
		time.Date(1999, time.December, 31, 23, 59, 59, 0, time.UTC),
	}
	for _, want := range instants {
		bin, err := c.BinaryEncode(want)
		if err != nil {
			t.Fatalf("BinaryEncode(%v): %v", want, err)
		}
		got, err := c.BinaryDecode(bin)
		if err != nil {
			t.Fatalf("BinaryDecode: %v", err)
		}
		if !got.(time.Time).Equal(want) {
			t.Fatalf("binary round trip %v -> %v", want, got)
		}

		text, err := c.TextEncode(want)
		if err != nil {
			t.Fatalf("TextEncode(%v): %v", want, err)
		}
		got, err = c.TextDecode(text)
		if err != nil {
			t.Fatalf("TextDecode(%q): %v", text, err)
		}
		if !got.(time.Time).Equal(want) {
			t.Fatalf("text round trip %v -> %q -> %v", want, text, got)
		}
	}
}

func TestArrayTextRoundTrip(t *testing.T) {
	c, _ := Lookup(OIDInt4Array)

	text, err := c.TextEncode([]any{int64(1), int64(2), nil, int64(-3)})
	if err != nil {
		t.Fatalf("TextEncode: %v", err)
	}
	if string(text) != "{1,2,NULL,-3}" {
		t.Fatalf("TextEncode = %q", text)
	}

	got, err := c.TextDecode(text)
	if err != nil {
		t.Fatalf("TextDecode: %v", err)
	}
	elems := got.([]any)
	if len(elems) != 4 || elems[0] != int64(1) || elems[2] != nil {
		t.Fatalf("TextDecode = %#v", elems)
	}
}

func TestArrayBinaryRoundTrip(t *testing.T) {
	c, _ := Lookup(OIDInt4Array)
	want := []any{int64(10), int64(20), int64(30)}

	bin, err := c.BinaryEncode(want)
	if err != nil {
		t.Fatalf("BinaryEncode: %v", err)
	}
	got, err := c.BinaryDecode(bin)
	if err != nil {
		t.Fatalf("BinaryDecode: %v", err)
	}
	elems := got.([]any)
	if len(elems) != 3 {
		t.Fatalf("len = %d", len(elems))
	}
	for i, e := range elems {
		if e != want[i] {
			t.Fatalf("elem %d = %v, want %v", i, e, want[i])
		}
	}
}

func TestDecodeNullSentinel(t *testing.T) {
	v, err := Decode(OIDInt4, FormatText, nil)
	if err != nil {
		t.Fatalf("Decode(nil): %v", err)
	}
	if v != nil {
		t.Fatalf("Decode(nil) = %v, want nil", v)
	}
}

func TestDecodeUnsupportedOID(t *testing.T) {
	_, err := Decode(OID(999999), FormatText, []byte("x"))
	if err == nil {
		t.Fatal("expected error for unsupported OID")
	}
	de, ok := err.(*DecodeError)
	if !ok || de.Class != ClassProtocolViolation {
		t.Fatalf("err = %#v, want ClassProtocolViolation", err)
	}
}
