package values

func init() {
	register(Codec{
		OID:          OIDBool,
		Name:         "bool",
		TextDecode:   boolTextDecode,
		BinaryDecode: boolBinaryDecode,
		TextEncode:   boolTextEncode,
		BinaryEncode: boolBinaryEncode,
		Bind:         func(v any) (any, error) { return v, nil },
	})
}

func boolTextDecode(src []byte) (any, error) {
	switch string(src) {
	case "t", "true", "TRUE", "y", "yes", "on", "1":
		return true, nil
	case "f", "false", "FALSE", "n", "no", "off", "0":
		return false, nil
	default:
		return nil, invalidArgf("bool", "invalid input syntax for type boolean: %q", src)
	}
}

func boolBinaryDecode(src []byte) (any, error) {
	if len(src) != 1 {
		return nil, protocolViolationf("bool", "invalid binary length %d", len(src))
	}
	return src[0] != 0, nil
}

func boolTextEncode(v any) ([]byte, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, invalidArgf("bool", "cannot encode %T as bool", v)
	}
	if b {
		return []byte("t"), nil
	}
	return []byte("f"), nil
}

func boolBinaryEncode(v any) ([]byte, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, invalidArgf("bool", "cannot encode %T as bool", v)
	}
	buf := make([]byte, 1)
	if b {
		buf[0] = 1
	}
	return buf, nil
}
