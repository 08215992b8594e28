package values

func init() {
	register(textCodec(OIDText, "text"))
	register(textCodec(OIDVarchar, "varchar"))
}

// textCodec builds the Codec shared by text and varchar: UTF-8 bytes in
// both text and binary wire form, grounded directly on StringParser.java
// (stringParse/binaryParse are both identity over the raw bytes as UTF-8).
func textCodec(oid OID, name string) Codec {
	decode := func(src []byte) (any, error) {
		return string(src), nil
	}
	encode := func(v any) ([]byte, error) {
		s, ok := v.(string)
		if !ok {
			return nil, invalidArgf(name, "cannot encode %T as %s", v, name)
		}
		return []byte(s), nil
	}
	return Codec{
		OID:          oid,
		Name:         name,
		TextDecode:   decode,
		BinaryDecode: decode,
		TextEncode:   encode,
		BinaryEncode: encode,
		Bind: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, invalidArgf(name, "cannot bind %T as %s", v, name)
			}
			return s, nil
		},
	}
}
