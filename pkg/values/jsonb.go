package values

import "encoding/json"

func init() {
	register(jsonCodec(OIDJSON, "json"))
	register(jsonCodec(OIDJSONB, "jsonb"))
}

// jsonCodec treats json/jsonb as opaque validated text: PGAdapter does not
// interpret JSON structurally, it only round-trips and validates it, same
// as the backend's own JSONB column type.
func jsonCodec(oid OID, name string) Codec {
	decode := func(src []byte) (any, error) {
		if !json.Valid(src) {
			return nil, invalidArgf(name, "invalid input syntax for type %s", name)
		}
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
