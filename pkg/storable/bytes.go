package storable

// BytesCodec returns a Codec for raw []byte keys/values bounded by maxSize.
// The cmd/db demo and pkg/db use StringCodec instead.
func BytesCodec(maxSize uint32) Codec[[]byte] {
	return Codec[[]byte]{
		ToBytes: func(b []byte) []byte { return b },
		FromBytes: func(data []byte) []byte {
			cp := make([]byte, len(data))
			copy(cp, data)
			return cp
		},
		Bound: Bounded(maxSize, false),
	}
}

// StringCodec returns a Codec for string keys/values bounded by maxSize.
func StringCodec(maxSize uint32) Codec[string] {
	return Codec[string]{
		ToBytes:   func(s string) []byte { return []byte(s) },
		FromBytes: func(data []byte) string { return string(data) },
		Bound:     Bounded(maxSize, false),
	}
}
