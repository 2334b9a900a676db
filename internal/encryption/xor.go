package encryption

// XORStream is a cipher.Stream that XORs data with a repeating key.
// Its position carries across calls, so chunked use matches a single call over the whole input.
type XORStream struct {
	key []byte
	pos int
}

// NewXORStream returns a stream over a copy of key. The key must not be empty.
func NewXORStream(key []byte) (*XORStream, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	return &XORStream{key: append([]byte(nil), key...)}, nil
}

// XORKeyStream sets dst[i] = src[i] ^ key[(pos+i) mod len(key)]. dst and src may overlap entirely.
func (s *XORStream) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("encryption: output smaller than input")
	}

	n := len(s.key)

	for i, b := range src {
		dst[i] = b ^ s.key[s.pos]

		s.pos++
		if s.pos == n {
			s.pos = 0
		}
	}
}

// XOR returns data XORed with the repeating key. Applying it twice with the same key restores data.
func XOR(data, key []byte) ([]byte, error) {
	stream, err := NewXORStream(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)

	return out, nil
}
