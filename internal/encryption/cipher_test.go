package encryption_test

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"testing"

	. "github.com/onsi/gomega"
	"pgregory.net/rapid"

	"github.com/idelchi/modelseal/internal/encryption"
	"github.com/idelchi/modelseal/internal/errkind"
)

func TestXORSelfInverse(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		key := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "key")

		once, err := encryption.XOR(data, key)
		if err != nil {
			t.Fatal(err)
		}

		twice, err := encryption.XOR(once, key)
		if err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(twice, data) {
			t.Fatalf("xor twice = %x, want %x", twice, data)
		}
	})
}

func TestXORStreamCarriesPositionAcrossChunks(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 2048).Draw(t, "data")
		key := rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(t, "key")
		chunk := rapid.IntRange(1, 300).Draw(t, "chunk")

		want, err := encryption.XOR(data, key)
		if err != nil {
			t.Fatal(err)
		}

		stream, err := encryption.NewXORStream(key)
		if err != nil {
			t.Fatal(err)
		}

		var got bytes.Buffer

		if _, err := encryption.Transform(&got, bytes.NewReader(data), stream, chunk); err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(got.Bytes(), want) {
			t.Fatalf("chunked xor with chunk %d differs from one-shot xor", chunk)
		}
	})
}

func TestXORKnownOutput(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	out, err := encryption.XOR([]byte{0x00, 0xFF, 0x0F, 0xF0, 0xAA}, []byte{0x0F, 0xF0})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out).To(Equal([]byte{0x0F, 0x0F, 0x00, 0x00, 0xA5}))
}

func TestXOREmptyKey(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	_, err := encryption.XOR([]byte("data"), nil)
	g.Expect(errors.Is(err, errkind.ErrCrypto)).To(BeTrue())
	g.Expect(errkind.Kind(err)).To(Equal("CryptoError"))
}

func TestCFBChunkedMatchesOneShot(t *testing.T) {
	t.Parallel()

	key := encryption.GenerateAESKey()
	iv := encryption.GenerateIV()

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}

	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(t, "data")
		chunk := rapid.IntRange(1, 100).Draw(t, "chunk")

		want := make([]byte, len(data))
		cipher.NewCFBEncrypter(block, iv).XORKeyStream(want, data) //nolint:staticcheck // reference

		enc, err := encryption.NewCFBEncrypter(key, iv)
		if err != nil {
			t.Fatal(err)
		}

		var got bytes.Buffer

		if _, err := encryption.Transform(&got, bytes.NewReader(data), enc, chunk); err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(got.Bytes(), want) {
			t.Fatalf("chunked CFB with chunk %d differs from one-shot CFB", chunk)
		}

		dec, err := encryption.NewCFBDecrypter(key, iv)
		if err != nil {
			t.Fatal(err)
		}

		var plain bytes.Buffer

		if _, err := encryption.Transform(&plain, bytes.NewReader(want), dec, chunk+7); err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(plain.Bytes(), data) {
			t.Fatal("CFB round trip failed")
		}
	})
}

func TestTransformDefaultChunk(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	data := bytes.Repeat([]byte{0x42}, encryption.DefaultChunkSize+17)

	stream, err := encryption.NewXORStream([]byte{0x42})
	g.Expect(err).ToNot(HaveOccurred())

	var out bytes.Buffer

	n, err := encryption.Transform(&out, bytes.NewReader(data), stream, 0)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(n).To(Equal(int64(len(data))))
	g.Expect(out.Bytes()).To(Equal(make([]byte, len(data))))
}

func TestCFBRejectsBadKeyMaterial(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	_, err := encryption.NewCFBEncrypter(make([]byte, 16), encryption.GenerateIV())
	g.Expect(err).To(MatchError(encryption.ErrKeySize))

	_, err = encryption.NewCFBDecrypter(encryption.GenerateAESKey(), make([]byte, 8))
	g.Expect(errors.Is(err, errkind.ErrCrypto)).To(BeTrue())
}

func TestGeneratedKeysAreFresh(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	g.Expect(encryption.GenerateAESKey()).To(HaveLen(encryption.AESKeySize))
	g.Expect(encryption.GenerateIV()).To(HaveLen(encryption.IVSize))
	g.Expect(encryption.GenerateXORKey()).To(HaveLen(encryption.XORKeySize))
	g.Expect(encryption.GenerateAESKey()).ToNot(Equal(encryption.GenerateAESKey()))
}
