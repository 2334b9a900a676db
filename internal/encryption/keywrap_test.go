package encryption_test

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	. "github.com/onsi/gomega"
	"pgregory.net/rapid"

	"github.com/idelchi/modelseal/internal/encryption"
	"github.com/idelchi/modelseal/internal/errkind"
)

//nolint:gochecknoglobals
var (
	testKey = sync.OnceValue(func() *rsa.PrivateKey {
		key, err := encryption.GenerateKeyPair(encryption.MinRSABits)
		if err != nil {
			panic(err)
		}

		return key
	})

	otherKey = sync.OnceValue(func() *rsa.PrivateKey {
		key, err := encryption.GenerateKeyPair(encryption.MinRSABits)
		if err != nil {
			panic(err)
		}

		return key
	})
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	t.Parallel()

	priv := testKey()

	rapid.Check(t, func(t *rapid.T) {
		key := rapid.SliceOfN(rapid.Byte(), encryption.AESKeySize, encryption.AESKeySize).Draw(t, "key")

		wrapped, err := encryption.Wrap(key, &priv.PublicKey)
		if err != nil {
			t.Fatal(err)
		}

		unwrapped, err := encryption.Unwrap(wrapped, priv)
		if err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(unwrapped, key) {
			t.Fatal("unwrap(wrap(k)) != k")
		}
	})
}

func TestWrapIsProbabilistic(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	key := encryption.GenerateAESKey()

	first, err := encryption.Wrap(key, &testKey().PublicKey)
	g.Expect(err).ToNot(HaveOccurred())

	second, err := encryption.Wrap(key, &testKey().PublicKey)
	g.Expect(err).ToNot(HaveOccurred())

	g.Expect(first).ToNot(Equal(second))
	g.Expect(first).To(HaveLen(testKey().Size()))
}

func TestUnwrapFailuresAreGeneric(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	wrapped, err := encryption.Wrap(encryption.GenerateAESKey(), &testKey().PublicKey)
	g.Expect(err).ToNot(HaveOccurred())

	_, wrongKeyErr := encryption.Unwrap(wrapped, otherKey())

	corrupted := bytes.Clone(wrapped)
	corrupted[len(corrupted)/2] ^= 0x01

	_, corruptErr := encryption.Unwrap(corrupted, testKey())

	_, truncatedErr := encryption.Unwrap(wrapped[:10], testKey())

	for _, err := range []error{wrongKeyErr, corruptErr, truncatedErr} {
		g.Expect(err).To(MatchError(encryption.ErrUnwrap))
		g.Expect(errors.Is(err, errkind.ErrCrypto)).To(BeTrue())
		g.Expect(err.Error()).To(Equal(encryption.ErrUnwrap.Error()))
	}
}

func TestGenerateKeyPairRejectsWeakKeys(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	_, err := encryption.GenerateKeyPair(1024)
	g.Expect(errors.Is(err, errkind.ErrCrypto)).To(BeTrue())
}

func TestSaveAndLoadKeyPair(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	dir := t.TempDir()
	pubPath := filepath.Join(dir, "model_public_key.pem")
	privPath := filepath.Join(dir, "model_private_key.pem")

	g.Expect(encryption.SaveKeyPair(testKey(), pubPath, privPath)).To(Succeed())

	info, err := os.Stat(privPath)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

	pub, err := encryption.LoadPublicKey(pubPath)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(pub.Equal(&testKey().PublicKey)).To(BeTrue())

	priv, err := encryption.LoadPrivateKey(privPath)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(priv.Equal(testKey())).To(BeTrue())

	pemData, err := os.ReadFile(pubPath)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(pemData)).To(HavePrefix("-----BEGIN PUBLIC KEY-----"))
}

func TestLoadPKCS1PrivateKey(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "legacy.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(testKey())})
	g.Expect(os.WriteFile(path, data, 0o600)).To(Succeed())

	priv, err := encryption.LoadPrivateKey(path)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(priv.Equal(testKey())).To(BeTrue())
}

func TestLoadKeyErrors(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pem")
	g.Expect(os.WriteFile(garbage, []byte("not a pem file"), 0o600)).To(Succeed())

	_, err := encryption.LoadPublicKey(garbage)
	g.Expect(errors.Is(err, errkind.ErrCrypto)).To(BeTrue())

	_, err = encryption.LoadPrivateKey(filepath.Join(dir, "missing.pem"))
	g.Expect(err).To(MatchError(ContainSubstring("reading key file")))
}

func TestPublicKeyDigest(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	ref, err := encryption.PublicKeyDigest(&testKey().PublicKey)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(strings.HasPrefix(ref, "sha256:")).To(BeTrue())
	g.Expect(ref).To(HaveLen(len("sha256:") + 64))

	other, err := encryption.PublicKeyDigest(&otherKey().PublicKey)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(other).ToNot(Equal(ref))
}
