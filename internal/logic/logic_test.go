package logic_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/container"
	"github.com/idelchi/modelseal/internal/encryption"
	"github.com/idelchi/modelseal/internal/errkind"
	"github.com/idelchi/modelseal/internal/license"
	"github.com/idelchi/modelseal/internal/logging"
	"github.com/idelchi/modelseal/internal/logic"
)

const testKeyHex = "00112233445566778899aabbccddeeff"

//nolint:gochecknoglobals
var device = license.DeviceInfo{MAC: "aa:bb:cc:dd:ee:ff", Hardware: "Intel(R) Xeon(R) CPU"}

func newConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.ChunkSize = 5
	cfg.PrivateKey = filepath.Join(t.TempDir(), "missing.pem")
	cfg.PublicKey = filepath.Join(t.TempDir(), "missing.pub")
	cfg.Args = args

	return cfg
}

// writeModel writes a safetensors-shaped file and returns its path and content.
func writeModel(g *WithT, dir, name string) (string, []byte) {
	header := []byte(`{"__metadata__":{"format":"pt"}}`)

	data := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	data = append(data, header...)
	data = append(data, bytes.Repeat([]byte("tensor"), 100)...)

	path := filepath.Join(dir, name)
	g.Expect(os.WriteFile(path, data, 0o600)).To(Succeed())

	return path, data
}

func TestEncryptDecryptIntoDirectories(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)
	dir := t.TempDir()

	model, original := writeModel(g, dir, "model.safetensors")

	encDir := filepath.Join(dir, "enc")
	g.Expect(os.Mkdir(encDir, 0o750)).To(Succeed())

	var out bytes.Buffer

	cfg := newConfig(t, model, encDir)
	cfg.Key = testKeyHex

	g.Expect(logic.RunEncrypt(cfg, logging.Discard(), &out)).To(Succeed())
	g.Expect(out.String()).To(ContainSubstring("Layout: preserving"))
	g.Expect(out.String()).To(ContainSubstring("Key:    " + testKeyHex))

	encrypted := filepath.Join(encDir, "model.safetensors")
	g.Expect(encrypted).To(BeARegularFile())

	out.Reset()

	decDir := filepath.Join(dir, "dec", "nested")
	cfg = newConfig(t, encrypted, decDir, testKeyHex)

	g.Expect(logic.RunDecrypt(context.Background(), cfg, logging.Discard(), &out)).To(Succeed())
	g.Expect(out.String()).To(ContainSubstring("MD5 verified"))

	restored, err := os.ReadFile(filepath.Join(decDir, "model.safetensors"))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(restored).To(Equal(original))
}

func TestDecryptStripsEncSuffix(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)
	dir := t.TempDir()

	model, original := writeModel(g, dir, "model.bin")
	encrypted := filepath.Join(dir, "model.bin.enc")

	cfg := newConfig(t, model, encrypted, "xor")
	cfg.Layout = "flagged"

	var out bytes.Buffer

	g.Expect(logic.RunEncrypt(cfg, logging.Discard(), &out)).To(Succeed())
	g.Expect(out.String()).To(ContainSubstring("Layout: flagged"))

	// The generated key is printed; the configured key is used for decryption.
	var key string

	for _, line := range strings.Split(out.String(), "\n") {
		if rest, ok := strings.CutPrefix(line, "Key:"); ok {
			key = strings.TrimSpace(rest)
		}
	}

	g.Expect(key).To(HaveLen(32))

	cfg = newConfig(t, encrypted, filepath.Join(dir, "out"))
	cfg.Key = key

	g.Expect(logic.RunDecrypt(context.Background(), cfg, logging.Discard(), io.Discard)).To(Succeed())

	restored, err := os.ReadFile(filepath.Join(dir, "out", "model.bin"))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(restored).To(Equal(original))
}

func TestEncryptArgumentErrors(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)
	dir := t.TempDir()

	model, _ := writeModel(g, dir, "model.bin")

	err := logic.RunEncrypt(newConfig(t, model), logging.Discard(), io.Discard)
	g.Expect(err).To(MatchError(ContainSubstring("requires a model path")))

	err = logic.RunEncrypt(newConfig(t, model, dir+"/out.bin", "rot13"), logging.Discard(), io.Discard)
	g.Expect(errors.Is(err, errkind.ErrFormat)).To(BeTrue())

	err = logic.RunEncrypt(newConfig(t, model, model), logging.Discard(), io.Discard)
	g.Expect(err).To(MatchError(ContainSubstring("refusing to overwrite")))
}

func TestHybridWithGeneratedKeyPair(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)
	dir := t.TempDir()

	keyCfg := newConfig(t)
	keyCfg.PublicKey = filepath.Join(dir, "pub.pem")
	keyCfg.PrivateKey = filepath.Join(dir, "priv.pem")

	var out bytes.Buffer

	g.Expect(logic.RunKeygen(keyCfg, logging.Discard(), &out)).To(Succeed())
	g.Expect(out.String()).To(ContainSubstring("Reference:   sha256:"))

	model, original := writeModel(g, dir, "model.safetensors")
	encrypted := filepath.Join(dir, "model.safetensors.enc")

	cfg := newConfig(t, model, encrypted, "hybrid")
	cfg.PublicKey = keyCfg.PublicKey

	out.Reset()
	g.Expect(logic.RunEncrypt(cfg, logging.Discard(), &out)).To(Succeed())
	g.Expect(out.String()).To(ContainSubstring("pass --reveal-key"))
	g.Expect(out.String()).ToNot(MatchRegexp(`Key:\s+[0-9a-f]{64}`))

	revealed := newConfig(t, model, filepath.Join(dir, "revealed.enc"), "hybrid")
	revealed.PublicKey = keyCfg.PublicKey
	revealed.RevealKey = true

	out.Reset()
	g.Expect(logic.RunEncrypt(revealed, logging.Discard(), &out)).To(Succeed())
	g.Expect(out.String()).To(MatchRegexp(`Key:\s+[0-9a-f]{64}\n`))

	// Explicit private key argument.
	cfg = newConfig(t, encrypted, filepath.Join(dir, "a"), keyCfg.PrivateKey)
	g.Expect(logic.RunDecrypt(context.Background(), cfg, logging.Discard(), io.Discard)).To(Succeed())

	// Configured private key.
	cfg = newConfig(t, encrypted, filepath.Join(dir, "b"))
	cfg.PrivateKey = keyCfg.PrivateKey
	g.Expect(logic.RunDecrypt(context.Background(), cfg, logging.Discard(), io.Discard)).To(Succeed())

	for _, sub := range []string{"a", "b"} {
		restored, err := os.ReadFile(filepath.Join(dir, sub, "model.safetensors"))
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(restored).To(Equal(original))
	}
}

func TestDecryptWithoutKeySource(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)
	dir := t.TempDir()

	model, _ := writeModel(g, dir, "model.bin")
	encrypted := filepath.Join(dir, "model.bin.enc")

	cfg := newConfig(t, model, encrypted)
	cfg.Key = testKeyHex
	g.Expect(logic.RunEncrypt(cfg, logging.Discard(), io.Discard)).To(Succeed())

	cfg = newConfig(t, encrypted, filepath.Join(dir, "out"))

	err := logic.RunDecrypt(context.Background(), cfg, logging.Discard(), io.Discard)
	g.Expect(errors.Is(err, logic.ErrNoKey)).To(BeTrue())
	g.Expect(filepath.Join(dir, "out", "model.bin")).ToNot(BeAnExistingFile())
}

func TestDecryptUnrecognizedInput(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)
	dir := t.TempDir()

	plain := filepath.Join(dir, "notes.txt")
	g.Expect(os.WriteFile(plain, []byte("just text"), 0o600)).To(Succeed())

	cfg := newConfig(t, plain, filepath.Join(dir, "out"), testKeyHex)

	err := logic.RunDecrypt(context.Background(), cfg, logging.Discard(), io.Discard)
	g.Expect(errors.Is(err, errkind.ErrFormat)).To(BeTrue())
}

func TestKeyResolverFromLicenseAuthority(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	cfg := newConfig(t)
	cfg.Grants = filepath.Join("..", "license", "testdata", "grants.yml")

	handler, err := logic.NewAuthorityHandler(cfg, logging.Discard(), prometheus.NewRegistry())
	g.Expect(err).ToNot(HaveOccurred())

	server := httptest.NewServer(handler)
	defer server.Close()

	cfg.LicenseURL = server.URL + license.VerifyKeyPath
	cfg.APIKey = "team-a"

	keys, err := logic.NewKeyResolver(cfg, logging.Discard(), "", license.ClientOpt.WithProbe(license.StaticProbe(device)))
	g.Expect(err).ToNot(HaveOccurred())

	proc := encryption.NewProcessor(cfg, nil)

	cfg.Key = testKeyHex
	sealed, _, err := proc.EncryptBytes([]byte("weights"))
	g.Expect(err).ToNot(HaveOccurred())

	// The resolver consults the authority once --key is no longer set.
	cfg.Key = ""

	plain, res, err := proc.DecryptBytes(context.Background(), sealed, keys)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(plain).To(Equal([]byte("weights")))
	g.Expect(res.Verification.Match).To(BeTrue())

	var out bytes.Buffer

	g.Expect(logic.RunRequestKey(context.Background(), cfg, logging.Discard(), &out,
		license.ClientOpt.WithProbe(license.StaticProbe(device)))).To(Succeed())
	g.Expect(out.String()).To(Equal(testKeyHex + "\n"))

	resp, err := http.Get(server.URL + logic.MetricsPath) //nolint:noctx
	g.Expect(err).ToNot(HaveOccurred())

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(body)).To(ContainSubstring(`modelseal_license_requests_total{outcome="granted"} 2`))
}

func TestKeyResolverRejectsBadKeyArgument(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	_, err := logic.NewKeyResolver(newConfig(t), logging.Discard(), "not-hex")
	g.Expect(errors.Is(err, errkind.ErrCrypto)).To(BeTrue())
}

func TestInspect(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)
	dir := t.TempDir()

	model, _ := writeModel(g, dir, "model.safetensors")
	encrypted := filepath.Join(dir, "model.enc")

	cfg := newConfig(t, model, encrypted)
	cfg.Key = testKeyHex
	cfg.Author = "inspector"
	g.Expect(logic.RunEncrypt(cfg, logging.Discard(), io.Discard)).To(Succeed())

	report, err := logic.Inspect(encrypted)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(report.Recognized).To(BeTrue())
	g.Expect(report.Layout).To(Equal(container.LayoutPreserving.String()))
	g.Expect(report.Framed).To(BeTrue())
	g.Expect(report.Metadata.Author).To(Equal("inspector"))
	g.Expect(report.Header).To(HaveKeyWithValue("format", "pt"))

	report, err = logic.Inspect(model)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(report.Recognized).To(BeFalse())
	g.Expect(report.Reason).To(ContainSubstring("not found"))

	plain := filepath.Join(dir, "notes.txt")
	g.Expect(os.WriteFile(plain, []byte("x"), 0o600)).To(Succeed())

	var out bytes.Buffer

	cfg = newConfig(t, encrypted, plain)
	cfg.Parallel = 2

	g.Expect(logic.RunInspect(cfg, logging.Discard(), &out)).To(Succeed())
	g.Expect(strings.Index(out.String(), encrypted)).To(BeNumerically("<", strings.Index(out.String(), plain)))
	g.Expect(out.String()).To(ContainSubstring("author: inspector"))
	g.Expect(out.String()).To(ContainSubstring("recognized: false"))

	cfg = newConfig(t, encrypted, filepath.Join(dir, "missing"))
	g.Expect(logic.RunInspect(cfg, logging.Discard(), io.Discard)).To(MatchError(ContainSubstring("inspecting files")))
}

func TestRunFingerprint(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	var out bytes.Buffer

	g.Expect(logic.RunFingerprint(context.Background(), license.StaticProbe(device), &out)).To(Succeed())
	g.Expect(out.String()).To(ContainSubstring("Fingerprint: 6bcea956cc17537db18925864e733325"))
}

func TestRunServe(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	cfg := newConfig(t)
	g.Expect(logic.RunServe(context.Background(), cfg, logging.Discard(), io.Discard)).
		To(MatchError(ContainSubstring("--grants")))

	cfg.Grants = filepath.Join("..", "license", "testdata", "grants.yml")
	cfg.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer

	g.Expect(logic.RunServe(ctx, cfg, logging.Discard(), &out)).To(Succeed())
	g.Expect(out.String()).To(ContainSubstring("http://127.0.0.1:"))
}
