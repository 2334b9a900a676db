package encryption

import (
	"bytes"
	"context"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/container"
	"github.com/idelchi/modelseal/internal/errkind"
	"github.com/idelchi/modelseal/internal/fileutil"
	"github.com/idelchi/modelseal/internal/integrity"
	"github.com/idelchi/modelseal/internal/logging"
)

// Processor encrypts models into containers and decrypts containers back into models.
// It holds no per-call state and may be used concurrently for independent files.
type Processor struct {
	// cfg contains runtime configuration options
	cfg *config.Config

	// logger receives progress and integrity warnings
	logger *logrus.Logger

	// now returns the encryption time
	now func() time.Time
}

// NewProcessor creates a new Processor with the given configuration.
// A nil logger discards all output.
func NewProcessor(cfg *config.Config, logger *logrus.Logger) *Processor {
	return &Processor{
		cfg:    cfg,
		logger: logging.OrDiscard(logger),
		now:    time.Now,
	}
}

// EncryptFile encrypts input into output, which is written atomically.
func (p *Processor) EncryptFile(input, output string) (res *EncryptResult, err error) {
	inFile, info, err := openInput(input)
	if err != nil {
		return nil, err
	}
	defer inFile.Close()

	tc, err := fileutil.NewTempContext(output)
	if err != nil {
		return nil, fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	res, err = p.Encrypt(inFile, info.Size(), tc.TmpFile)
	if err != nil {
		return nil, fmt.Errorf("encrypting %q: %w", input, err)
	}

	const ownerReadWrite = 0o600

	if res.Size, err = tc.Commit(ownerReadWrite); err != nil {
		return nil, err
	}

	res.Output = output

	return res, nil
}

// Encrypt reads size bytes of plaintext from src and writes a container to dst.
//
//nolint:funlen
func (p *Processor) Encrypt(src io.ReaderAt, size int64, dst io.Writer) (*EncryptResult, error) {
	mode, err := container.ParseMode(p.cfg.Mode)
	if err != nil {
		return nil, err
	}

	layout, header, err := p.selectLayout(src, size)
	if err != nil {
		return nil, err
	}

	meta := container.Metadata{
		Mode:   mode,
		Time:   p.now().Unix(),
		Author: p.cfg.Author,
	}

	stream, usedKey, err := p.encryptionStream(&meta)
	if err != nil {
		return nil, err
	}

	log := p.logger.WithFields(logrus.Fields{
		"mode":   mode,
		"layout": layout,
		"size":   humanize.IBytes(uint64(max(0, size))), //nolint:gosec // clamped
	})
	log.Debug("encrypting")

	counter := &countingWriter{w: dst}
	digest := integrity.New()

	// The digest covers the original file, which starts with the preserved prefix.
	prefixOut := io.Writer(counter)
	bodyOffset := int64(0)

	if layout == container.LayoutPreserving {
		prefixOut = io.MultiWriter(counter, digest)
		bodyOffset = container.LengthPrefixSize + int64(len(header))
	}

	if err := container.WritePrefix(prefixOut, layout, header); err != nil {
		return nil, err
	}

	body := io.NewSectionReader(src, bodyOffset, size-bodyOffset)
	if _, err := Transform(counter, io.TeeReader(body, digest), stream, p.cfg.ChunkSize); err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}

	meta.ModelMD5 = hex.EncodeToString(digest.Sum(nil))

	if err := container.WriteTrailer(counter, meta, container.EncodeOptions{LegacyTrailer: p.cfg.LegacyTrailer}); err != nil {
		return nil, err
	}

	log.WithField("md5", meta.ModelMD5).Info("model encrypted")

	return &EncryptResult{
		Key:      hex.EncodeToString(usedKey),
		Layout:   layout,
		Metadata: meta,
		Size:     counter.n,
	}, nil
}

// selectLayout picks the container layout for the plaintext behind src.
func (p *Processor) selectLayout(src io.ReaderAt, size int64) (container.Layout, []byte, error) {
	if p.cfg.Layout == "flagged" {
		return container.LayoutFlagged, nil, nil
	}

	headerLen, err := container.StructuralHeaderLength(src, size)
	if err != nil {
		if p.cfg.Layout == "preserve" {
			return container.LayoutUnknown, nil, fmt.Errorf("cannot preserve structural header: %w", err)
		}

		if !errors.Is(err, errkind.ErrFormat) {
			return container.LayoutUnknown, nil, err
		}

		return container.LayoutFlagged, nil, nil
	}

	header := make([]byte, headerLen)
	if n, err := src.ReadAt(header, container.LengthPrefixSize); n != len(header) {
		return container.LayoutUnknown, nil, fmt.Errorf("reading structural header: %w", err)
	}

	return container.LayoutPreserving, header, nil
}

// encryptionStream returns the cipher for a new container and fills the mode-specific metadata.
func (p *Processor) encryptionStream(meta *container.Metadata) (cipher.Stream, []byte, error) {
	switch meta.Mode {
	case container.ModeXOR:
		xorKey := GenerateXORKey()

		if p.cfg.Key != "" {
			parsed, err := ParseHexKey(p.cfg.Key)
			if err != nil {
				return nil, nil, err
			}

			xorKey = parsed
		}

		stream, err := NewXORStream(xorKey)

		return stream, xorKey, err
	case container.ModeHybrid:
		if p.cfg.Key != "" {
			p.logger.Warn("--key is ignored in hybrid mode, a fresh AES key is generated")
		}

		pub, err := LoadPublicKey(p.cfg.PublicKey)
		if err != nil {
			return nil, nil, err
		}

		aesKey := GenerateAESKey()
		iv := GenerateIV()

		wrapped, err := Wrap(aesKey, pub)
		if err != nil {
			return nil, nil, err
		}

		ref, err := PublicKeyDigest(pub)
		if err != nil {
			return nil, nil, err
		}

		meta.AESKeyRSA = base64.StdEncoding.EncodeToString(wrapped)
		meta.IV = base64.StdEncoding.EncodeToString(iv)
		meta.RSAPubKey = ref

		stream, err := NewCFBEncrypter(aesKey, iv)

		return stream, aesKey, err
	default:
		return nil, nil, fmt.Errorf("%w: unsupported encryption mode %q", errkind.ErrFormat, meta.Mode)
	}
}

// DecryptFile decrypts the container input into output, which is written atomically.
// With strict integrity enabled, a digest mismatch fails and no output is left behind.
func (p *Processor) DecryptFile(ctx context.Context, input, output string, keys KeyResolver) (res *DecryptResult, err error) {
	inFile, info, err := openInput(input)
	if err != nil {
		return nil, err
	}
	defer inFile.Close()

	tc, err := fileutil.NewTempContext(output)
	if err != nil {
		return nil, fmt.Errorf("preparing atomic write: %w", err)
	}

	defer tc.CleanupOnError(&err)

	res, err = p.Decrypt(ctx, inFile, info.Size(), tc.TmpFile, keys)
	if err != nil {
		return res, fmt.Errorf("decrypting %q: %w", input, err)
	}

	const ownerReadWrite = 0o600

	if _, err = tc.Commit(ownerReadWrite); err != nil {
		return nil, err
	}

	res.Output = output

	return res, nil
}

// Decrypt reads the container of size bytes behind src and writes the decrypted model to dst.
// Input that is not a container fails with ErrFormat before any key is requested.
func (p *Processor) Decrypt(ctx context.Context, src io.ReaderAt, size int64, dst io.Writer, keys KeyResolver) (*DecryptResult, error) {
	index, err := container.Open(src, size)
	if err != nil {
		return nil, err
	}

	meta := index.Metadata

	log := p.logger.WithFields(logrus.Fields{
		"mode":   meta.Mode,
		"layout": index.Layout,
		"author": meta.Author,
	})
	log.Debug("decrypting")

	decKey, err := keys.ResolveKey(ctx, meta)
	if err != nil {
		return nil, err
	}

	stream, err := decryptionStream(meta, decKey)
	if err != nil {
		return nil, err
	}

	digest := integrity.New()
	out := io.MultiWriter(dst, digest)

	var written int64

	if index.Layout == container.LayoutPreserving {
		if err := container.WritePrefix(out, index.Layout, index.Header); err != nil {
			return nil, err
		}

		written = index.BodyOffset
	}

	n, err := Transform(out, index.Body(src), stream, p.cfg.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("decrypting payload: %w", err)
	}

	res := &DecryptResult{
		Layout:       index.Layout,
		Metadata:     meta,
		Verification: integrity.Compare(hex.EncodeToString(digest.Sum(nil)), meta.ModelMD5),
		Size:         written + n,
	}

	if !res.Verification.Match {
		if p.cfg.StrictIntegrity {
			return res, res.Verification.Err()
		}

		log.WithFields(logrus.Fields{
			"expected": res.Verification.Expected,
			"actual":   res.Verification.Actual,
		}).Warn("md5 mismatch, output kept")

		return res, nil
	}

	log.WithField("md5", res.Verification.Actual).Info("model decrypted and verified")

	return res, nil
}

func decryptionStream(meta container.Metadata, decKey []byte) (cipher.Stream, error) {
	switch meta.Mode {
	case container.ModeXOR:
		return NewXORStream(decKey)
	case container.ModeHybrid:
		iv, err := meta.InitVector()
		if err != nil {
			return nil, err
		}

		return NewCFBDecrypter(decKey, iv)
	default:
		return nil, fmt.Errorf("%w: unsupported encryption mode %q", errkind.ErrFormat, meta.Mode)
	}
}

// EncryptBytes encrypts an in-memory model.
func (p *Processor) EncryptBytes(plain []byte) ([]byte, *EncryptResult, error) {
	var buf bytes.Buffer

	res, err := p.Encrypt(bytes.NewReader(plain), int64(len(plain)), &buf)
	if err != nil {
		return nil, nil, err
	}

	return buf.Bytes(), res, nil
}

// DecryptBytes decrypts an in-memory container. The result is returned alongside
// an integrity error in strict mode.
func (p *Processor) DecryptBytes(ctx context.Context, data []byte, keys KeyResolver) ([]byte, *DecryptResult, error) {
	var buf bytes.Buffer

	res, err := p.Decrypt(ctx, bytes.NewReader(data), int64(len(data)), &buf, keys)
	if err != nil {
		return nil, res, err
	}

	return buf.Bytes(), res, nil
}

func openInput(path string) (*os.File, os.FileInfo, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("opening input file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck,gosec // already failing

		return nil, nil, fmt.Errorf("getting file info for %q: %w", path, err)
	}

	if info.IsDir() {
		file.Close() //nolint:errcheck,gosec // already failing

		return nil, nil, fmt.Errorf("%q is a directory", path)
	}

	return file, info, nil
}

// countingWriter counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}
