// Package logic implements the bodies of the modelseal commands.
package logic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/container"
	"github.com/idelchi/modelseal/internal/encryption"
	"github.com/idelchi/modelseal/internal/fileutil"
)

// EncryptedSuffix is stripped from container names on decryption.
const EncryptedSuffix = ".enc"

// RunEncrypt encrypts cfg.Args[0] into cfg.Args[1]. When the output is an existing directory,
// the model keeps its base name inside it. An optional third argument overrides --mode.
// The AES key of hybrid containers is only printed with cfg.RevealKey, for handing it to a
// license authority.
func RunEncrypt(cfg *config.Config, logger *logrus.Logger, out io.Writer) error {
	const wantArgs = 2

	if len(cfg.Args) < wantArgs {
		return errors.New("encrypt requires a model path and an output path")
	}

	if len(cfg.Args) > wantArgs {
		mode, err := container.ParseMode(cfg.Args[wantArgs])
		if err != nil {
			return err
		}

		cfg.Mode = string(mode)
	}

	input := cfg.Args[0]
	output := fileutil.ResolveOutput(cfg.Args[1], filepath.Base(input))

	if sameFile(input, output) {
		return fmt.Errorf("refusing to overwrite the input %q", input)
	}

	res, err := encryption.NewProcessor(cfg, logger).EncryptFile(input, output)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Encrypted %q -> %q (%s)\n", input, res.Output, humanize.IBytes(uint64(max(0, res.Size)))) //nolint:gosec // clamped
	fmt.Fprintf(out, "Mode:   %s\n", res.Metadata.Mode)
	fmt.Fprintf(out, "Layout: %s\n", res.Layout)

	switch {
	case res.Metadata.Mode == container.ModeHybrid && !cfg.RevealKey:
		fmt.Fprintln(out, "Key:    wrapped in the metadata, pass --reveal-key to print it")
	default:
		fmt.Fprintf(out, "Key:    %s\n", res.Key)
	}
	fmt.Fprintf(out, "Metadata:\n%s\n", res.Metadata)

	return nil
}

// RunDecrypt decrypts the container cfg.Args[0] into the directory cfg.Args[1].
// An optional third argument is a private key file or a hex key.
func RunDecrypt(ctx context.Context, cfg *config.Config, logger *logrus.Logger, out io.Writer) error {
	const wantArgs = 2

	if len(cfg.Args) < wantArgs {
		return errors.New("decrypt requires a container path and an output directory")
	}

	input, outputDir := cfg.Args[0], cfg.Args[1]

	var keyArg string
	if len(cfg.Args) > wantArgs {
		keyArg = cfg.Args[wantArgs]
	}

	const dirPerm = 0o750

	if err := os.MkdirAll(outputDir, dirPerm); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	output := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(input), EncryptedSuffix))
	if sameFile(input, output) {
		return fmt.Errorf("refusing to overwrite the input %q", input)
	}

	keys, err := NewKeyResolver(cfg, logger, keyArg)
	if err != nil {
		return err
	}

	res, err := encryption.NewProcessor(cfg, logger).DecryptFile(ctx, input, output, keys)
	if res != nil {
		fmt.Fprintln(out, res.Verification)
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Decrypted %q -> %q (%s)\n", input, res.Output, humanize.IBytes(uint64(max(0, res.Size)))) //nolint:gosec // clamped

	return nil
}

// RunKeygen writes a new RSA key pair to the configured paths.
func RunKeygen(cfg *config.Config, logger *logrus.Logger, out io.Writer) error {
	key, err := encryption.GenerateKeyPair(cfg.Bits)
	if err != nil {
		return err
	}

	if err := encryption.SaveKeyPair(key, cfg.PublicKey, cfg.PrivateKey); err != nil {
		return err
	}

	ref, err := encryption.PublicKeyDigest(&key.PublicKey)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{"bits": cfg.Bits, "public": cfg.PublicKey}).Info("key pair generated")

	fmt.Fprintf(out, "Public key:  %s\n", cfg.PublicKey)
	fmt.Fprintf(out, "Private key: %s\n", cfg.PrivateKey)
	fmt.Fprintf(out, "Reference:   %s\n", ref)

	return nil
}

func sameFile(a, b string) bool {
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)

	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}
