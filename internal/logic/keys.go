package logic

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/container"
	"github.com/idelchi/modelseal/internal/encryption"
	"github.com/idelchi/modelseal/internal/license"
)

// ErrNoKey is returned when a container needs a key and no source is configured.
var ErrNoKey = errors.New("no decryption key: pass a key or private key, or configure --license-url and --api-key")

// NewKeyResolver selects the key source for decryption.
//
// keyArg names a private key file when such a file exists and is a hex key otherwise.
// Without keyArg, --key is used for xor containers and --private-key, when the file exists,
// for hybrid containers. Everything else falls back to the license authority, built with opts.
func NewKeyResolver(
	cfg *config.Config,
	logger *logrus.Logger,
	keyArg string,
	opts ...license.ClientOption,
) (encryption.KeyResolver, error) {
	if keyArg != "" {
		if isFile(keyArg) {
			return privateKeyResolver(keyArg), nil
		}

		return encryption.ParseHexKey(keyArg)
	}

	licensed, licenseErr := licenseResolver(cfg, logger, opts)

	return encryption.KeyResolverFunc(func(ctx context.Context, meta container.Metadata) ([]byte, error) {
		switch {
		case meta.Mode == container.ModeXOR && cfg.Key != "":
			static, err := encryption.ParseHexKey(cfg.Key)
			if err != nil {
				return nil, err
			}

			return static.ResolveKey(ctx, meta)
		case meta.Mode == container.ModeHybrid && isFile(cfg.PrivateKey):
			return privateKeyResolver(cfg.PrivateKey).ResolveKey(ctx, meta)
		case licenseErr != nil:
			return nil, licenseErr
		default:
			return licensed.ResolveKey(ctx, meta)
		}
	}), nil
}

func privateKeyResolver(path string) encryption.KeyResolver {
	return encryption.KeyResolverFunc(func(ctx context.Context, meta container.Metadata) ([]byte, error) {
		priv, err := encryption.LoadPrivateKey(path)
		if err != nil {
			return nil, err
		}

		return encryption.PrivateKey{Key: priv}.ResolveKey(ctx, meta)
	})
}

func licenseResolver(cfg *config.Config, logger *logrus.Logger, opts []license.ClientOption) (encryption.KeyResolver, error) {
	if cfg.LicenseURL == "" || cfg.APIKey == "" {
		return nil, ErrNoKey
	}

	client, err := NewLicenseClient(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	return encryption.LicensedKey(client.RequestKey), nil
}

// NewLicenseClient builds a license client from the configuration. Extra opts are applied last.
func NewLicenseClient(cfg *config.Config, logger *logrus.Logger, opts ...license.ClientOption) (*license.Client, error) {
	base := []license.ClientOption{
		license.ClientOpt.WithTimeout(cfg.Timeout),
		license.ClientOpt.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
		license.ClientOpt.WithLogger(logger),
	}

	client, err := license.NewClient(cfg.LicenseURL, cfg.APIKey, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating license client: %w", err)
	}

	return client, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
