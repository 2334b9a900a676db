package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"

	"github.com/idelchi/modelseal/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	g.Expect(config.Default().Validate()).To(Succeed())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"short key", func(c *config.Config) { c.Key = "abcd" }, "--key must be 32 hex characters"},
		{"non hex key", func(c *config.Config) { c.Key = "zz112233445566778899aabbccddeeff" }, "--key must be 32 hex characters"},
		{"weak rsa", func(c *config.Config) { c.Bits = 1024 }, "--bits must be at least 2048"},
		{"unknown mode", func(c *config.Config) { c.Mode = "rot13" }, "--mode must be one of [xor hybrid]"},
		{"unknown layout", func(c *config.Config) { c.Layout = "sideways" }, "--layout"},
		{"zero chunk", func(c *config.Config) { c.ChunkSize = 0 }, "--chunk-size must be greater than 0"},
		{"bad url", func(c *config.Config) { c.LicenseURL = "not a url" }, "--license-url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := NewWithT(t)

			cfg := config.Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			g.Expect(err).To(HaveOccurred())
			g.Expect(err.Error()).To(ContainSubstring(tt.want))
		})
	}
}

func TestValidKey(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	cfg := config.Default()
	cfg.Key = "00112233445566778899aabbccddeeff"

	g.Expect(cfg.Validate()).To(Succeed())
}

func TestStringMasksSecrets(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	cfg := config.Default()
	cfg.APIKey = "sk-live-secret"
	cfg.Key = "00112233445566778899aabbccddeeff"

	out := cfg.String()
	g.Expect(out).ToNot(ContainSubstring("secret"))
	g.Expect(out).ToNot(ContainSubstring("8899aabb"))
	g.Expect(out).To(ContainSubstring("sk-l****"))
	g.Expect(cfg.APIKey).To(Equal("sk-live-secret"))
}

func TestLoadPrecedence(t *testing.T) { //nolint:paralleltest // uses t.Setenv
	g := NewWithT(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "modelseal.yaml")

	g.Expect(os.WriteFile(file, []byte("mode: hybrid\nauthor: from-file\ntimeout: 3s\nchunk-size: 4096\n"), 0o600)).To(Succeed())

	t.Setenv("MODELSEAL_AUTHOR", "from-env")
	t.Setenv("MODELSEAL_LICENSE_URL", "https://license.example.com/api/verify-key")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("mode", "xor", "")
	flags.String("author", config.DefaultAuthor, "")
	flags.String("license-url", "", "")
	flags.Duration("timeout", config.DefaultTimeout, "")
	flags.Int("chunk-size", config.DefaultChunkSize, "")
	flags.Int("bits", config.DefaultBits, "")

	g.Expect(flags.Parse([]string{"--bits", "4096"})).To(Succeed())

	v, err := config.NewViper(file)
	g.Expect(err).ToNot(HaveOccurred())

	cfg := config.Default()
	g.Expect(config.Load(v, flags, cfg, []string{"a", "b"})).To(Succeed())

	g.Expect(cfg.Mode).To(Equal("hybrid"))
	g.Expect(cfg.Author).To(Equal("from-env"))
	g.Expect(cfg.LicenseURL).To(Equal("https://license.example.com/api/verify-key"))
	g.Expect(cfg.Timeout).To(Equal(3 * time.Second))
	g.Expect(cfg.ChunkSize).To(Equal(4096))
	g.Expect(cfg.Bits).To(Equal(4096))
	g.Expect(cfg.Args).To(Equal([]string{"a", "b"}))
	g.Expect(cfg.Validate()).To(Succeed())
}

func TestExplicitConfigFileMustExist(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	_, err := config.NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	g.Expect(err).To(MatchError(ContainSubstring("reading config file")))
}
