// Package config defines the runtime configuration of modelseal and how it is loaded and validated.
package config

import (
	"fmt"
	"time"

	"github.com/goccy/go-yaml"
)

// Default values shared by flags and tests.
const (
	DefaultChunkSize  = 1 << 20
	DefaultBits       = 2048
	DefaultTimeout    = 15 * time.Second
	DefaultPublicKey  = "model_public_key.pem"
	DefaultPrivateKey = "model_private_key.pem"
	DefaultAuthor     = "modelseal"
	DefaultListen     = ":8443"
)

// Config holds the configuration of every modelseal command.
type Config struct {
	// Show prints the resolved configuration and exits.
	Show bool `yaml:"-"`

	// Logging
	LogLevel  string `mapstructure:"log-level"  validate:"oneof=debug info warn error" yaml:"log-level"`
	LogFormat string `mapstructure:"log-format" validate:"oneof=text json"             yaml:"log-format"`
	LogFile   string `mapstructure:"log-file"   yaml:"log-file,omitempty"`

	// Encryption
	Mode          string `label:"--mode"       mapstructure:"mode"           validate:"oneof=xor hybrid"            yaml:"mode"`
	Key           string `label:"--key"        mapstructure:"key"            validate:"omitempty,hexkey"            yaml:"key,omitempty"`
	Author        string `mapstructure:"author" yaml:"author"`
	Layout        string `label:"--layout"     mapstructure:"layout"         validate:"oneof=auto flagged preserve" yaml:"layout"`
	LegacyTrailer bool   `mapstructure:"legacy-trailer" yaml:"legacy-trailer"`
	ChunkSize     int    `label:"--chunk-size" mapstructure:"chunk-size"     validate:"gt=0"                        yaml:"chunk-size"`
	RevealKey     bool   `mapstructure:"reveal-key" yaml:"reveal-key"`

	// Key pair
	PublicKey  string `mapstructure:"public-key"  yaml:"public-key"`
	PrivateKey string `mapstructure:"private-key" yaml:"private-key"`
	Bits       int    `label:"--bits" mapstructure:"bits" validate:"gte=2048" yaml:"bits"`

	// License
	LicenseURL         string        `label:"--license-url" mapstructure:"license-url" validate:"omitempty,url" yaml:"license-url,omitempty"`
	APIKey             string        `mapstructure:"api-key"              yaml:"api-key,omitempty"`
	Timeout            time.Duration `label:"--timeout" mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure-skip-verify" yaml:"insecure-skip-verify"`

	// Decryption
	StrictIntegrity bool `mapstructure:"strict-integrity" yaml:"strict-integrity"`

	// Inspection
	Parallel int `label:"--parallel" mapstructure:"parallel" validate:"gte=1" yaml:"parallel"`

	// Development license authority
	Listen  string `mapstructure:"listen"   yaml:"listen"`
	Grants  string `mapstructure:"grants"   yaml:"grants,omitempty"`
	TLSCert string `mapstructure:"tls-cert" yaml:"tls-cert,omitempty"`
	TLSKey  string `mapstructure:"tls-key"  yaml:"tls-key,omitempty"`

	// Positional arguments
	Args []string `mapstructure:"-" yaml:"args,omitempty"`
}

// Default returns a configuration populated with the flag defaults.
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		LogFormat:  "text",
		Mode:       "xor",
		Author:     DefaultAuthor,
		Layout:     "auto",
		ChunkSize:  DefaultChunkSize,
		PublicKey:  DefaultPublicKey,
		PrivateKey: DefaultPrivateKey,
		Bits:       DefaultBits,
		Timeout:    DefaultTimeout,
		Parallel:   1,
		Listen:     DefaultListen,
	}
}

// Masked returns a copy of the configuration with secrets redacted.
func (c Config) Masked() Config {
	if c.APIKey != "" {
		c.APIKey = mask(c.APIKey)
	}

	if c.Key != "" {
		c.Key = mask(c.Key)
	}

	return c
}

// String renders the masked configuration as YAML.
func (c Config) String() string {
	out, err := yaml.Marshal(c.Masked())
	if err != nil {
		return fmt.Sprintf("marshalling configuration: %v", err)
	}

	return string(out)
}

func mask(secret string) string {
	const visible = 4

	if len(secret) <= visible {
		return "****"
	}

	return secret[:visible] + "****"
}
