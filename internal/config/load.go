package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by modelseal.
const EnvPrefix = "MODELSEAL"

// NewViper returns a viper instance reading MODELSEAL_* variables and, when present,
// a modelseal.yaml configuration file. An explicit file overrides the search paths.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("modelseal")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.modelseal")
		v.AddConfigPath("/etc/modelseal")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return v, nil
}

// Load binds flags to v and decodes the merged configuration into cfg.
// Positional arguments are stored in cfg.Args.
func Load(v *viper.Viper, flags *pflag.FlagSet, cfg *Config, args []string) error {
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	cfg.Args = args

	return nil
}
