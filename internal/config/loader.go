package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional file, and env
// vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TRIP_CONFIG is set
//  3. env (prefix TRIP_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TRIP_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: TRIP_ADDR, TRIP_RUN_TIMEOUT, ...
	// Keys map like TRIP_CHANNEL_BUFFER_SIZE -> channel_buffer_size,
	// preserving underscores to match the koanf tags on the struct.
	envProvider := env.Provider("TRIP_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "trip_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.ChannelBufferSize <= 0 {
		return nil, errors.New("channel_buffer_size must be positive")
	}
	return &cfg, nil
}
