// Package config fills tagged structs from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg from `env`/`envDefault` struct tags.
func Load(cfg any) error {
	return parse(cfg, env.Options{})
}

// LoadWithPrefix is Load with prefix prepended to every variable name, so a
// tool can reuse field names without clashing with the server (SEED_API_URL).
func LoadWithPrefix(cfg any, prefix string) error {
	return parse(cfg, env.Options{Prefix: prefix})
}

func parse(cfg any, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
