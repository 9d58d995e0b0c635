package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"
)

// tomlSettings mirrors the field-matching convention used elsewhere in
// this lineage: struct field names are matched case-insensitively against
// TOML keys, with underscores treated as equivalent to the field's own
// casing (so "discovery_ping_interval" matches DiscoveryPingInterval).
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return strings.ToLower(strings.ReplaceAll(key, "_", ""))
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return strings.ToLower(field)
	},
}

// LoadFile reads a TOML config file into cfg, mutating only the fields
// present in the file. A missing file is not an error — the caller has
// already applied defaults and should just keep them, logging a warning.
func LoadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
