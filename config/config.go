// Package config handles node configuration: defaults, an optional TOML
// file, and command-line flag overrides, in that order of precedence.
package config

// Config holds every runtime setting a node needs.
type Config struct {
	// Network
	Port                  int      `toml:"port"`
	DiscoveryPingInterval int      `toml:"discovery_ping_interval"`
	DiscoveryPeerInterval int      `toml:"discovery_peer_interval"`
	StatusCheckInterval   int      `toml:"status_check_interval"`
	MaxKarma              int      `toml:"max_karma"`
	Peers                 []string `toml:"peers"`

	// HTTP collaborator
	HTTPAddr string `toml:"http_addr"`

	// Logging
	Log LogConfig `toml:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
	File  string `toml:"file"`
}

// Default returns the configuration every key defaults to absent a file
// or flag override, matching the externally documented defaults exactly.
func Default() *Config {
	return &Config{
		Port:                  10101,
		DiscoveryPingInterval: 60,
		DiscoveryPeerInterval: 60,
		StatusCheckInterval:   30,
		MaxKarma:              10,
		Peers:                 []string{},
		HTTPAddr:              "127.0.0.1:8088",
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
