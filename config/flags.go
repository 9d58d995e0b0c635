package config

import (
	"flag"
	"os"
	"strings"
)

// Flags holds parsed command-line overrides. Zero values mean "not set";
// ApplyFlags only overwrites a Config field when the corresponding flag
// was explicitly passed.
type Flags struct {
	ConfigFile string

	Port                  int
	DiscoveryPingInterval int
	DiscoveryPeerInterval int
	StatusCheckInterval   int
	MaxKarma              int
	Peers                 string
	HTTPAddr              string

	LogLevel string
	LogJSON  bool
	LogFile  string

	SetLogJSON bool
}

// ParseFlags parses os.Args[1:] into a Flags value.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("checkchaind", flag.ExitOnError)

	fs.StringVar(&f.ConfigFile, "config", "", "path to a TOML config file")
	fs.IntVar(&f.Port, "port", 0, "UDP port to bind (default 10101)")
	fs.IntVar(&f.DiscoveryPingInterval, "discovery-ping-interval", 0, "seconds between discovery broadcasts")
	fs.IntVar(&f.DiscoveryPeerInterval, "discovery-peer-interval", 0, "seconds between peer-list gossip requests")
	fs.IntVar(&f.StatusCheckInterval, "status-check-interval", 0, "seconds between status broadcasts")
	fs.IntVar(&f.MaxKarma, "max-karma", 0, "karma ceiling before a peer is demoted")
	fs.StringVar(&f.Peers, "peers", "", "comma-separated seed peer addresses (ip:port)")
	fs.StringVar(&f.HTTPAddr, "http-addr", "", "address for the HTTP collaborator to listen on")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&f.LogJSON, "log-json", false, "emit logs as JSON")
	fs.StringVar(&f.LogFile, "log-file", "", "also write logs to this file")

	fs.Parse(os.Args[1:])

	f.SetLogJSON = isFlagSet(fs, "log-json")
	return f
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// ApplyFlags overlays f onto cfg, the highest-precedence layer.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.Port != 0 {
		cfg.Port = f.Port
	}
	if f.DiscoveryPingInterval != 0 {
		cfg.DiscoveryPingInterval = f.DiscoveryPingInterval
	}
	if f.DiscoveryPeerInterval != 0 {
		cfg.DiscoveryPeerInterval = f.DiscoveryPeerInterval
	}
	if f.StatusCheckInterval != 0 {
		cfg.StatusCheckInterval = f.StatusCheckInterval
	}
	if f.MaxKarma != 0 {
		cfg.MaxKarma = f.MaxKarma
	}
	if f.Peers != "" {
		cfg.Peers = splitCommaList(f.Peers)
	}
	if f.HTTPAddr != "" {
		cfg.HTTPAddr = f.HTTPAddr
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
}

func splitCommaList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ConfigFilePath resolves which path Load should read the TOML file from:
// the --config flag if given, otherwise "checkchain.toml" in the working
// directory.
func (f *Flags) ConfigFilePath() string {
	if f.ConfigFile != "" {
		return f.ConfigFile
	}
	return "checkchain.toml"
}
