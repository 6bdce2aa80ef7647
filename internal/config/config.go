// Package config loads server configuration from an optional YAML file with
// command-line flag overrides.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

/*
YAML config example:

listen_address: "0.0.0.0"
listen_port: 9001
workers: 10
match_on_insert: true
expiry_interval: "1s"
gtc_ttl: "24h"
ioc_ttl: "1m"
price_rule: "maker"
log_level: "info"
pretty_logs: false
*/

// Duration wraps time.Duration so YAML values can be written as "24h", "1m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	ListenAddress string `yaml:"listen_address"`
	ListenPort    int    `yaml:"listen_port"`
	// Workers sizes the connection worker pool. Each connected session
	// occupies one worker for its lifetime, so this also caps concurrent
	// clients.
	Workers        int      `yaml:"workers"`
	MatchOnInsert  bool     `yaml:"match_on_insert"`
	ExpiryInterval Duration `yaml:"expiry_interval"`
	GTCTTL         Duration `yaml:"gtc_ttl"`
	IOCTTL         Duration `yaml:"ioc_ttl"`
	PriceRule      string   `yaml:"price_rule"` // "maker" or "buy"
	LogLevel       string   `yaml:"log_level"`
	PrettyLogs     bool     `yaml:"pretty_logs"`
}

func Default() Config {
	return Config{
		ListenAddress:  "0.0.0.0",
		ListenPort:     9001,
		Workers:        10,
		MatchOnInsert:  true,
		ExpiryInterval: Duration(time.Second),
		GTCTTL:         Duration(24 * time.Hour),
		IOCTTL:         Duration(time.Minute),
		PriceRule:      "maker",
		LogLevel:       "info",
		PrettyLogs:     false,
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// FromFlags parses command-line flags, loading -config first (if given) so
// that explicit flags win over file values.
func FromFlags() (Config, error) {
	defaults := Default()

	configPath := flag.String("config", "", "Path to YAML config file")
	listenAddress := flag.String("listen", defaults.ListenAddress, "Listen address")
	listenPort := flag.Int("port", defaults.ListenPort, "Listen port")
	workers := flag.Int("workers", defaults.Workers, "Connection worker count (caps concurrent client sessions)")
	matchOnInsert := flag.Bool("match-on-insert", defaults.MatchOnInsert, "Run matching after every accepted order")
	expiryInterval := flag.Duration("expiry-interval", defaults.ExpiryInterval.Std(), "Interval between expiry scans")
	gtcTTL := flag.Duration("gtc-ttl", defaults.GTCTTL.Std(), "Maximum resting duration for GTC orders")
	iocTTL := flag.Duration("ioc-ttl", defaults.IOCTTL.Std(), "Resting threshold for IOC orders")
	priceRule := flag.String("price-rule", defaults.PriceRule, "Trade price rule: 'maker' or 'buy'")
	logLevel := flag.String("log-level", defaults.LogLevel, "Log level")
	prettyLogs := flag.Bool("pretty-logs", defaults.PrettyLogs, "Human-readable console logs")
	flag.Parse()

	cfg := defaults
	if *configPath != "" {
		loaded, err := Load(*configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	// Explicit flags override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddress = *listenAddress
		case "port":
			cfg.ListenPort = *listenPort
		case "workers":
			cfg.Workers = *workers
		case "match-on-insert":
			cfg.MatchOnInsert = *matchOnInsert
		case "expiry-interval":
			cfg.ExpiryInterval = Duration(*expiryInterval)
		case "gtc-ttl":
			cfg.GTCTTL = Duration(*gtcTTL)
		case "ioc-ttl":
			cfg.IOCTTL = Duration(*iocTTL)
		case "price-rule":
			cfg.PriceRule = *priceRule
		case "log-level":
			cfg.LogLevel = *logLevel
		case "pretty-logs":
			cfg.PrettyLogs = *prettyLogs
		}
	})

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	if cfg.PriceRule != "maker" && cfg.PriceRule != "buy" {
		return fmt.Errorf("unknown price_rule %q", cfg.PriceRule)
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.ExpiryInterval.Std() <= 0 {
		return fmt.Errorf("expiry_interval must be positive")
	}
	return nil
}
