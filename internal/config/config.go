package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/dyluth/tally/pkg/relay"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "tally.yml"

// Environment variables that override the file.
const (
	EnvRelays   = "TALLY_RELAYS"    // comma-separated relay URLs
	EnvRedisURL = "TALLY_REDIS_URL" // enables the Redis store
	EnvLogLevel = "TALLY_LOG_LEVEL"
)

// DefaultRelays are queried for every thread and every author lookup.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.snort.social",
	"wss://relay.nostr.band",
	"wss://nostr.wine",
}

// TallyConfig represents the top-level tally.yml configuration
type TallyConfig struct {
	Version          string          `yaml:"version"`
	Relays           []string        `yaml:"relays,omitempty"`
	Limits           *LimitsConfig   `yaml:"limits,omitempty"`
	Timeouts         *TimeoutsConfig `yaml:"timeouts,omitempty"`
	MaxConcurrency   *int            `yaml:"max_concurrency,omitempty"` // endpoint calls in flight per query
	VerifySignatures bool            `yaml:"verify_signatures,omitempty"`
	Cache            *CacheConfig    `yaml:"cache,omitempty"`
	Log              *LogConfig      `yaml:"log,omitempty"`
}

// LimitsConfig bounds the reply-graph walk. Zero means default.
type LimitsConfig struct {
	MaxDepth      int `yaml:"max_depth,omitempty"`
	PerQueryLimit int `yaml:"per_query_limit,omitempty"`
	BatchSize     int `yaml:"batch_size,omitempty"`
	MaxTotal      int `yaml:"max_total,omitempty"`
}

// TimeoutsConfig bounds relay calls. Values are Go durations ("8s").
type TimeoutsConfig struct {
	Relay   time.Duration `yaml:"relay,omitempty"`
	Connect time.Duration `yaml:"connect,omitempty"`
}

// CacheConfig selects the event/profile store.
type CacheConfig struct {
	RedisURL   string         `yaml:"redis_url,omitempty"` // empty: in-memory LRU
	ProfileTTL *time.Duration `yaml:"profile_ttl,omitempty"`
	MemorySize int            `yaml:"memory_size,omitempty"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Pretty *bool  `yaml:"pretty,omitempty"`
}

// Default returns a validated configuration with every default applied.
func Default() *TallyConfig {
	c := &TallyConfig{Version: "1.0"}
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return c
}

// Validate applies defaults and checks every field
func (c *TallyConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if len(c.Relays) == 0 {
		c.Relays = append([]string(nil), DefaultRelays...)
	}
	for _, r := range c.Relays {
		if _, ok := relay.NormalizeEndpoint(r); !ok {
			return fmt.Errorf("invalid relay URL: %s (must be ws:// or wss://)", r)
		}
	}
	c.Relays = relay.Endpoints(c.Relays)

	if c.Limits == nil {
		c.Limits = &LimitsConfig{}
	}
	if err := c.Limits.validate(); err != nil {
		return err
	}

	if c.Timeouts == nil {
		c.Timeouts = &TimeoutsConfig{}
	}
	if c.Timeouts.Relay == 0 {
		c.Timeouts.Relay = 8 * time.Second
	}
	if c.Timeouts.Connect == 0 {
		c.Timeouts.Connect = 5 * time.Second
	}
	if c.Timeouts.Relay < 0 || c.Timeouts.Connect < 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Timeouts.Connect > c.Timeouts.Relay {
		return fmt.Errorf("timeouts.connect (%s) must not exceed timeouts.relay (%s)", c.Timeouts.Connect, c.Timeouts.Relay)
	}

	if c.MaxConcurrency == nil {
		defaultConcurrency := 16
		c.MaxConcurrency = &defaultConcurrency
	}
	if *c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be >= 1, got %d", *c.MaxConcurrency)
	}

	if c.Cache == nil {
		c.Cache = &CacheConfig{}
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}

	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = zerolog.InfoLevel.String()
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %s", c.Log.Level)
	}
	if c.Log.Pretty == nil {
		pretty := true
		c.Log.Pretty = &pretty
	}

	return nil
}

func (l *LimitsConfig) validate() error {
	if l.MaxDepth == 0 {
		l.MaxDepth = 2
	}
	if l.PerQueryLimit == 0 {
		l.PerQueryLimit = 500
	}
	if l.BatchSize == 0 {
		l.BatchSize = 150
	}
	if l.MaxTotal == 0 {
		l.MaxTotal = 2000
	}

	if l.MaxDepth < 1 {
		return fmt.Errorf("limits.max_depth must be >= 1, got %d", l.MaxDepth)
	}
	if l.PerQueryLimit < 1 {
		return fmt.Errorf("limits.per_query_limit must be >= 1, got %d", l.PerQueryLimit)
	}
	if l.BatchSize < 1 {
		return fmt.Errorf("limits.batch_size must be >= 1, got %d", l.BatchSize)
	}
	if l.MaxTotal < 1 {
		return fmt.Errorf("limits.max_total must be >= 1, got %d", l.MaxTotal)
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			return fmt.Errorf("invalid cache.redis_url: %w", err)
		}
	}
	if c.ProfileTTL == nil {
		ttl := time.Hour
		c.ProfileTTL = &ttl
	}
	if *c.ProfileTTL < 0 {
		return fmt.Errorf("cache.profile_ttl must be >= 0 (0 = no expiry), got %s", *c.ProfileTTL)
	}
	if c.MemorySize == 0 {
		c.MemorySize = 1024
	}
	if c.MemorySize < 1 {
		return fmt.Errorf("cache.memory_size must be >= 1, got %d", c.MemorySize)
	}
	return nil
}

// applyEnv overlays environment overrides onto the parsed file.
func (c *TallyConfig) applyEnv(getenv func(string) string) {
	if v := getenv(EnvRelays); v != "" {
		var relays []string
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				relays = append(relays, r)
			}
		}
		c.Relays = relays
	}
	if v := getenv(EnvRedisURL); v != "" {
		if c.Cache == nil {
			c.Cache = &CacheConfig{}
		}
		c.Cache.RedisURL = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		if c.Log == nil {
			c.Log = &LogConfig{}
		}
		c.Log.Level = v
	}
}

// Load reads and validates tally.yml from the specified path
func Load(path string) (*TallyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config TallyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.applyEnv(os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults
// (with environment overrides applied).
func LoadOrDefault(path string) (*TallyConfig, error) {
	config, err := Load(path)
	if err == nil {
		return config, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	config = &TallyConfig{Version: "1.0"}
	config.applyEnv(os.Getenv)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
