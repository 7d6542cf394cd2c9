package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"marketchain/native/loyalty"
	"marketchain/native/marketplace"
)

type Config struct {
	RPCAddress            string `toml:"RPCAddress"`
	DataDir               string `toml:"DataDir"`
	GenesisFile           string `toml:"GenesisFile"`
	ChainID               uint64 `toml:"ChainID"`
	Environment           string `toml:"Environment"`
	CommitIntervalSeconds int    `toml:"CommitIntervalSeconds"`
	IndexerDSN            string `toml:"IndexerDSN"`

	Log         LogConfig         `toml:"Log"`
	Marketplace MarketplaceConfig `toml:"Marketplace"`
	RPC         RPCConfig         `toml:"RPC"`
	Telemetry   TelemetryConfig   `toml:"Telemetry"`
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// MarketplaceConfig holds the network-wide settlement parameters. Every node
// of a network must use identical values.
type MarketplaceConfig struct {
	RewardRateBps  uint32 `toml:"RewardRateBps"`
	RewardMinSpend uint64 `toml:"RewardMinSpend"`
	RewardCapPerTx uint64 `toml:"RewardCapPerTx"`
	RewardDecimals uint8  `toml:"RewardDecimals"`
	RecordDeposit  uint64 `toml:"RecordDeposit"`
}

// RPCConfig bounds the JSON-RPC surface.
type RPCConfig struct {
	RateLimitPerSecond float64  `toml:"RateLimitPerSecond"`
	RateLimitBurst     int      `toml:"RateLimitBurst"`
	MaxBodyBytes       int64    `toml:"MaxBodyBytes"`
	ReadTimeoutSeconds int      `toml:"ReadTimeoutSeconds"`
	MaxConnections     int      `toml:"MaxConnections"`
	TrustedProxies     []string `toml:"TrustedProxies"`
}

// TelemetryConfig wires the OTLP exporters.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

// Default returns the configuration written on first run.
func Default() *Config {
	reward := loyalty.DefaultRewardPolicy()
	return &Config{
		RPCAddress:            ":8080",
		DataDir:               "./market-data",
		ChainID:               1337,
		Environment:           "dev",
		CommitIntervalSeconds: 5,
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Marketplace: MarketplaceConfig{
			RewardRateBps:  reward.RateBps,
			RewardDecimals: reward.Decimals,
		},
		RPC: RPCConfig{
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			MaxBodyBytes:       1 << 20,
			ReadTimeoutSeconds: 10,
			MaxConnections:     512,
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4318",
			Insecure: true,
		},
	}
}

// Load loads the configuration from the given path, writing the defaults
// there when the file does not exist yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// StatePath is the LevelDB directory holding the state trie.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}

// CommitInterval returns how often the daemon persists the state trie.
func (c *Config) CommitInterval() time.Duration {
	return time.Duration(c.CommitIntervalSeconds) * time.Second
}

// MarketplaceParams converts the marketplace section into engine parameters.
func (c *Config) MarketplaceParams() marketplace.Params {
	return marketplace.Params{
		Reward: loyalty.RewardPolicy{
			RateBps:  c.Marketplace.RewardRateBps,
			MinSpend: c.Marketplace.RewardMinSpend,
			CapPerTx: c.Marketplace.RewardCapPerTx,
			Decimals: c.Marketplace.RewardDecimals,
		},
		RecordDeposit: c.Marketplace.RecordDeposit,
	}
}
