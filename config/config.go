package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Config holds all the configuration parameters, serving as a unified config.
type Config struct {
	DataStorageFilePath string `json:"DataStorageFilePath"`
	Version             string `json:"Version,omitempty"`

	ChainConfig     ChainConfig     `json:"ChainConfig"`
	RewardConfig    RewardConfig    `json:"RewardConfig"`
	LivenessConfig  LivenessConfig  `json:"LivenessConfig"`
	SchedulerConfig SchedulerConfig `json:"SchedulerConfig"`
	APIConfig       APIConfig       `json:"APIConfig,omitempty"`
}

// ChainConfig describes the chain collaborator and the funding key.
type ChainConfig struct {
	JSONRPCURLs              []string `json:"JSONRPCURLs"`
	MultisenderAddress       string   `json:"MultisenderAddress"`
	GasPriceWei              string   `json:"GasPriceWei"`
	InitialGas               uint64   `json:"InitialGas,omitempty"`
	GasPerAddress            uint64   `json:"GasPerAddress,omitempty"`
	PrivateKeyStorePath      string   `json:"PrivateKeyStorePath"`
	PrivateKeyPassphrasePath string   `json:"PrivateKeyPassphrasePath"`
}

// RewardConfig describes how uptime turns into payout amounts.
type RewardConfig struct {
	RewardCurrency         string  `json:"RewardCurrency"`
	RewardMinPercent       float64 `json:"RewardMinPercent"`
	DefaultUSDRewardAmount string  `json:"DefaultUSDRewardAmount"`
	RatesURL               string  `json:"RatesURL"`
}

// LivenessConfig describes the peer-liveness poll.
type LivenessConfig struct {
	EnodesDir          string `json:"EnodesDir"`
	PingIntervalMins   int    `json:"PingIntervalMins,omitempty"`
	PingTimeoutSeconds int    `json:"PingTimeoutSeconds,omitempty"`
	PingMaxRetries     int    `json:"PingMaxRetries,omitempty"`
}

// SchedulerConfig holds the cadences of the background loops.
type SchedulerConfig struct {
	RewardsHour         int `json:"RewardsHour"`
	PendingCheckSeconds int `json:"PendingCheckSeconds,omitempty"`
	WaitingCheckMins    int `json:"WaitingCheckMins,omitempty"`
	AddressBackfillMins int `json:"AddressBackfillMins,omitempty"`
}

type APIConfig struct {
	ServerPort int `json:"ServerPort,omitempty"`
}

// LoadConfig reads a config file and unmarshals it into a unified Config struct.
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfg Config
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

const (
	defaultInitialGas    = 150_000
	defaultGasPerAddress = 35_000
)

func (c *Config) applyDefaults() {
	if c.ChainConfig.InitialGas == 0 {
		c.ChainConfig.InitialGas = defaultInitialGas
	}
	if c.ChainConfig.GasPerAddress == 0 {
		c.ChainConfig.GasPerAddress = defaultGasPerAddress
	}
	if c.LivenessConfig.PingIntervalMins == 0 {
		c.LivenessConfig.PingIntervalMins = 5
	}
	if c.LivenessConfig.PingTimeoutSeconds == 0 {
		c.LivenessConfig.PingTimeoutSeconds = 10
	}
	if c.LivenessConfig.PingMaxRetries == 0 {
		c.LivenessConfig.PingMaxRetries = 3
	}
	if c.SchedulerConfig.PendingCheckSeconds == 0 {
		c.SchedulerConfig.PendingCheckSeconds = 5
	}
	if c.SchedulerConfig.WaitingCheckMins == 0 {
		c.SchedulerConfig.WaitingCheckMins = 1
	}
	if c.SchedulerConfig.AddressBackfillMins == 0 {
		c.SchedulerConfig.AddressBackfillMins = 1
	}
}

// Validate rejects configs that cannot drive the relay at all.
func (c *Config) Validate() error {
	if c.DataStorageFilePath == "" {
		return fmt.Errorf("config: DataStorageFilePath is required")
	}
	if len(c.ChainConfig.JSONRPCURLs) == 0 {
		return fmt.Errorf("config: at least one JSONRPCURL is required")
	}
	if c.ChainConfig.MultisenderAddress == "" {
		return fmt.Errorf("config: MultisenderAddress is required")
	}
	if c.ChainConfig.GasPriceWei == "" {
		return fmt.Errorf("config: GasPriceWei is required")
	}
	if c.RewardConfig.RewardCurrency == "" {
		return fmt.Errorf("config: RewardCurrency is required")
	}
	if c.RewardConfig.RewardMinPercent < 0 || c.RewardConfig.RewardMinPercent > 100 {
		return fmt.Errorf("config: RewardMinPercent must be within [0, 100]")
	}
	if c.SchedulerConfig.RewardsHour < 0 || c.SchedulerConfig.RewardsHour > 23 {
		return fmt.Errorf("config: RewardsHour must be within [0, 23]")
	}
	return nil
}

// LoadEnodes reads the configured peer set: one enode public key per line from
// every *.txt file under EnodesDir. Duplicates across files collapse.
func (c *Config) LoadEnodes() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(c.LivenessConfig.EnodesDir, "*.txt"))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read enodes file %s: %w", path, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			enode := strings.ToLower(strings.TrimSpace(line))
			if enode == "" {
				continue
			}
			seen[enode] = struct{}{}
		}
	}

	enodes := make([]string, 0, len(seen))
	for enode := range seen {
		enodes = append(enodes, enode)
	}
	sort.Strings(enodes)
	return enodes, nil
}
