// Package config loads server settings from an optional TOML file with
// environment variables taking precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Chain IDs of the supported networks.
const (
	ChainSepolia     int64 = 11155111
	ChainBaseSepolia int64 = 84532
)

// Escrow locates the deployed escrow contract.
type Escrow struct {
	Address string `toml:"address"`
	ChainID int64  `toml:"chain_id"`
}

// Config is the full server configuration.
type Config struct {
	Port           int    `toml:"port"`
	PrivyAppID     string `toml:"privy_app_id"`
	PrivyAppSecret string `toml:"privy_app_secret"`
	Mnemonic       string `toml:"mnemonic"`

	SepoliaRPCURL     string `toml:"sepolia_rpc_url"`
	BaseSepoliaRPCURL string `toml:"base_sepolia_rpc_url"`

	Escrow Escrow `toml:"escrow"`

	PollInterval time.Duration `toml:"-"`
	PollSeconds  int           `toml:"poll_seconds"`
	DataDir      string        `toml:"data_dir"`
}

// Load reads configuration. If path is non-empty the TOML file there is
// read first; environment variables then override file values. Defaults
// fill anything still unset, and the result is validated.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	setString(&cfg.PrivyAppID, "PRIVY_APP_ID")
	setString(&cfg.PrivyAppSecret, "PRIVY_APP_SECRET")
	setString(&cfg.Mnemonic, "MNEMONIC")
	setString(&cfg.SepoliaRPCURL, "SEPOLIA_RPC_URL")
	setString(&cfg.BaseSepoliaRPCURL, "BASE_SEPOLIA_RPC_URL")
	setString(&cfg.Escrow.Address, "ESCROW_CONTRACT_ADDRESS")
	if v := os.Getenv("ESCROW_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Escrow.ChainID = id
		}
	}
	if v := os.Getenv("POLL_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.PollSeconds = s
		}
	}
	setString(&cfg.DataDir, "DATA_DIR")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.PollSeconds == 0 {
		cfg.PollSeconds = 2
	}
	cfg.PollInterval = time.Duration(cfg.PollSeconds) * time.Second
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
}

func (c *Config) validate() error {
	if c.Mnemonic == "" {
		return fmt.Errorf("MNEMONIC is required")
	}
	if c.Escrow.Address == "" {
		return fmt.Errorf("escrow contract address is required")
	}
	if !common.IsHexAddress(c.Escrow.Address) {
		return fmt.Errorf("escrow contract address %q is not a hex address", c.Escrow.Address)
	}
	if c.Escrow.ChainID == 0 {
		return fmt.Errorf("escrow chain id is required")
	}
	urls := c.RPCURLs()
	if len(urls) == 0 {
		return fmt.Errorf("at least one RPC URL is required")
	}
	if _, ok := urls[c.Escrow.ChainID]; !ok {
		return fmt.Errorf("no RPC URL configured for escrow chain %d", c.Escrow.ChainID)
	}
	return nil
}

// RPCURLs returns the configured chainId → endpoint map.
func (c *Config) RPCURLs() map[int64]string {
	urls := make(map[int64]string)
	if c.SepoliaRPCURL != "" {
		urls[ChainSepolia] = c.SepoliaRPCURL
	}
	if c.BaseSepoliaRPCURL != "" {
		urls[ChainBaseSepolia] = c.BaseSepoliaRPCURL
	}
	return urls
}

// ListenAddr is the HTTP bind address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
