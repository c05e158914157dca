package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bundleminer/bundleminer/errors"
	"gopkg.in/yaml.v3"
)

// CLIConfig is the subset of the ledger CLI config file the miner falls back to when no RPC
// url or fee payer is given.
type CLIConfig struct {
	JSONRPCURL  string `yaml:"json_rpc_url"`
	KeypairPath string `yaml:"keypair_path"`
	Commitment  string `yaml:"commitment"`
}

// DefaultCLIConfigPath is ~/.config/solana/cli/config.yml, or "" if there is no home directory.
func DefaultCLIConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "solana", "cli", "config.yml")
}

// LoadCLIConfig reads a CLI config file. A leading ~ in keypair_path is expanded.
func LoadCLIConfig(path string) (*CLIConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError("could not read config file %s", path, err)
	}

	cfg := &CLIConfig{}
	if err = yaml.Unmarshal(b, cfg); err != nil {
		return nil, errors.NewConfigurationError("config file %s is not valid yaml", path, err)
	}

	if strings.HasPrefix(cfg.KeypairPath, "~/") {
		if home, hErr := os.UserHomeDir(); hErr == nil {
			cfg.KeypairPath = filepath.Join(home, cfg.KeypairPath[2:])
		}
	}

	return cfg, nil
}

// ApplyCLIConfig fills the RPC url and fee payer from cfg where they are not configured
// explicitly. rpcSet tells whether the RPC url came from a flag or a settings file.
func (s *Settings) ApplyCLIConfig(cfg *CLIConfig, rpcSet bool) {
	if cfg == nil {
		return
	}

	if !rpcSet && cfg.JSONRPCURL != "" {
		s.RPC.URL = cfg.JSONRPCURL
	}

	if s.Wallets.FeePayerKeypair == "" && cfg.KeypairPath != "" {
		s.Wallets.FeePayerKeypair = cfg.KeypairPath
	}
}
