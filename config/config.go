package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"launchpad/storage/journal"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`
	JournalPath string `toml:"JournalPath"`
	// JournalDSN, when set, replaces the SQLite file at JournalPath, e.g.
	// with a postgres:// URL.
	JournalDSN  string `toml:"JournalDSN,omitempty"`
	Environment string `toml:"Environment"`

	RPC       RPC       `toml:"rpc"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is created
// with defaults so a fresh node starts without manual setup.
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
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written on first run.
func Default() *Config {
	return &Config{
		RPCAddress:  "127.0.0.1:8545",
		DataDir:     "./launchpad-data",
		GenesisFile: "genesis.json",
		Environment: "local",
		RPC: RPC{
			ReadHeaderTimeout: 5,
			ReadTimeout:       15,
			WriteTimeout:      15,
			IdleTimeout:       60,
			MaxBodyBytes:      1 << 20,
			RateLimitPerSec:   20,
			RateLimitBurst:    40,
			JWT: JWT{
				SecretEnv:      "LAUNCHPAD_RPC_JWT_SECRET",
				Issuer:         "launchpad-cli",
				MaxSkewSeconds: 60,
			},
		},
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Telemetry: Telemetry{
			Endpoint:    "localhost:4318",
			Insecure:    true,
			SampleRatio: 1,
		},
	}
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaults.RPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaults.DataDir
	}
	if strings.TrimSpace(c.JournalPath) == "" {
		c.JournalPath = filepath.Join(c.DataDir, "journal.db")
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Telemetry.SampleRatio == 0 {
		c.Telemetry.SampleRatio = defaults.Telemetry.SampleRatio
	}
}

// JournalSource returns the DSN the receipt journal opens.
func (c *Config) JournalSource() (string, error) {
	if dsn := strings.TrimSpace(c.JournalDSN); dsn != "" {
		return dsn, nil
	}
	return journal.FileDSN(c.JournalPath)
}

// StateDir is the LevelDB directory holding the state trie.
func (c *Config) StateDir() string {
	return filepath.Join(c.DataDir, "state")
}

// ReadHeaderTimeout and the other helpers convert the second-based TOML
// values into durations.
func (r RPC) ReadHeaderTimeoutDuration() time.Duration {
	return time.Duration(r.ReadHeaderTimeout) * time.Second
}

func (r RPC) ReadTimeoutDuration() time.Duration {
	return time.Duration(r.ReadTimeout) * time.Second
}

func (r RPC) WriteTimeoutDuration() time.Duration {
	return time.Duration(r.WriteTimeout) * time.Second
}

func (r RPC) IdleTimeoutDuration() time.Duration {
	return time.Duration(r.IdleTimeout) * time.Second
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	cfg.applyDefaults()
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
