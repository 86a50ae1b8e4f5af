package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int `yaml:"port"`

	// WalletRPCURL is the wallet provider JSON-RPC endpoint. Empty means no
	// provider is available.
	WalletRPCURL string `yaml:"wallet_rpc_url"`

	// ContractAddress is the address of the deployed posts contract.
	ContractAddress string `yaml:"contract_address"`

	// ContractABIPath points at the contract's JSON interface descriptor.
	// Empty uses the embedded descriptor.
	ContractABIPath string `yaml:"contract_abi_path"`

	// Methods overrides the contract method names.
	Methods Methods `yaml:"methods"`

	// ReaderAccount is the account the RSS feed reads as when the request
	// does not name one.
	ReaderAccount string `yaml:"reader_account"`

	// ConfirmWrites makes writes wait for their transaction receipt.
	ConfirmWrites bool `yaml:"confirm_writes"`

	// ReceiptPollInterval is how often receipts are polled.
	ReceiptPollInterval time.Duration `yaml:"receipt_poll_interval"`

	// JournalPath is the SQLite write journal. Empty disables the journal.
	JournalPath string `yaml:"journal_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Methods names the contract methods.
type Methods struct {
	Create string `yaml:"create"`
	List   string `yaml:"list"`
	Like   string `yaml:"like"`
}

func defaults() *Config {
	return &Config{
		Port: 3000,
		Methods: Methods{
			Create: "createPost",
			List:   "getAllPosts",
			Like:   "likePost",
		},
		ReaderAccount:       "0x0000000000000000000000000000000000000000",
		ConfirmWrites:       true,
		ReceiptPollInterval: 2 * time.Second,
		LogLevel:            "info",
	}
}

// Load reads the optional YAML file named by CONFIG_FILE, then applies
// environment variables on top of it.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = port
	}

	setString(&cfg.WalletRPCURL, "WALLET_RPC_URL")
	setString(&cfg.ContractAddress, "CONTRACT_ADDRESS")
	setString(&cfg.ContractABIPath, "CONTRACT_ABI_PATH")
	setString(&cfg.Methods.Create, "CONTRACT_METHOD_CREATE")
	setString(&cfg.Methods.List, "CONTRACT_METHOD_LIST")
	setString(&cfg.Methods.Like, "CONTRACT_METHOD_LIKE")
	setString(&cfg.ReaderAccount, "READER_ACCOUNT")
	setString(&cfg.JournalPath, "JOURNAL_PATH")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("CONFIRM_WRITES"); v != "" {
		confirm, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CONFIRM_WRITES: %w", err)
		}
		cfg.ConfirmWrites = confirm
	}

	if v := os.Getenv("RECEIPT_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RECEIPT_POLL_INTERVAL: %w", err)
		}
		cfg.ReceiptPollInterval = d
	}

	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("CONTRACT_ADDRESS is required")
	}

	return cfg, nil
}

// ContractABI returns the descriptor file contents, or nil when the
// embedded descriptor should be used.
func (c *Config) ContractABI() ([]byte, error) {
	if c.ContractABIPath == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(c.ContractABIPath)
	if err != nil {
		return nil, fmt.Errorf("read contract abi: %w", err)
	}
	return raw, nil
}

// SlogLevel maps LogLevel onto slog. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
