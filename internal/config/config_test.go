package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackmichael/onchain-posts/internal/config"
)

const contractAddr = "0x564B404109F3d358f4B593020a438F27055F3367"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "WALLET_RPC_URL", "CONTRACT_ADDRESS", "CONTRACT_ABI_PATH",
		"CONTRACT_METHOD_CREATE", "CONTRACT_METHOD_LIST", "CONTRACT_METHOD_LIKE",
		"READER_ACCOUNT", "CONFIRM_WRITES", "RECEIPT_POLL_INTERVAL", "JOURNAL_PATH", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTRACT_ADDRESS", contractAddr)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.WalletRPCURL != "" {
		t.Errorf("WalletRPCURL = %q, want empty", cfg.WalletRPCURL)
	}
	if cfg.Methods.Create != "createPost" || cfg.Methods.List != "getAllPosts" || cfg.Methods.Like != "likePost" {
		t.Errorf("Methods = %+v", cfg.Methods)
	}
	if !cfg.ConfirmWrites {
		t.Error("ConfirmWrites should default to true")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel = %v, want info", cfg.SlogLevel())
	}
}

func TestLoad_RequiresContractAddress(t *testing.T) {
	clearEnv(t)

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error without CONTRACT_ADDRESS")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "http"},
		{"CONFIRM_WRITES", "maybe"},
		{"RECEIPT_POLL_INTERVAL", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("CONTRACT_ADDRESS", contractAddr)
			t.Setenv(tt.key, tt.value)

			if _, err := config.Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
port: 8080
wallet_rpc_url: http://localhost:8545
contract_address: ` + contractAddr + `
methods:
  create: createTweet
  list: getAllTweets
  like: likeTweet
confirm_writes: false
receipt_poll_interval: 500ms
log_level: debug
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9090")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want env override 9090", cfg.Port)
	}
	if cfg.WalletRPCURL != "http://localhost:8545" {
		t.Errorf("WalletRPCURL = %q", cfg.WalletRPCURL)
	}
	if cfg.Methods.Like != "likeTweet" || cfg.Methods.List != "getAllTweets" {
		t.Errorf("Methods = %+v", cfg.Methods)
	}
	if cfg.ConfirmWrites {
		t.Error("ConfirmWrites should come from the file")
	}
	if cfg.ReceiptPollInterval != 500*time.Millisecond {
		t.Errorf("ReceiptPollInterval = %v, want 500ms", cfg.ReceiptPollInterval)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, want debug", cfg.SlogLevel())
	}
}

func TestContractABI(t *testing.T) {
	cfg := &config.Config{}
	raw, err := cfg.ContractABI()
	if err != nil || raw != nil {
		t.Fatalf("empty path: got %q, %v", raw, err)
	}

	cfg.ContractABIPath = filepath.Join(t.TempDir(), "missing.json")
	if _, err := cfg.ContractABI(); err == nil {
		t.Fatal("expected error for missing file")
	}
}
