package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/onchain-posts/internal/chain"
	"github.com/blackmichael/onchain-posts/internal/config"
	"github.com/blackmichael/onchain-posts/internal/contract"
	"github.com/blackmichael/onchain-posts/internal/controller"
	"github.com/blackmichael/onchain-posts/internal/domain"
	"github.com/blackmichael/onchain-posts/internal/httpserver"
	"github.com/blackmichael/onchain-posts/internal/journal"
	"github.com/blackmichael/onchain-posts/internal/render"
	"github.com/blackmichael/onchain-posts/internal/wallet"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without a provider the page still loads and reports the missing wallet.
	var provider chain.Provider
	rpcClient, err := chain.Dial(ctx, cfg.WalletRPCURL)
	switch {
	case errors.Is(err, chain.ErrNoProvider):
		logger.Warn("WALLET_RPC_URL not set, running without a wallet provider")
	case err != nil:
		return fmt.Errorf("connect wallet provider: %w", err)
	default:
		defer rpcClient.Close()
		provider = rpcClient
		logger.Info("connected to wallet provider", "url", cfg.WalletRPCURL)
	}

	abiJSON, err := cfg.ContractABI()
	if err != nil {
		return err
	}
	client, err := contract.NewClient(provider, contract.Options{
		Address: cfg.ContractAddress,
		ABI:     abiJSON,
		Methods: contract.Methods{
			Create: cfg.Methods.Create,
			List:   cfg.Methods.List,
			Like:   cfg.Methods.Like,
		},
		Confirm:      cfg.ConfirmWrites,
		PollInterval: cfg.ReceiptPollInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("create contract client: %w", err)
	}

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}

	var recorder domain.Recorder = journal.Nop{}
	if cfg.JournalPath != "" {
		j, err := journal.Open(ctx, cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		recorder = j
		logger.Info("write journal enabled", "path", cfg.JournalPath)
	}

	deps := controller.Deps{
		Wallet:   wallet.NewConnector(provider, logger),
		Contract: client,
		Renderer: renderer,
		Recorder: recorder,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	server := httpserver.NewServer(cfg, deps, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "contract", client.Address().Hex())

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
