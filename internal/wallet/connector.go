package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/blackmichael/onchain-posts/internal/chain"
	"github.com/blackmichael/onchain-posts/internal/domain"
)

var (
	// ErrNoProvider means no wallet provider is available. The user has to
	// install or enable one; retrying does not help.
	ErrNoProvider = chain.ErrNoProvider

	// ErrDeclined means the user dismissed the account access prompt.
	ErrDeclined = errors.New("wallet: user declined account access")

	// ErrMalformedAccounts means the provider answered with something other
	// than a non-empty list of addresses.
	ErrMalformedAccounts = errors.New("wallet: malformed accounts response")
)

const accountsSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "string",
		"pattern": "^0x[0-9a-fA-F]{40}$"
	}
}`

var accountsValidator = jsonschema.MustCompileString("accounts.schema.json", accountsSchema)

// Connector requests account access from a wallet provider.
type Connector struct {
	provider chain.Provider
	logger   *slog.Logger
}

// NewConnector creates a Connector. A nil provider is valid and makes every
// Connect fail with ErrNoProvider.
func NewConnector(provider chain.Provider, logger *slog.Logger) *Connector {
	return &Connector{
		provider: provider,
		logger:   logger,
	}
}

// Connect sends eth_requestAccounts and returns the first account.
func (c *Connector) Connect(ctx context.Context) (domain.Account, error) {
	if c.provider == nil {
		c.logger.Error("no wallet provider detected")
		return "", ErrNoProvider
	}

	var raw json.RawMessage
	if err := c.provider.CallContext(ctx, &raw, "eth_requestAccounts"); err != nil {
		if chain.IsUserRejected(err) {
			c.logger.Info("account access declined, please connect a wallet")
			return "", ErrDeclined
		}
		return "", fmt.Errorf("request accounts: %w", err)
	}

	accounts, err := decodeAccounts(raw)
	if err != nil {
		return "", err
	}

	c.logger.Info("wallet connected", "account", accounts[0], "accounts_available", len(accounts))
	return domain.Account(accounts[0]), nil
}

func decodeAccounts(raw json.RawMessage) ([]string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccounts, err)
	}
	if err := accountsValidator.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccounts, err)
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccounts, err)
	}
	return accounts, nil
}
