package contract

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/blackmichael/onchain-posts/internal/chain"
	"github.com/blackmichael/onchain-posts/internal/domain"
)

//go:embed posts.abi.json
var defaultABI []byte

var (
	// ErrRejected means the user dismissed the transaction prompt.
	ErrRejected = errors.New("contract: transaction rejected by user")

	// ErrReverted means the transaction was mined but failed.
	ErrReverted = errors.New("contract: transaction reverted")

	// ErrMalformed means getAllPosts did not return a well-formed post list.
	ErrMalformed = errors.New("contract: malformed posts response")

	// ErrInvalidAccount means an account is not a hex address.
	ErrInvalidAccount = errors.New("contract: invalid account")
)

const defaultPollInterval = 2 * time.Second

// Methods names the three contract methods this client calls.
type Methods struct {
	Create string
	List   string
	Like   string
}

// DefaultMethods returns the method names of the embedded descriptor.
func DefaultMethods() Methods {
	return Methods{
		Create: "createPost",
		List:   "getAllPosts",
		Like:   "likePost",
	}
}

// Options is the static configuration of a Client.
type Options struct {
	// Address is the deployed contract address.
	Address string

	// ABI is the JSON interface descriptor. The embedded descriptor is used
	// when empty.
	ABI []byte

	// Methods overrides individual method names; empty fields keep the
	// defaults.
	Methods Methods

	// Confirm waits for the transaction receipt before a write returns.
	Confirm bool

	// PollInterval is the receipt polling period when Confirm is set.
	PollInterval time.Duration
}

// Client calls the posts contract through a wallet provider. It adds no
// business logic beyond parameter marshaling.
type Client struct {
	provider     chain.Provider
	address      common.Address
	abi          abi.ABI
	methods      Methods
	confirm      bool
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewClient validates the static configuration and returns a Client. With a
// nil provider every call fails with chain.ErrNoProvider.
func NewClient(provider chain.Provider, opts Options, logger *slog.Logger) (*Client, error) {
	if !common.IsHexAddress(opts.Address) {
		return nil, fmt.Errorf("contract address %q is not a hex address", opts.Address)
	}

	descriptor := opts.ABI
	if len(descriptor) == 0 {
		descriptor = defaultABI
	}
	parsed, err := abi.JSON(bytes.NewReader(descriptor))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	methods := DefaultMethods()
	if opts.Methods.Create != "" {
		methods.Create = opts.Methods.Create
	}
	if opts.Methods.List != "" {
		methods.List = opts.Methods.List
	}
	if opts.Methods.Like != "" {
		methods.Like = opts.Methods.Like
	}
	for _, name := range []string{methods.Create, methods.List, methods.Like} {
		if _, ok := parsed.Methods[name]; !ok {
			return nil, fmt.Errorf("contract abi has no method %q", name)
		}
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Client{
		provider:     provider,
		address:      common.HexToAddress(opts.Address),
		abi:          parsed,
		methods:      methods,
		confirm:      opts.Confirm,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

// Address returns the contract address.
func (c *Client) Address() common.Address {
	return c.address
}

// SubmitPost sends createPost(content) from the given account.
func (c *Client) SubmitPost(ctx context.Context, content string, from domain.Account) error {
	data, err := c.abi.Pack(c.methods.Create, content)
	if err != nil {
		return fmt.Errorf("pack %s: %w", c.methods.Create, err)
	}
	return c.send(ctx, c.methods.Create, from, data)
}

// SubmitLike sends likePost(author, id) from the given account.
func (c *Client) SubmitLike(ctx context.Context, author domain.Account, id uint64, from domain.Account) error {
	if !common.IsHexAddress(string(author)) {
		return fmt.Errorf("%w: author %q", ErrInvalidAccount, author)
	}
	data, err := c.abi.Pack(c.methods.Like, common.HexToAddress(string(author)), new(big.Int).SetUint64(id))
	if err != nil {
		return fmt.Errorf("pack %s: %w", c.methods.Like, err)
	}
	return c.send(ctx, c.methods.Like, from, data)
}

// FetchAllPosts reads getAllPosts(account) at the latest block. A response
// that does not decode as a post list yields ErrMalformed.
func (c *Client) FetchAllPosts(ctx context.Context, account domain.Account) ([]domain.Post, error) {
	if !common.IsHexAddress(string(account)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccount, account)
	}
	data, err := c.abi.Pack(c.methods.List, common.HexToAddress(string(account)))
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", c.methods.List, err)
	}

	if c.provider == nil {
		return nil, chain.ErrNoProvider
	}

	var out hexutil.Bytes
	call := callArgs{To: &c.address, Data: data}
	if err := c.provider.CallContext(ctx, &out, "eth_call", call, "latest"); err != nil {
		return nil, fmt.Errorf("call %s: %w", c.methods.List, err)
	}

	var tuples []postTuple
	if err := c.abi.UnpackIntoInterface(&tuples, c.methods.List, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	posts := make([]domain.Post, 0, len(tuples))
	for i, t := range tuples {
		p, err := t.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%w: post %d: %v", ErrMalformed, i, err)
		}
		posts = append(posts, p)
	}

	c.logger.Debug("fetched posts", "account", account, "count", len(posts))
	return posts, nil
}

func (c *Client) send(ctx context.Context, method string, from domain.Account, data []byte) error {
	if c.provider == nil {
		return chain.ErrNoProvider
	}
	if !common.IsHexAddress(string(from)) {
		return fmt.Errorf("%w: sender %q", ErrInvalidAccount, from)
	}

	sender := common.HexToAddress(string(from))
	tx := callArgs{
		From: &sender,
		To:   &c.address,
		Data: data,
	}

	var hash common.Hash
	if err := c.provider.CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		if chain.IsUserRejected(err) {
			return ErrRejected
		}
		return fmt.Errorf("send %s: %w", method, err)
	}

	c.logger.Info("transaction sent", "method", method, "from", from, "tx", hash.Hex())

	if !c.confirm {
		return nil
	}
	return c.waitMined(ctx, hash)
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var receipt *receiptStatus
		if err := c.provider.CallContext(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
			return fmt.Errorf("get receipt %s: %w", hash.Hex(), err)
		}
		if receipt != nil {
			if uint64(receipt.Status) == 0 {
				return fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
			}
			c.logger.Debug("transaction mined", "tx", hash.Hex())
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
