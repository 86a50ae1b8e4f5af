// Package chain is the JSON-RPC boundary to the wallet provider. The same
// provider answers account requests, signs and sends transactions and
// serves contract reads.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// UserRejectedCode is the EIP-1193 userRejectedRequest error code.
const UserRejectedCode = 4001

// ErrNoProvider is returned when no wallet provider endpoint is configured.
var ErrNoProvider = errors.New("no wallet provider detected")

// Provider issues JSON-RPC requests. *rpc.Client satisfies it.
type Provider interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Dial connects to the wallet provider at url. Both HTTP and WebSocket
// endpoints are accepted.
func Dial(ctx context.Context, url string) (*rpc.Client, error) {
	if url == "" {
		return nil, ErrNoProvider
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial provider %s: %w", url, err)
	}
	return client, nil
}

// IsUserRejected reports whether err carries the provider's "user rejected"
// code. All other provider error codes are treated alike.
func IsUserRejected(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == UserRejectedCode
}
