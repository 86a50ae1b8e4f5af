package contract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/blackmichael/onchain-posts/internal/domain"
)

// callArgs is the transaction object of eth_call and eth_sendTransaction.
type callArgs struct {
	From *common.Address `json:"from,omitempty"`
	To   *common.Address `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

// receiptStatus is the part of eth_getTransactionReceipt this client reads.
type receiptStatus struct {
	Status hexutil.Uint64 `json:"status"`
}

// postTuple mirrors the contract's Post struct. Field order must match the
// tuple components; decoding is positional.
type postTuple struct {
	ID        *big.Int       `abi:"id"`
	Author    common.Address `abi:"author"`
	Content   string         `abi:"content"`
	Timestamp *big.Int       `abi:"timestamp"`
	Likes     *big.Int       `abi:"likes"`
}

func (t postTuple) toDomain() (domain.Post, error) {
	if t.ID == nil || !t.ID.IsUint64() {
		return domain.Post{}, fmt.Errorf("id %v out of range", t.ID)
	}
	if t.Timestamp == nil || !t.Timestamp.IsInt64() {
		return domain.Post{}, fmt.Errorf("timestamp %v out of range", t.Timestamp)
	}
	if t.Likes == nil || !t.Likes.IsUint64() {
		return domain.Post{}, fmt.Errorf("likes %v out of range", t.Likes)
	}
	return domain.Post{
		ID:        t.ID.Uint64(),
		Author:    domain.Account(t.Author.Hex()),
		Content:   t.Content,
		Timestamp: t.Timestamp.Int64(),
		Likes:     t.Likes.Uint64(),
	}, nil
}
