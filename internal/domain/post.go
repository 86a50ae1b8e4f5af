package domain

// Account is the wallet identity a session acts as. It is the hex address
// exactly as returned by the wallet provider and is never created or stored
// by this service.
type Account string

// Post is a read-only copy of a post held by the contract.
type Post struct {
	// ID is the contract-assigned identifier, unique per post. Like state is
	// keyed by ID alone.
	ID uint64

	// Author is the account that created the post.
	Author Account

	// Content is the post body exactly as stored on chain.
	Content string

	// Timestamp is the block time (unix seconds) recorded by the contract.
	Timestamp int64

	// Likes is the like count at the time of the read.
	Likes uint64
}
