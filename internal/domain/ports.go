package domain

import "context"

// Wallet grants access to the user's account through a wallet provider.
type Wallet interface {
	// Connect asks the provider for account access and returns the first
	// account it exposes.
	Connect(ctx context.Context) (Account, error)
}

// PostContract is the fixed method interface of the deployed posts contract.
type PostContract interface {
	// SubmitPost sends createPost(content) from the given account.
	SubmitPost(ctx context.Context, content string, from Account) error

	// FetchAllPosts reads getAllPosts(account).
	FetchAllPosts(ctx context.Context, account Account) ([]Post, error)

	// SubmitLike sends likePost(author, id) from the given account.
	SubmitLike(ctx context.Context, author Account, id uint64, from Account) error
}

// Recorder keeps a local journal of write attempts.
type Recorder interface {
	Record(ctx context.Context, attempt WriteAttempt) error
}
