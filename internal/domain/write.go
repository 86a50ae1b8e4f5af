package domain

import "time"

// WriteKind identifies which state-changing contract call was attempted.
type WriteKind string

const (
	WritePost WriteKind = "post"
	WriteLike WriteKind = "like"
)

// WriteOutcome is the result of a write attempt as seen by this service.
type WriteOutcome string

const (
	OutcomeOK       WriteOutcome = "ok"
	OutcomeRejected WriteOutcome = "rejected"
	OutcomeFailed   WriteOutcome = "failed"
)

// WriteAttempt describes a single createPost or likePost submission.
type WriteAttempt struct {
	Kind    WriteKind
	Account Account

	// Author and PostID are only set for likes.
	Author Account
	PostID uint64

	Outcome WriteOutcome
	Error   string
	At      time.Time
}
