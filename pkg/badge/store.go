package badge

import (
	"context"
	"time"
)

// Store is the durable record of issued badges. Implementations must make
// CreateActive atomic with respect to the one-active-badge-per-contract
// invariant: two concurrent creates for the same contract must not both
// succeed.
type Store interface {
	// CreateActive inserts a new badge if no active (non-revoked,
	// non-expired) badge exists for its contract address. Returns
	// ErrConflict (carrying the existing badge's identifying info in the
	// message) when one does.
	CreateActive(ctx context.Context, b *Badge) error

	// FindActiveByContract returns the active badge for a contract, or
	// ErrNotFound.
	FindActiveByContract(ctx context.Context, contractAddress string) (*Badge, error)

	// FindByTokenHash returns the badge issued for the exact presented
	// token, regardless of state, or ErrNotFound. Verification resolves
	// badges by token hash so a token stays bound to the row it was
	// issued with; a later badge for the same contract never answers for
	// an older token.
	FindByTokenHash(ctx context.Context, tokenHash string) (*Badge, error)

	// Revoke marks the caller-owned badge for a contract as revoked.
	// Returns ErrNotFound when no badge exists for that contract and
	// user, ErrAlreadyRevoked when it was revoked earlier.
	Revoke(ctx context.Context, contractAddress, userID, reason string, at time.Time) (*Badge, error)

	// Stats returns issuance counts since the given time.
	Stats(ctx context.Context, since time.Time) (*Stats, error)
}

// Stats summarizes badge issuance over a period.
type Stats struct {
	TotalBadges   int64 `json:"total_badges"`
	ActiveBadges  int64 `json:"active_badges"`
	RevokedBadges int64 `json:"revoked_badges"`
	ExpiredBadges int64 `json:"expired_badges"`
}
