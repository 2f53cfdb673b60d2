package badge

import (
	"context"
	"log/slog"
	"time"
)

// Revoker handles badge revocation. Revocation is permanent: a revoked
// badge fails verification at the revocation gate forever after, even
// before its natural expiry. Revoking an already-revoked badge is an
// explicit ErrAlreadyRevoked, not a silent no-op, so callers always learn
// the badge's true terminal state.
type Revoker struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRevoker creates a Revoker.
func NewRevoker(store Store, now func() time.Time, logger *slog.Logger) *Revoker {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Revoker{store: store, logger: logger, now: now}
}

// Revoke marks the badge for a contract as revoked. Authorization is an
// ownership check: the store only matches badges whose user_id equals
// requestingUserID, so a non-owner sees ErrNotFound rather than another
// user's badge state.
func (r *Revoker) Revoke(ctx context.Context, contractAddress, reason, requestingUserID string) (*Badge, error) {
	addr := NormalizeAddress(contractAddress)
	if !ValidAddress(addr) {
		return nil, NewError(ErrCodeValidation, "invalid contract address format")
	}
	if requestingUserID == "" {
		return nil, NewError(ErrCodeValidation, "user_id is required")
	}
	if reason == "" {
		reason = "manual revocation"
	}

	b, err := r.store.Revoke(ctx, addr, requestingUserID, reason, r.now())
	if err != nil {
		return nil, err
	}

	r.logger.Info("verification badge revoked",
		"badge_id", b.ID,
		"contract_address", addr,
		"user_id", requestingUserID,
		"reason", reason,
	)
	return b, nil
}
