package badge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/veribadge/veribadge-core/pkg/replay"
	"github.com/veribadge/veribadge-core/pkg/signer"
	"github.com/veribadge/veribadge-core/pkg/token"
)

// State names a stage of the verification flow. Each failed check maps a
// verification attempt to a terminal state with a matching error code.
type State string

// Verification states, in check order.
const (
	StateReceived    State = "RECEIVED"
	StateDecoded     State = "DECODED"
	StateSignatureOK State = "SIGNATURE_OK"
	StateNotExpired  State = "NOT_EXPIRED"
	StateReplayOK    State = "REPLAY_OK"
	StateNotRevoked  State = "NOT_REVOKED"
	StateValid       State = "VALID"

	StateMalformed        State = "MALFORMED"
	StateSignatureInvalid State = "SIGNATURE_INVALID"
	StateExpired          State = "EXPIRED"
	StateReplayed         State = "REPLAYED"
	StateRevoked          State = "REVOKED"
	StateContextMismatch  State = "CONTEXT_MISMATCH"
	StateNotFound         State = "NOT_FOUND"
)

// maxClockSkew tolerates small clock differences when checking issued_at.
const maxClockSkew = time.Minute

// VerifyContext carries request context for a verification attempt.
type VerifyContext struct {
	// IP is the presenting caller's address, checked only when the token
	// was issued with IP binding.
	IP string

	// UserAgent is recorded for audit logging.
	UserAgent string

	// Consume redeems the token nonce through the replay guard. Display
	// checks set this false so repeated rendering of the same badge does
	// not burn the proof artifact.
	Consume bool
}

// Result is the outcome of a verification attempt.
type Result struct {
	Verified bool           `json:"verified"`
	State    State          `json:"state"`
	Code     string         `json:"code"`
	Payload  *token.Payload `json:"payload,omitempty"`
	Badge    *Badge         `json:"badge,omitempty"`
	// CheckedAt is the clock reading used for all expiry comparisons.
	CheckedAt time.Time `json:"checked_at"`
}

// VerifierConfig holds verification policy.
type VerifierConfig struct {
	// Now overrides the clock (for testing).
	Now func() time.Time
}

// Verifier is the authoritative check of whether a presented token
// currently represents a valid, active verification. Verification never
// mutates the badge; only the replay guard's nonce bookkeeping is
// consumed, and only for redemption checks.
type Verifier struct {
	signer *signer.Signer
	guard  replay.Guard
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewVerifier creates a Verifier.
func NewVerifier(s *signer.Signer, guard replay.Guard, store Store, config VerifierConfig, logger *slog.Logger) *Verifier {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		signer: s,
		guard:  guard,
		store:  store,
		logger: logger,
		now:    now,
	}
}

// Verify runs the full verification flow:
//
//	decode -> signature -> not-expired -> context -> replay -> not-revoked -> VALID
//
// The expiry and context gates run before nonce consumption so an expired
// token or a rejected wrong-IP attempt never consumes replay state; only
// an attempt that could still succeed burns the nonce. Every failure
// returns a Result naming the terminal state plus an *Error carrying the
// matching code; a backing-store failure is the distinct transient
// STORE_UNAVAILABLE, never a verification verdict.
func (v *Verifier) Verify(ctx context.Context, tok string, vctx VerifyContext) (*Result, error) {
	now := v.now()
	result := &Result{State: StateReceived, CheckedAt: now}

	env, err := token.Decode(tok)
	if err != nil {
		return v.fail(result, StateMalformed, decodeError(err), vctx)
	}
	result.State = StateDecoded

	payload, err := v.signer.Verify(env)
	if err != nil {
		if errors.Is(err, signer.ErrUnknownVersion) {
			return v.fail(result, StateMalformed, WrapError(ErrCodeVersionUnsupported, "token version unsupported", err), vctx)
		}
		return v.fail(result, StateSignatureInvalid, ErrSignatureInvalid, vctx)
	}
	result.State = StateSignatureOK
	result.Payload = payload

	if payload.IsNotYetValid(now, maxClockSkew) {
		return v.fail(result, StateExpired, ErrNotYetValid, vctx)
	}
	if payload.IsExpired(now) {
		return v.fail(result, StateExpired, ErrExpired, vctx)
	}
	result.State = StateNotExpired

	if payload.BoundIP != "" && payload.BoundIP != vctx.IP {
		return v.fail(result, StateContextMismatch, ErrContextMismatch, vctx)
	}

	if vctx.Consume && v.guard != nil {
		accepted, gerr := v.guard.RecordIfNew(ctx, payload.Nonce, payload.Remaining(now))
		if gerr != nil {
			return nil, WrapError(ErrCodeStoreUnavailable, "replay guard unavailable", gerr)
		}
		if !accepted {
			return v.fail(result, StateReplayed, ErrReplayed, vctx)
		}
	}
	result.State = StateReplayOK

	b, err := v.store.FindByTokenHash(ctx, signer.TokenHash(tok))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return v.fail(result, StateNotFound, ErrNotFound, vctx)
		}
		return nil, WrapError(ErrCodeStoreUnavailable, "badge store lookup failed", err)
	}
	if b.IsRevoked() {
		return v.fail(result, StateRevoked, ErrRevoked, vctx)
	}
	if b.IsExpired(now) {
		return v.fail(result, StateExpired, ErrExpired, vctx)
	}
	result.State = StateValid
	result.Verified = true
	result.Badge = b

	v.logger.Info("verification badge validated",
		"contract_address", payload.ContractAddress,
		"user_id", payload.UserID,
		"consuming", vctx.Consume,
	)
	return result, nil
}

// fail finalizes a failed attempt, logging replay and signature failures
// as security events.
func (v *Verifier) fail(result *Result, state State, verr *Error, vctx VerifyContext) (*Result, error) {
	result.State = state
	result.Verified = false
	result.Code = verr.Code

	switch verr.Code {
	case ErrCodeReplayed, ErrCodeSignatureInvalid, ErrCodeContextMismatch:
		contract := "unknown"
		if result.Payload != nil {
			contract = result.Payload.ContractAddress
		}
		v.logger.Warn("verification security event",
			"code", verr.Code,
			"contract_address", contract,
			"ip", vctx.IP,
			"user_agent", vctx.UserAgent,
		)
	}
	return result, verr
}

// decodeError maps a codec error onto the protocol error taxonomy.
func decodeError(err error) *Error {
	switch {
	case errors.Is(err, token.ErrTokenTooShort):
		return ErrTokenTooShort
	case errors.Is(err, token.ErrVersionUnsupported):
		return ErrVersionUnsupported
	default:
		return WrapError(ErrCodeMalformed, "token structure is invalid", err)
	}
}
