package badge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/veribadge/veribadge-core/pkg/signer"
	"github.com/veribadge/veribadge-core/pkg/token"
)

// Issuance policy defaults. Custom expiries are capped so no token can
// outlive the policy maximum.
const (
	DefaultLifetime = 24 * time.Hour
	MaxExpiryHours  = 168
)

// IssuerConfig holds issuance policy. Constructed explicitly and passed
// in, never read from ambient state.
type IssuerConfig struct {
	// BaseURL is the public base for verification/display/embed URLs.
	BaseURL string

	// DefaultLifetime applies when the request carries no custom expiry.
	// Zero means DefaultLifetime (24h).
	DefaultLifetime time.Duration

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// IssueOptions are per-request issuance options.
type IssueOptions struct {
	// CustomExpiryHours overrides the default lifetime, capped at
	// MaxExpiryHours.
	CustomExpiryHours int `json:"custom_expiry_hours,omitempty"`

	// RequireIPBinding pins the token to the issuing caller's IP.
	RequireIPBinding bool `json:"require_ip_binding,omitempty"`

	// EnableEmbed includes an embed URL in the response.
	EnableEmbed bool `json:"enable_embed,omitempty"`
}

// IssueRequest carries the validated inputs for a new badge.
type IssueRequest struct {
	ContractAddress string
	UserID          string
	Metadata        token.Metadata
	Options         IssueOptions

	// CallerIP is used for IP binding and as the fallback identity for
	// anonymous issuance.
	CallerIP  string
	UserAgent string
}

// IssuedBadge is the issuance result returned to the caller. The token
// appears here once; only its hash is persisted.
type IssuedBadge struct {
	BadgeID         string         `json:"badge_id"`
	Token           string         `json:"token"`
	VerificationURL string         `json:"verification_url"`
	BadgeURL        string         `json:"badge_url"`
	EmbedURL        string         `json:"embed_url,omitempty"`
	ExpiresAt       time.Time      `json:"expires_at"`
	IssuedAt        time.Time      `json:"issued_at"`
	Metadata        token.Metadata `json:"metadata"`
}

// Issuer orchestrates badge creation: payload construction, signing,
// encoding, and persistence.
type Issuer struct {
	signer *signer.Signer
	store  Store
	config IssuerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewIssuer creates an Issuer.
func NewIssuer(s *signer.Signer, store Store, config IssuerConfig, logger *slog.Logger) *Issuer {
	if config.DefaultLifetime == 0 {
		config.DefaultLifetime = DefaultLifetime
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		signer: s,
		store:  store,
		config: config,
		logger: logger,
		now:    now,
	}
}

// FallbackUserID derives a convenience identity key from a caller IP for
// anonymous issuance. It is a grouping key only, never an authorization
// credential.
func FallbackUserID(callerIP string) string {
	sum := sha256.Sum256([]byte(callerIP))
	return fmt.Sprintf("ip:%x", sum[:8])
}

// Issue creates a new badge. It rejects with ErrConflict when an active
// badge already exists for the contract; the store enforces this
// atomically so concurrent issuance attempts serialize to one winner.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*IssuedBadge, error) {
	addr := NormalizeAddress(req.ContractAddress)
	if !ValidAddress(addr) {
		return nil, NewError(ErrCodeValidation, "invalid contract address format")
	}
	if err := req.Metadata.Validate(); err != nil {
		return nil, WrapError(ErrCodeValidation, "invalid metadata", err)
	}
	if req.Options.CustomExpiryHours < 0 {
		return nil, NewError(ErrCodeValidation, "custom_expiry_hours must be positive")
	}

	userID := req.UserID
	if userID == "" {
		userID = FallbackUserID(req.CallerIP)
	}

	now := i.now()
	lifetime := i.config.DefaultLifetime
	if req.Options.CustomExpiryHours > 0 {
		hours := req.Options.CustomExpiryHours
		if hours > MaxExpiryHours {
			hours = MaxExpiryHours
		}
		lifetime = time.Duration(hours) * time.Hour
	}
	expiresAt := now.Add(lifetime)

	nonce, err := token.GenerateNonce(token.DefaultNonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	payload := &token.Payload{
		ContractAddress: addr,
		UserID:          userID,
		Metadata:        req.Metadata,
		IssuedAt:        now.Unix(),
		ExpiresAt:       expiresAt.Unix(),
		Nonce:           nonce,
	}
	if req.Options.RequireIPBinding {
		payload.BoundIP = req.CallerIP
	}

	tok, err := i.signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign badge payload: %w", err)
	}

	b := &Badge{
		ID:                 uuid.NewString(),
		ContractAddress:    addr,
		UserID:             userID,
		TokenHash:          signer.TokenHash(tok),
		VerificationMethod: VerificationMethod,
		Metadata:           req.Metadata,
		VerifiedAt:         now,
		ExpiresAt:          &expiresAt,
		IPAddress:          req.CallerIP,
		UserAgent:          req.UserAgent,
	}

	if err := i.store.CreateActive(ctx, b); err != nil {
		return nil, err
	}

	i.logger.Info("verification badge issued",
		"badge_id", b.ID,
		"contract_address", addr,
		"user_id", userID,
		"expires_at", expiresAt,
		"verification_level", req.Metadata.Level(),
	)

	result := &IssuedBadge{
		BadgeID:         b.ID,
		Token:           tok,
		VerificationURL: i.buildURL("/verification/verify/", tok),
		BadgeURL:        i.buildURL("/verification/badges/display/", tok),
		ExpiresAt:       expiresAt,
		IssuedAt:        now,
		Metadata:        req.Metadata,
	}
	if req.Options.EnableEmbed {
		result.EmbedURL = i.buildURL("/verification/embed/", tok)
	}
	return result, nil
}

func (i *Issuer) buildURL(path, tok string) string {
	return i.config.BaseURL + path + url.PathEscape(tok)
}
