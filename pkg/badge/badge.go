// Package badge implements the verification badge protocol: issuance,
// verification, display, and revocation of cryptographically signed
// credentials attesting that a smart contract has passed verification
// checks.
package badge

import (
	"regexp"
	"strings"
	"time"

	"github.com/veribadge/veribadge-core/pkg/token"
)

// VerificationMethod tags how a badge was produced.
const VerificationMethod = "hmac_jws_v1"

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// NormalizeAddress lowercases and trims a contract address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ValidAddress reports whether addr is a well-formed 0x-prefixed
// 40-hex-digit contract address.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// Badge is the persistent record of an issued verification badge.
// Mutated only by revocation; never physically deleted by the protocol.
type Badge struct {
	ID              string `gorm:"primaryKey;size:36" json:"id"`
	ContractAddress string `gorm:"index;size:42;not null" json:"contract_address"`
	UserID          string `gorm:"index;size:255;not null" json:"user_id"`

	// TokenHash is the SHA-256 of the issued token. The raw token is
	// returned to the caller once and never stored. Verification resolves
	// badges through this column.
	TokenHash string `gorm:"uniqueIndex;size:64;not null" json:"-"`

	VerificationMethod string         `gorm:"size:64" json:"verification_method"`
	Metadata           token.Metadata `gorm:"serializer:json" json:"metadata"`

	VerifiedAt       time.Time  `json:"verified_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevocationReason string     `gorm:"size:255" json:"revocation_reason,omitempty"`

	IPAddress string `gorm:"size:45" json:"-"`
	UserAgent string `gorm:"size:512" json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// IsRevoked reports whether the badge has been revoked.
func (b *Badge) IsRevoked() bool {
	return b.RevokedAt != nil
}

// IsExpired reports whether the badge has expired at the given time.
// A nil ExpiresAt means the badge does not expire.
func (b *Badge) IsExpired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// IsActive reports whether the badge is neither revoked nor expired.
func (b *Badge) IsActive(now time.Time) bool {
	return !b.IsRevoked() && !b.IsExpired(now)
}

// TruncatedAddress returns a shortened address for display
// (0x1234...abcd).
func (b *Badge) TruncatedAddress() string {
	if len(b.ContractAddress) <= 10 {
		return b.ContractAddress
	}
	return b.ContractAddress[:6] + "..." + b.ContractAddress[len(b.ContractAddress)-4:]
}
