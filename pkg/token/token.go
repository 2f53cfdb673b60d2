// Package token implements the verification badge token codec: a
// deterministic, lossless mapping between a badge payload and a
// transport-safe signed string.
//
// Tokens are JWS compact serializations (URL-safe base64, no padding),
// so they can be embedded directly in signed verification URLs. Decoding
// only recovers structure; trust comes from the signer package.
package token

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
)

// MinTokenLength is the minimum accepted token length. Anything shorter
// cannot be a well-formed signed payload and is rejected before parsing.
const MinTokenLength = 50

// Version is the current payload schema/key version tag. The verifier
// accepts older versions as long as the keyring still holds their secret.
const Version = "v1"

// Payload is the signed content of a verification badge token. It is
// immutable once signed; any mutation invalidates the signature.
type Payload struct {
	// ContractAddress is the lowercase 0x-prefixed hex address the badge
	// attests to.
	ContractAddress string `json:"contract_address"`

	// UserID identifies the issuing principal. May be an IP-derived
	// fallback key for anonymous issuance; never an authorization
	// credential.
	UserID string `json:"user_id"`

	// Metadata is display information carried opaquely in the token.
	Metadata Metadata `json:"metadata,omitempty"`

	// IssuedAt is the issuance timestamp (Unix seconds).
	IssuedAt int64 `json:"iat"`

	// ExpiresAt is the absolute expiry timestamp (Unix seconds).
	// Absolute rather than a duration so verification is unambiguous
	// under clock drift.
	ExpiresAt int64 `json:"exp"`

	// Nonce is the unique per-issuance random value tracked by the
	// replay guard.
	Nonce string `json:"nonce"`

	// Version selects the signing key and schema revision.
	Version string `json:"ver"`

	// BoundIP, when set, pins the token to the issuing caller's IP.
	BoundIP string `json:"bound_ip,omitempty"`
}

// IsExpired reports whether the payload's expiry has passed at the given time.
func (p *Payload) IsExpired(now time.Time) bool {
	return p.ExpiresAt <= now.Unix()
}

// IsNotYetValid reports whether the payload claims issuance in the future,
// beyond the allowed clock skew.
func (p *Payload) IsNotYetValid(now time.Time, skew time.Duration) bool {
	return p.IssuedAt > now.Add(skew).Unix()
}

// Remaining returns the payload's remaining validity at the given time.
// Returns zero or negative for expired payloads.
func (p *Payload) Remaining(now time.Time) time.Duration {
	return time.Unix(p.ExpiresAt, 0).Sub(now)
}

// Canonical returns the canonical JSON bytes of the payload: the exact
// bytes that get signed. Marshaling through a map sorts keys, so the
// representation is deterministic regardless of struct field order.
func Canonical(p *Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var rawMap map[string]interface{}
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}

	canonical, err := json.Marshal(rawMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create canonical json: %w", err)
	}

	return canonical, nil
}

// Envelope is a decoded but not yet verified token. It carries the parsed
// JWS so the signer can verify the signature without re-parsing.
type Envelope struct {
	// Payload is extracted WITHOUT signature verification. Callers must
	// not trust it until the signer has verified the envelope.
	Payload Payload

	// Version is the key version from the payload, used to select the
	// verification secret.
	Version string

	// JWS is the parsed signature object.
	JWS *jose.JSONWebSignature
}

// Decode parses a token string into an Envelope. It fails with
// ErrTokenTooShort below the minimum length threshold and ErrMalformed
// when the JWS structure or payload JSON cannot be parsed. No
// cryptographic trust is established here.
func Decode(tok string) (*Envelope, error) {
	if len(tok) < MinTokenLength {
		return nil, ErrTokenTooShort
	}

	jwsObj, err := jose.ParseSigned(tok, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	unsafePayload := jwsObj.UnsafePayloadWithoutVerification()
	var payload Payload
	if err := json.Unmarshal(unsafePayload, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid payload json: %v", ErrMalformed, err)
	}

	if payload.ContractAddress == "" || payload.Nonce == "" || payload.IssuedAt == 0 || payload.ExpiresAt == 0 {
		return nil, fmt.Errorf("%w: missing required payload fields", ErrMalformed)
	}
	if payload.Version == "" {
		return nil, ErrVersionUnsupported
	}

	return &Envelope{
		Payload: payload,
		Version: payload.Version,
		JWS:     jwsObj,
	}, nil
}
