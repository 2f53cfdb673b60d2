// Package signer produces and checks the keyed authentication tag on
// verification badge tokens. Tokens are signed as compact JWS with
// HMAC-SHA256 over the canonical payload bytes; the signing secret is
// server-held and never transmitted.
//
// Secrets are organized in a Keyring keyed by version, so old tokens
// remain verifiable while keys rotate. Verification failures are reported
// as a single ErrSignatureInvalid without further distinction.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"

	"github.com/veribadge/veribadge-core/pkg/token"
)

// MinSecretLen is the minimum accepted secret length in bytes (256 bits).
const MinSecretLen = 32

var (
	// ErrSignatureInvalid is returned for any signature mismatch. The
	// cause is deliberately not distinguished further.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrUnknownVersion is returned when the keyring holds no secret for
	// the token's key version.
	ErrUnknownVersion = errors.New("unknown signing key version")

	// ErrSecretTooShort is returned when a keyring secret is below the
	// minimum length.
	ErrSecretTooShort = errors.New("signing secret below minimum length")
)

// Keyring holds the signing secrets by version. One version is active for
// signing; all versions verify.
type Keyring struct {
	active  string
	secrets map[string][]byte
}

// NewKeyring creates a keyring. The active version must be present in
// secrets, and every secret must be at least MinSecretLen bytes.
func NewKeyring(active string, secrets map[string][]byte) (*Keyring, error) {
	if _, ok := secrets[active]; !ok {
		return nil, fmt.Errorf("active version %q not present in secrets", active)
	}
	for version, secret := range secrets {
		if len(secret) < MinSecretLen {
			return nil, fmt.Errorf("%w: version %q has %d bytes", ErrSecretTooShort, version, len(secret))
		}
	}

	copied := make(map[string][]byte, len(secrets))
	for version, secret := range secrets {
		copied[version] = append([]byte(nil), secret...)
	}

	return &Keyring{active: active, secrets: copied}, nil
}

// ActiveVersion returns the version used for new signatures.
func (k *Keyring) ActiveVersion() string {
	return k.active
}

// secret returns the secret for a version.
func (k *Keyring) secret(version string) ([]byte, error) {
	s, ok := k.secrets[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}
	return s, nil
}

// DeriveSecret derives a per-version signing secret from an application
// key via HMAC-SHA256, so one configured key yields independent secrets
// per purpose and version.
func DeriveSecret(appKey, version string) []byte {
	mac := hmac.New(sha256.New, []byte(appKey))
	mac.Write([]byte("badge-signing:" + version))
	return mac.Sum(nil)
}

// Signer signs and verifies badge payloads against a Keyring.
type Signer struct {
	keyring *Keyring
}

// New creates a Signer.
func New(keyring *Keyring) *Signer {
	return &Signer{keyring: keyring}
}

// Sign stamps the payload with the active key version, canonicalizes it,
// and returns the compact JWS token. The payload's Version field is set
// to the active version as a side effect so decode can select the
// verification secret later.
func (s *Signer) Sign(payload *token.Payload) (string, error) {
	payload.Version = s.keyring.active

	secret, err := s.keyring.secret(s.keyring.active)
	if err != nil {
		return "", err
	}

	opts := (&jose.SignerOptions{}).WithHeader(jose.HeaderKey("kid"), s.keyring.active)
	joseSigner, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret}, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	canonical, err := token.Canonical(payload)
	if err != nil {
		return "", err
	}

	jwsObj, err := joseSigner.Sign(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}

	return jwsObj.CompactSerialize()
}

// Verify checks the envelope's signature against the keyring secret
// selected by the payload's version tag. On success it returns the
// verified payload, re-unmarshaled from the verified bytes to guarantee
// integrity. Any mismatch is ErrSignatureInvalid; an unrecognized version
// is ErrUnknownVersion.
func (s *Signer) Verify(env *token.Envelope) (*token.Payload, error) {
	secret, err := s.keyring.secret(env.Version)
	if err != nil {
		return nil, err
	}

	verified, err := env.JWS.Verify(secret)
	if err != nil {
		return nil, ErrSignatureInvalid
	}

	var payload token.Payload
	if err := json.Unmarshal(verified, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verified payload: %w", err)
	}

	return &payload, nil
}

// TokenHash returns the hex SHA-256 of a token string. The store keeps
// token hashes, never raw tokens.
func TokenHash(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return fmt.Sprintf("%x", sum)
}
