package token

import "errors"

// Decode errors. These carry no cryptographic meaning; they only describe
// why a token string could not be parsed into an Envelope.
var (
	// ErrTokenTooShort is returned for tokens below MinTokenLength.
	ErrTokenTooShort = errors.New("token below minimum length")

	// ErrMalformed is returned when the token structure cannot be parsed.
	ErrMalformed = errors.New("token structure is invalid")

	// ErrVersionUnsupported is returned when the payload carries no
	// recognizable version tag.
	ErrVersionUnsupported = errors.New("token version unsupported")
)
