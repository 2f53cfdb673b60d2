package token

import "fmt"

// Metadata field limits, enforced at the boundary before a payload is
// constructed. The metadata bag is display-only and is never consulted
// for security decisions.
const (
	MaxProjectNameLen = 100
	MaxWebsiteLen     = 255
	MaxDescriptionLen = 500
	MaxTags           = 10
	MaxTagLen         = 50
	MaxExtraKeys      = 16
	MaxExtraValueLen  = 256
)

// Supported verification levels.
const (
	LevelBasic      = "basic"
	LevelStandard   = "standard"
	LevelPremium    = "premium"
	LevelEnterprise = "enterprise"
)

// Metadata is the open key-value information attached to a badge: a small
// set of known optional fields plus a bounded opaque extension map.
type Metadata struct {
	ProjectName       string            `json:"project_name,omitempty"`
	Website           string            `json:"website,omitempty"`
	Description       string            `json:"description,omitempty"`
	VerificationLevel string            `json:"verification_level,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Validate checks metadata size and content bounds.
func (m *Metadata) Validate() error {
	if len(m.ProjectName) > MaxProjectNameLen {
		return fmt.Errorf("project_name too long (max %d characters)", MaxProjectNameLen)
	}
	if len(m.Website) > MaxWebsiteLen {
		return fmt.Errorf("website too long (max %d characters)", MaxWebsiteLen)
	}
	if len(m.Description) > MaxDescriptionLen {
		return fmt.Errorf("description too long (max %d characters)", MaxDescriptionLen)
	}
	if m.VerificationLevel != "" && !ValidLevel(m.VerificationLevel) {
		return fmt.Errorf("unknown verification_level %q", m.VerificationLevel)
	}
	if len(m.Tags) > MaxTags {
		return fmt.Errorf("too many tags (max %d)", MaxTags)
	}
	for _, tag := range m.Tags {
		if len(tag) > MaxTagLen {
			return fmt.Errorf("tag too long (max %d characters)", MaxTagLen)
		}
	}
	if len(m.Extra) > MaxExtraKeys {
		return fmt.Errorf("too many extra keys (max %d)", MaxExtraKeys)
	}
	for k, v := range m.Extra {
		if len(v) > MaxExtraValueLen {
			return fmt.Errorf("extra value for %q too long (max %d bytes)", k, MaxExtraValueLen)
		}
	}
	return nil
}

// Level returns the verification level, defaulting to standard.
func (m *Metadata) Level() string {
	if m.VerificationLevel == "" {
		return LevelStandard
	}
	return m.VerificationLevel
}

// ValidLevel reports whether s is a recognized verification level.
func ValidLevel(s string) bool {
	switch s {
	case LevelBasic, LevelStandard, LevelPremium, LevelEnterprise:
		return true
	}
	return false
}
