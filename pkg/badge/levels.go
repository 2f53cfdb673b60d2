package badge

import "github.com/veribadge/veribadge-core/pkg/token"

// Level describes a verification level and its feature set. The catalog
// is static; no cryptography is involved in serving it.
type Level struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Features      []string `json:"features"`
	SecurityLevel string   `json:"security_level"`
	BadgeColor    string   `json:"badge_color"`
}

// Levels returns the verification level catalog.
func Levels() map[string]Level {
	return map[string]Level{
		token.LevelBasic: {
			Name:          "Basic Verification",
			Description:   "Standard contract verification with basic security",
			Features:      []string{"Contract ownership verification", "Basic metadata", "24-hour validity"},
			SecurityLevel: "standard",
			BadgeColor:    "blue",
		},
		token.LevelStandard: {
			Name:          "Standard Verification",
			Description:   "Enhanced verification with additional security measures",
			Features:      []string{"All basic features", "Enhanced security", "Extended validity", "Custom metadata"},
			SecurityLevel: "enhanced",
			BadgeColor:    "green",
		},
		token.LevelPremium: {
			Name:          "Premium Verification",
			Description:   "Premium verification with maximum security and features",
			Features:      []string{"All standard features", "Priority support", "Advanced analytics", "Custom branding"},
			SecurityLevel: "premium",
			BadgeColor:    "gold",
		},
		token.LevelEnterprise: {
			Name:          "Enterprise Verification",
			Description:   "Enterprise-grade verification with white-label options",
			Features:      []string{"All premium features", "White-label badges", "API access", "SLA guarantees"},
			SecurityLevel: "maximum",
			BadgeColor:    "platinum",
		},
	}
}

// DefaultLevel is the level assumed when metadata names none.
const DefaultLevel = token.LevelStandard
