package badge

import (
	"fmt"
	"time"

	"github.com/veribadge/veribadge-core/pkg/token"
)

// DisplayOptions control badge rendering for embeds.
type DisplayOptions struct {
	Theme       string `json:"theme,omitempty"`       // light, dark, minimal
	Size        string `json:"size,omitempty"`        // small, medium, large
	ShowDetails bool   `json:"show_details,omitempty"`
}

// DisplayData is the display-ready description of a verified badge.
type DisplayData struct {
	ContractAddress  string     `json:"contract_address"`
	TruncatedAddress string     `json:"truncated_address"`
	ProjectName      string     `json:"project_name"`
	Level            string     `json:"verification_level"`
	Label            string     `json:"label"`
	Color            string     `json:"color"`
	VerifiedAt       time.Time  `json:"verified_at"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Website          string     `json:"website,omitempty"`
	Description      string     `json:"description,omitempty"`
}

// NewDisplayData builds display data from a verified badge record.
func NewDisplayData(b *Badge) *DisplayData {
	name := b.Metadata.ProjectName
	if name == "" {
		name = "Verified Contract"
	}
	level := b.Metadata.Level()
	color, label := badgeStyle(level)

	return &DisplayData{
		ContractAddress:  b.ContractAddress,
		TruncatedAddress: b.TruncatedAddress(),
		ProjectName:      name,
		Level:            level,
		Label:            label,
		Color:            color,
		VerifiedAt:       b.VerifiedAt,
		ExpiresAt:        b.ExpiresAt,
		Website:          b.Metadata.Website,
		Description:      b.Metadata.Description,
	}
}

// badgeStyle maps a verification level to a display color and label.
func badgeStyle(level string) (color, label string) {
	switch level {
	case token.LevelBasic:
		return "#3B82F6", "Verified"
	case token.LevelPremium:
		return "#F59E0B", "Premium Verified"
	case token.LevelEnterprise:
		return "#6B7280", "Enterprise Verified"
	default:
		return "#10B981", "Verified"
	}
}

// RenderSVG renders a compact SVG badge for external embedding.
func RenderSVG(d *DisplayData, opts DisplayOptions) string {
	text := d.Label
	if opts.ShowDetails {
		text = fmt.Sprintf("%s · %s", d.Label, d.TruncatedAddress)
	}

	height := 20
	fontSize := 11
	switch opts.Size {
	case "small":
		height, fontSize = 16, 9
	case "large":
		height, fontSize = 28, 14
	}
	width := len(text)*(fontSize*2/3) + 20

	color := d.Color
	if opts.Theme == "dark" {
		color = "#1F2937"
	}

	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
		`<rect width="%d" height="%d" rx="3" ry="3" fill="%s"/>`+
		`<text x="10" y="%d" font-family="Verdana,sans-serif" font-size="%d" fill="white">%s</text>`+
		`</svg>`,
		width, height, width, height, width, height, color, height-6, fontSize, text)
}

// RenderErrorSVG renders the badge shown when verification fails.
func RenderErrorSVG(code string) string {
	text := "Not Verified"
	if code != "" {
		text = fmt.Sprintf("Not Verified (%s)", code)
	}
	width := len(text)*8 + 20
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="20" viewBox="0 0 %d 20">`+
		`<rect width="%d" height="20" rx="3" ry="3" fill="#EF4444"/>`+
		`<text x="10" y="14" font-family="Verdana,sans-serif" font-size="11" fill="white">%s</text>`+
		`</svg>`,
		width, width, width, text)
}
