package domain

import "strings"

// Category is the three-level classification attached to a transaction.
// Level2 and Level3 may be empty.
type Category struct {
	Level1 string `json:"level1"`
	Level2 string `json:"level2,omitempty"`
	Level3 string `json:"level3,omitempty"`
}

// String renders the category as "Level1 > Level2 > Level3", dropping empty
// levels.
func (c Category) String() string {
	parts := make([]string, 0, 3)
	for _, lvl := range []string{c.Level1, c.Level2, c.Level3} {
		if lvl != "" {
			parts = append(parts, lvl)
		}
	}
	return strings.Join(parts, " > ")
}

// Uncategorised is the terminal fallback category. Every categorisation path
// ends here if nothing else matched.
func Uncategorised() Category {
	return Category{Level1: "Other", Level2: "Uncategorised"}
}

// CategorySource tags how a categorisation result was produced.
type CategorySource string

const (
	CategorySourceRule     CategorySource = "RULE"
	CategorySourceAI       CategorySource = "AI"
	CategorySourceUser     CategorySource = "USER"
	CategorySourceFallback CategorySource = "FALLBACK"
)

// CategorisationResult is the outcome of classifying one transaction.
// Confidence is strictly ordered by source: USER/RULE around 0.9, AI
// variable, FALLBACK 0.1.
type CategorisationResult struct {
	Category   Category       `json:"category"`
	Confidence float64        `json:"confidence"`
	Source     CategorySource `json:"source"`
	RuleID     string         `json:"rule_id,omitempty"`
}

// MerchantMapping is a learned (merchant -> category) association. A nil
// user scope (empty UserID) means the mapping applies to every user; a
// user-specific mapping always outranks a global one for the same key.
type MerchantMapping struct {
	UserID               string         `json:"user_id,omitempty"`
	MerchantRaw          string         `json:"merchant_raw"`
	MerchantStandardised string         `json:"merchant_standardised"`
	Category             Category       `json:"category"`
	Confidence           float64        `json:"confidence"`
	Source               CategorySource `json:"source"`
	UsageCount           int            `json:"usage_count"`
}

// IsGlobal reports whether the mapping applies to all users.
func (m *MerchantMapping) IsGlobal() bool {
	return m.UserID == ""
}
