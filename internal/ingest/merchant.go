package ingest

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultAliases maps a case-insensitive substring of the raw merchant to
// its standardised form. An alias hit wins over token stripping.
var defaultAliases = map[string]string{
	"woolworths":           "Woolworths",
	"coles":                "Coles",
	"aldi":                 "Aldi",
	"tesco":                "Tesco",
	"sainsbury":            "Sainsbury's",
	"amazon":               "Amazon",
	"amzn":                 "Amazon",
	"paypal":               "PayPal",
	"netflix":              "Netflix",
	"spotify":              "Spotify",
	"uber eats":            "Uber Eats",
	"ubereats":             "Uber Eats",
	"uber":                 "Uber",
	"mcdonald":             "McDonald's",
	"starbucks":            "Starbucks",
	"shell":                "Shell",
	"bp ":                  "BP",
	"apple.com":            "Apple",
	"google":               "Google",
	"transport for london": "Transport for London",
	"tfl":                  "Transport for London",
}

var (
	// Entity suffixes and payment-rail boilerplate that carry no merchant
	// identity.
	noiseTokens = regexp.MustCompile(`(?i)\b(pty\s+ltd|ltd|llc|inc|plc|gmbh|co\b|card\s+purchase|purchase|pos|eftpos|visa|mastercard|debit|credit|direct\s+debit|dd|bpay|payment|pmt|ref)\b\.?`)
	longNumbers = regexp.MustCompile(`\d{5,}`)
	punctRuns   = regexp.MustCompile(`[*#\-_/\\.,:]{2,}|[*#]`)
	spaceRuns   = regexp.MustCompile(`\s{2,}`)
)

// LoadAliasesYAML reads extra merchant aliases from a YAML file holding a
// flat map of raw substring to standardised name.
func LoadAliasesYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadAliasesYAML: reading %s: %w", path, err)
	}

	var aliases map[string]string
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("LoadAliasesYAML: parsing %s: %w", path, err)
	}
	if len(aliases) == 0 {
		return nil, fmt.Errorf("LoadAliasesYAML: %s contains no aliases", path)
	}
	return aliases, nil
}

// MerchantCleaner standardises raw merchant strings. Alias lookups run
// first; otherwise known noise is stripped and casing is normalised.
type MerchantCleaner struct {
	aliases map[string]string
	// keys sorted longest-first so "uber eats" wins over "uber"
	keys []string
}

// NewMerchantCleaner builds a cleaner from the built-in alias table plus
// optional extra aliases (keys are matched case-insensitively as
// substrings; extras override the built-ins on key collision).
func NewMerchantCleaner(extra map[string]string) *MerchantCleaner {
	aliases := make(map[string]string, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		aliases[strings.ToLower(k)] = v
	}
	for k, v := range extra {
		aliases[strings.ToLower(k)] = v
	}

	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	return &MerchantCleaner{aliases: aliases, keys: keys}
}

// Clean returns the standardised merchant name for a raw string.
func (c *MerchantCleaner) Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	for _, substr := range c.keys {
		if strings.Contains(lower, substr) {
			return c.aliases[substr]
		}
	}

	s = noiseTokens.ReplaceAllString(s, " ")
	s = longNumbers.ReplaceAllString(s, " ")
	s = punctRuns.ReplaceAllString(s, " ")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return strings.TrimSpace(raw)
	}

	if s == strings.ToUpper(s) || s == strings.ToLower(s) {
		s = titleCase(s)
	}
	return s
}

// titleCase upper-cases the first letter of each word and lower-cases the
// rest. Deliberately simple; merchant names are short.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
		}
	}
	return strings.Join(words, " ")
}
