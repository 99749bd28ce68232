package categorise

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dvloznov/txengine/internal/domain"
)

// Rule is one (predicate, category) pair in the priority-ordered rule set.
// Higher priority evaluates first; the first match wins.
type Rule struct {
	ID       string `yaml:"id"`
	Priority int    `yaml:"priority"`

	// Predicate parts. All configured parts must pass for the rule to
	// match; Merchant/Description lists match if any entry is a
	// case-insensitive substring.
	MerchantContains    []string          `yaml:"merchant_contains,omitempty"`
	DescriptionContains []string          `yaml:"description_contains,omitempty"`
	Pattern             string            `yaml:"pattern,omitempty"`
	Direction           *domain.Direction `yaml:"direction,omitempty"`

	Category domain.Category `yaml:"category"`

	compiled *regexp.Regexp
}

// compile prepares the regex pattern, if any. A rule with a broken pattern
// is kept but can never match.
func (r *Rule) compile() error {
	if r.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile("(?i)" + r.Pattern)
	if err != nil {
		return fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
	}
	r.compiled = re
	return nil
}

// Matches evaluates the predicate against a transaction. A panicking
// predicate counts as no match; evaluation of other rules continues.
func (r *Rule) Matches(txn *domain.UnifiedTransaction) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()

	if r.Direction != nil && txn.Direction != *r.Direction {
		return false
	}

	merchant := strings.ToLower(txn.BestMerchant())
	description := strings.ToLower(txn.Description)

	if len(r.MerchantContains) > 0 && !containsAny(merchant, r.MerchantContains) {
		return false
	}
	if len(r.DescriptionContains) > 0 && !containsAny(description, r.DescriptionContains) {
		return false
	}
	if r.Pattern != "" {
		if r.compiled == nil {
			return false
		}
		if !r.compiled.MatchString(merchant) && !r.compiled.MatchString(description) {
			return false
		}
	}

	// A rule with no predicate parts matches nothing rather than everything.
	return len(r.MerchantContains) > 0 || len(r.DescriptionContains) > 0 || r.Pattern != ""
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// RuleSet is a priority-ordered collection of rules.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet compiles and sorts rules by priority, highest first. Rules
// with invalid patterns are kept inert so one bad rule cannot take down
// the set.
func NewRuleSet(rules []Rule) *RuleSet {
	compiled := make([]Rule, len(rules))
	copy(compiled, rules)
	for i := range compiled {
		// compile errors leave the rule unmatchable, which is the
		// documented throw-means-no-match behaviour
		_ = compiled[i].compile()
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})
	return &RuleSet{rules: compiled}
}

// Evaluate returns the first matching rule, or nil.
func (rs *RuleSet) Evaluate(txn *domain.UnifiedTransaction) *Rule {
	for i := range rs.rules {
		if rs.rules[i].Matches(txn) {
			return &rs.rules[i]
		}
	}
	return nil
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// rulesFile is the YAML shape for rule overrides.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRulesYAML reads a rule set from a YAML file.
func LoadRulesYAML(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRulesYAML: reading %s: %w", path, err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("LoadRulesYAML: parsing %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("LoadRulesYAML: %s contains no rules", path)
	}
	return NewRuleSet(f.Rules), nil
}

func dirPtr(d domain.Direction) *domain.Direction { return &d }

// DefaultRules returns the built-in rule set.
func DefaultRules() *RuleSet {
	return NewRuleSet([]Rule{
		{
			ID: "salary", Priority: 100,
			DescriptionContains: []string{"salary", "payroll", "wages", "pay run"},
			Direction:           dirPtr(domain.DirectionIn),
			Category:            domain.Category{Level1: "Income", Level2: "Salary"},
		},
		{
			ID: "interest-income", Priority: 95,
			DescriptionContains: []string{"interest"},
			Direction:           dirPtr(domain.DirectionIn),
			Category:            domain.Category{Level1: "Income", Level2: "Interest"},
		},
		{
			ID: "rent", Priority: 90,
			DescriptionContains: []string{"rent"},
			Direction:           dirPtr(domain.DirectionOut),
			Category:            domain.Category{Level1: "Housing", Level2: "Rent"},
		},
		{
			ID: "mortgage", Priority: 90,
			DescriptionContains: []string{"mortgage", "home loan"},
			Direction:           dirPtr(domain.DirectionOut),
			Category:            domain.Category{Level1: "Housing", Level2: "Mortgage"},
		},
		{
			ID: "groceries", Priority: 80,
			MerchantContains: []string{"woolworths", "coles", "aldi", "tesco", "sainsbury", "lidl", "iga", "supermarket", "grocery"},
			Category:         domain.Category{Level1: "Food", Level2: "Groceries"},
		},
		{
			ID: "streaming", Priority: 80,
			MerchantContains: []string{"netflix", "spotify", "disney", "youtube premium", "prime video", "hbo"},
			Category:         domain.Category{Level1: "Entertainment", Level2: "Streaming"},
		},
		{
			ID: "ride-share", Priority: 75,
			MerchantContains: []string{"uber", "lyft", "ola", "didi"},
			Category:         domain.Category{Level1: "Transport", Level2: "Ride Share"},
		},
		{
			ID: "fuel", Priority: 75,
			MerchantContains: []string{"shell", "bp", "caltex", "ampol", "7-eleven fuel", "petrol"},
			Category:         domain.Category{Level1: "Transport", Level2: "Fuel"},
		},
		{
			ID: "public-transport", Priority: 75,
			MerchantContains: []string{"transport for london", "opal", "myki", "metro", "translink"},
			Category:         domain.Category{Level1: "Transport", Level2: "Public Transport"},
		},
		{
			ID: "utilities", Priority: 70,
			DescriptionContains: []string{"electricity", "energy", "gas bill", "water", "council rates"},
			Category:            domain.Category{Level1: "Housing", Level2: "Utilities"},
		},
		{
			ID: "telecom", Priority: 70,
			MerchantContains: []string{"vodafone", "telstra", "optus", "o2", "ee ", "three", "t-mobile"},
			Category:         domain.Category{Level1: "Housing", Level2: "Utilities", Level3: "Telecom"},
		},
		{
			ID: "insurance", Priority: 70,
			DescriptionContains: []string{"insurance", "insur"},
			Category:            domain.Category{Level1: "Insurance"},
		},
		{
			ID: "dining", Priority: 60,
			MerchantContains: []string{"mcdonald", "kfc", "subway", "starbucks", "cafe", "restaurant", "pizza", "sushi"},
			Category:         domain.Category{Level1: "Food", Level2: "Dining Out"},
		},
		{
			ID: "online-shopping", Priority: 50,
			MerchantContains: []string{"amazon", "ebay", "etsy", "asos"},
			Category:         domain.Category{Level1: "Shopping", Level2: "Online"},
		},
		{
			ID: "pharmacy", Priority: 50,
			MerchantContains: []string{"chemist", "pharmacy", "boots", "priceline"},
			Category:         domain.Category{Level1: "Health", Level2: "Pharmacy"},
		},
		{
			ID: "gym", Priority: 50,
			DescriptionContains: []string{"gym", "fitness"},
			Category:            domain.Category{Level1: "Health", Level2: "Fitness"},
		},
		{
			ID: "atm-cash", Priority: 40,
			DescriptionContains: []string{"atm", "cash withdrawal", "cash out"},
			Category:            domain.Category{Level1: "Cash"},
		},
		{
			ID: "bank-fees", Priority: 40,
			DescriptionContains: []string{"account fee", "bank fee", "overdraft", "monthly fee"},
			Category:            domain.Category{Level1: "Fees", Level2: "Bank Fees"},
		},
		{
			ID: "transfer", Priority: 30,
			DescriptionContains: []string{"transfer", "tfr"},
			Category:            domain.Category{Level1: "Transfers"},
		},
	})
}
