package categorise

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/txengine/internal/domain"
	"github.com/dvloznov/txengine/internal/store/inmemory"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func outTxn(merchant, description string) *domain.UnifiedTransaction {
	return &domain.UnifiedTransaction{
		ID:          "txn-1",
		UserID:      "user-1",
		Merchant:    merchant,
		Description: description,
		Amount:      25.00,
		Direction:   domain.DirectionOut,
	}
}

type stubClassifier struct {
	result *domain.CategorisationResult
	err    error
	calls  int
}

func (s *stubClassifier) Classify(_ context.Context, _ *domain.UnifiedTransaction) (*domain.CategorisationResult, error) {
	s.calls++
	return s.result, s.err
}

func TestEngine_UserMappingWins(t *testing.T) {
	ctx := context.Background()
	mappings := inmemory.NewMappingStore()

	require.NoError(t, mappings.Upsert(ctx, &domain.MerchantMapping{
		UserID:               "user-1",
		MerchantStandardised: "Netflix",
		Category:             domain.Category{Level1: "Business", Level2: "Research"},
		Confidence:           0.95,
		Source:               domain.CategorySourceUser,
	}))
	// A conflicting global mapping must not shadow the user's own.
	require.NoError(t, mappings.Upsert(ctx, &domain.MerchantMapping{
		MerchantStandardised: "Netflix",
		Category:             domain.Category{Level1: "Entertainment", Level2: "Streaming"},
		Confidence:           0.9,
		Source:               domain.CategorySourceRule,
	}))

	engine := NewEngine(mappings, DefaultRules(), nil, testLogger())
	result := engine.Categorise(ctx, outTxn("Netflix", "NETFLIX.COM"))

	assert.Equal(t, "Business", result.Category.Level1)
	assert.Equal(t, domain.CategorySourceUser, result.Source)
	assert.InDelta(t, 0.95, result.Confidence, 1e-9)
}

func TestEngine_GlobalMappingIsDiscounted(t *testing.T) {
	ctx := context.Background()
	mappings := inmemory.NewMappingStore()

	require.NoError(t, mappings.Upsert(ctx, &domain.MerchantMapping{
		MerchantStandardised: "Some Obscure Shop",
		Category:             domain.Category{Level1: "Shopping"},
		Confidence:           0.8,
		Source:               domain.CategorySourceRule,
	}))

	engine := NewEngine(mappings, DefaultRules(), nil, testLogger())
	result := engine.Categorise(ctx, outTxn("Some Obscure Shop", ""))

	assert.Equal(t, "Shopping", result.Category.Level1)
	assert.InDelta(t, 0.8*0.9, result.Confidence, 1e-9)
	assert.Equal(t, domain.CategorySourceRule, result.Source)
}

func TestEngine_RulesApplyWhenNoMapping(t *testing.T) {
	engine := NewEngine(inmemory.NewMappingStore(), DefaultRules(), nil, testLogger())

	tests := []struct {
		name      string
		merchant  string
		desc      string
		direction domain.Direction
		want      domain.Category
		wantRule  string
	}{
		{
			name: "groceries by merchant", merchant: "Woolworths", direction: domain.DirectionOut,
			want: domain.Category{Level1: "Food", Level2: "Groceries"}, wantRule: "groceries",
		},
		{
			name: "salary requires inbound", desc: "ACME CORP SALARY", direction: domain.DirectionIn,
			want: domain.Category{Level1: "Income", Level2: "Salary"}, wantRule: "salary",
		},
		{
			name: "streaming", merchant: "Spotify", direction: domain.DirectionOut,
			want: domain.Category{Level1: "Entertainment", Level2: "Streaming"}, wantRule: "streaming",
		},
		{
			name: "rent outbound only", desc: "RENT PAYMENT FLAT 4", direction: domain.DirectionOut,
			want: domain.Category{Level1: "Housing", Level2: "Rent"}, wantRule: "rent",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			txn := outTxn(tc.merchant, tc.desc)
			txn.Direction = tc.direction
			result := engine.Categorise(context.Background(), txn)
			assert.Equal(t, tc.want, result.Category)
			assert.Equal(t, tc.wantRule, result.RuleID)
			assert.Equal(t, domain.CategorySourceRule, result.Source)
			assert.InDelta(t, 0.9, result.Confidence, 1e-9)
		})
	}
}

func TestEngine_SalaryRuleIgnoresOutbound(t *testing.T) {
	engine := NewEngine(inmemory.NewMappingStore(), DefaultRules(), nil, testLogger())

	// An outbound transaction mentioning "salary" must not be income.
	txn := outTxn("", "SALARY SACRIFICE ADJUSTMENT")
	result := engine.Categorise(context.Background(), txn)
	assert.NotEqual(t, "Income", result.Category.Level1)
}

func TestEngine_FallbackIsTotal(t *testing.T) {
	engine := NewEngine(inmemory.NewMappingStore(), DefaultRules(), nil, testLogger())

	result := engine.Categorise(context.Background(), outTxn("Zzyzx Holdings", "REF 9912"))

	assert.Equal(t, domain.Uncategorised(), result.Category)
	assert.Equal(t, domain.CategorySourceFallback, result.Source)
	assert.InDelta(t, 0.1, result.Confidence, 1e-9)
}

func TestEngine_AIStageUsedAndAccepted(t *testing.T) {
	classifier := &stubClassifier{result: &domain.CategorisationResult{
		Category:   domain.Category{Level1: "Travel", Level2: "Flights"},
		Confidence: 0.85,
	}}
	engine := NewEngine(inmemory.NewMappingStore(), DefaultRules(), classifier, testLogger())

	result := engine.Categorise(context.Background(), outTxn("Qantas Airways Ltd", ""))

	assert.Equal(t, 1, classifier.calls)
	assert.Equal(t, "Travel", result.Category.Level1)
	assert.Equal(t, domain.CategorySourceAI, result.Source)
}

func TestEngine_AIFailureFallsThrough(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("model unavailable")}
	engine := NewEngine(inmemory.NewMappingStore(), DefaultRules(), classifier, testLogger())

	result := engine.Categorise(context.Background(), outTxn("Zzyzx Holdings", ""))

	assert.Equal(t, 1, classifier.calls)
	assert.Equal(t, domain.CategorySourceFallback, result.Source)
}

func TestEngine_LowConfidenceAIRejected(t *testing.T) {
	classifier := &stubClassifier{result: &domain.CategorisationResult{
		Category:   domain.Category{Level1: "Guesswork"},
		Confidence: 0.2,
	}}
	engine := NewEngine(inmemory.NewMappingStore(), DefaultRules(), classifier, testLogger())

	result := engine.Categorise(context.Background(), outTxn("Zzyzx Holdings", ""))

	assert.Equal(t, domain.CategorySourceFallback, result.Source)
}

func TestEngine_RuleStageSkipsAI(t *testing.T) {
	classifier := &stubClassifier{result: &domain.CategorisationResult{
		Category: domain.Category{Level1: "Wrong"}, Confidence: 0.99,
	}}
	engine := NewEngine(inmemory.NewMappingStore(), DefaultRules(), classifier, testLogger())

	result := engine.Categorise(context.Background(), outTxn("Woolworths", ""))

	assert.Equal(t, 0, classifier.calls)
	assert.Equal(t, "Food", result.Category.Level1)
}

func TestEngine_RecordCorrectionLearns(t *testing.T) {
	ctx := context.Background()
	mappings := inmemory.NewMappingStore()
	engine := NewEngine(mappings, DefaultRules(), nil, testLogger())

	txn := outTxn("Netflix", "NETFLIX.COM")
	corrected := domain.Category{Level1: "Business", Level2: "Research"}
	require.NoError(t, engine.RecordCorrection(ctx, "user-1", txn, corrected))

	assert.Equal(t, &corrected, txn.Category)
	assert.Equal(t, domain.CategorySourceUser, txn.CategorySource)

	// Future transactions from the same merchant resolve in stage 1.
	next := outTxn("Netflix", "NETFLIX.COM")
	result := engine.Categorise(ctx, next)
	assert.Equal(t, corrected, result.Category)
	assert.Equal(t, domain.CategorySourceUser, result.Source)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestEngine_CorrectionMatchesCleanedMerchant(t *testing.T) {
	ctx := context.Background()
	mappings := inmemory.NewMappingStore()
	engine := NewEngine(mappings, DefaultRules(), nil, testLogger())

	// Imported transactions carry the messy statement text in MerchantRaw
	// and the cleaned name in Merchant. The learned mapping must match on
	// the cleaned name even when the raw text differs every time.
	first := outTxn("Acme Coffee", "")
	first.MerchantRaw = "ACME COFFEE 1234567 CARD PURCHASE"
	corrected := domain.Category{Level1: "Food", Level2: "Coffee"}
	require.NoError(t, engine.RecordCorrection(ctx, "user-1", first, corrected))

	next := outTxn("Acme Coffee", "")
	next.MerchantRaw = "ACME COFFEE 7654321 CARD PURCHASE"
	result := engine.Categorise(ctx, next)
	assert.Equal(t, domain.CategorySourceUser, result.Source)
	assert.Equal(t, corrected, result.Category)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestEngine_RecordCorrectionIncrementsUsage(t *testing.T) {
	ctx := context.Background()
	mappings := inmemory.NewMappingStore()
	engine := NewEngine(mappings, DefaultRules(), nil, testLogger())

	cat := domain.Category{Level1: "Food", Level2: "Groceries"}
	require.NoError(t, engine.RecordCorrection(ctx, "user-1", outTxn("Corner Shop", ""), cat))
	require.NoError(t, engine.RecordCorrection(ctx, "user-1", outTxn("Corner Shop", ""), cat))

	m, err := mappings.FindByMerchant(ctx, "user-1", "Corner Shop")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.UsageCount)
}

func TestEngine_CategoriseBatch(t *testing.T) {
	engine := NewEngine(inmemory.NewMappingStore(), DefaultRules(), nil, testLogger())

	a := outTxn("Woolworths", "")
	a.ID = "a"
	b := outTxn("Zzyzx Holdings", "")
	b.ID = "b"

	results := engine.CategoriseBatch(context.Background(), []*domain.UnifiedTransaction{a, b})
	require.Len(t, results, 2)
	assert.Equal(t, domain.CategorySourceRule, results["a"].Source)
	assert.Equal(t, domain.CategorySourceFallback, results["b"].Source)
}

func TestRuleSet_PriorityOrdering(t *testing.T) {
	rules := NewRuleSet([]Rule{
		{ID: "low", Priority: 10, MerchantContains: []string{"acme"}, Category: domain.Category{Level1: "Low"}},
		{ID: "high", Priority: 90, MerchantContains: []string{"acme"}, Category: domain.Category{Level1: "High"}},
	})

	match := rules.Evaluate(outTxn("Acme Pty Ltd", ""))
	require.NotNil(t, match)
	assert.Equal(t, "high", match.ID)
}

func TestRuleSet_EmptyPredicateNeverMatches(t *testing.T) {
	rules := NewRuleSet([]Rule{
		{ID: "vacuous", Priority: 100, Category: domain.Category{Level1: "Everything"}},
	})
	assert.Nil(t, rules.Evaluate(outTxn("Anything", "anything")))
}

func TestRuleSet_BrokenPatternIsInert(t *testing.T) {
	rules := NewRuleSet([]Rule{
		{ID: "broken", Priority: 100, Pattern: "([unclosed", Category: domain.Category{Level1: "Broken"}},
		{ID: "ok", Priority: 50, MerchantContains: []string{"shop"}, Category: domain.Category{Level1: "OK"}},
	})

	match := rules.Evaluate(outTxn("The Shop", ""))
	require.NotNil(t, match)
	assert.Equal(t, "ok", match.ID)
}

func TestRuleSet_PatternMatchesDescription(t *testing.T) {
	rules := NewRuleSet([]Rule{
		{ID: "dd", Priority: 10, Pattern: `direct\s+debit`, Category: domain.Category{Level1: "Bills"}},
	})
	match := rules.Evaluate(outTxn("", "DIRECT  DEBIT ENERGYCO"))
	require.NotNil(t, match)
	assert.Equal(t, "dd", match.ID)
}

func TestCleanModelJSON(t *testing.T) {
	raw := "```json\n{\"level1\":\"Food\"}\n```"
	assert.Equal(t, `{"level1":"Food"}`, cleanModelJSON(raw))
	assert.Equal(t, `{"a":1}`, cleanModelJSON(`{"a":1}`))
}
