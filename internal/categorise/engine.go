package categorise

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txengine/internal/domain"
	"github.com/dvloznov/txengine/internal/store"
)

const (
	// globalMappingDiscount scales a global mapping's stored confidence;
	// global associations are weaker evidence than the user's own history.
	globalMappingDiscount = 0.9

	ruleConfidence     = 0.9
	fallbackConfidence = 0.1
	// aiAcceptThreshold is the minimum classifier confidence the engine
	// accepts before falling through to the fallback category.
	aiAcceptThreshold = 0.5
)

// Classifier is a pluggable AI categoriser. Implementations may call out to
// a model; the engine treats any error or nil result as "no answer" and
// moves on.
type Classifier interface {
	Classify(ctx context.Context, txn *domain.UnifiedTransaction) (*domain.CategorisationResult, error)
}

// Engine resolves a category for each transaction by walking a fixed chain:
// user mapping, global mapping, rules, AI, fallback. Categorise never
// returns an error for an individual transaction; the chain is total.
type Engine struct {
	mappings   store.MappingStore
	rules      *RuleSet
	classifier Classifier
	log        zerolog.Logger
}

// NewEngine builds a categorisation engine. classifier may be nil, in which
// case the AI stage is skipped.
func NewEngine(mappings store.MappingStore, rules *RuleSet, classifier Classifier, log zerolog.Logger) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{
		mappings:   mappings,
		rules:      rules,
		classifier: classifier,
		log:        log,
	}
}

// Categorise resolves a category for one transaction. It always produces a
// result; when every stage declines, the result is the Other/Uncategorised
// fallback at low confidence.
func (e *Engine) Categorise(ctx context.Context, txn *domain.UnifiedTransaction) domain.CategorisationResult {
	merchant := txn.BestMerchant()

	// Stage 1: the user's own learned mapping.
	if m := e.lookupMapping(ctx, txn.UserID, merchant); m != nil {
		return domain.CategorisationResult{
			Category:   m.Category,
			Confidence: m.Confidence,
			Source:     domain.CategorySourceUser,
		}
	}

	// Stage 2: the global mapping table, discounted.
	if m := e.lookupMapping(ctx, "", merchant); m != nil {
		return domain.CategorisationResult{
			Category:   m.Category,
			Confidence: m.Confidence * globalMappingDiscount,
			Source:     domain.CategorySourceRule,
		}
	}

	// Stage 3: the priority-ordered rule set.
	if rule := e.rules.Evaluate(txn); rule != nil {
		return domain.CategorisationResult{
			Category:   rule.Category,
			Confidence: ruleConfidence,
			Source:     domain.CategorySourceRule,
			RuleID:     rule.ID,
		}
	}

	// Stage 4: the AI classifier, if one is wired in.
	if e.classifier != nil {
		result, err := e.classifier.Classify(ctx, txn)
		switch {
		case err != nil:
			e.log.Warn().Err(err).Str("merchant", merchant).
				Msg("ai classification failed, falling through")
		case result != nil && result.Confidence >= aiAcceptThreshold:
			result.Source = domain.CategorySourceAI
			return *result
		}
	}

	// Stage 5: the fallback. Never fails.
	return domain.CategorisationResult{
		Category:   domain.Uncategorised(),
		Confidence: fallbackConfidence,
		Source:     domain.CategorySourceFallback,
	}
}

// CategoriseBatch categorises a slice of transactions and returns results
// keyed by transaction ID. Mapping lookups happen per transaction; the
// store is expected to be cheap to query.
func (e *Engine) CategoriseBatch(ctx context.Context, txns []*domain.UnifiedTransaction) map[string]domain.CategorisationResult {
	results := make(map[string]domain.CategorisationResult, len(txns))
	for _, txn := range txns {
		results[txn.ID] = e.Categorise(ctx, txn)
	}
	return results
}

// Apply categorises a transaction and writes the outcome onto it.
func (e *Engine) Apply(ctx context.Context, txn *domain.UnifiedTransaction) {
	result := e.Categorise(ctx, txn)
	txn.Category = &result.Category
	txn.Confidence = &result.Confidence
	txn.CategorySource = result.Source
}

// RecordCorrection learns from a user override: the corrected category is
// stored as a user-scope mapping at full confidence so every future
// transaction from the merchant resolves in stage 1.
func (e *Engine) RecordCorrection(ctx context.Context, userID string, txn *domain.UnifiedTransaction, corrected domain.Category) error {
	merchant := txn.BestMerchant()
	if strings.TrimSpace(merchant) == "" {
		return fmt.Errorf("RecordCorrection: transaction %s has no merchant to learn from", txn.ID)
	}

	existing, err := e.mappings.FindByMerchant(ctx, userID, merchant)
	if err != nil {
		return fmt.Errorf("RecordCorrection: looking up mapping: %w", err)
	}

	mapping := &domain.MerchantMapping{
		UserID:               userID,
		MerchantRaw:          txn.MerchantRaw,
		MerchantStandardised: merchant,
		Category:             corrected,
		Confidence:           1.0,
		Source:               domain.CategorySourceUser,
		UsageCount:           1,
	}
	if existing != nil {
		mapping.UsageCount = existing.UsageCount + 1
	}

	if err := e.mappings.Upsert(ctx, mapping); err != nil {
		return fmt.Errorf("RecordCorrection: storing mapping: %w", err)
	}

	txn.Category = &corrected
	one := 1.0
	txn.Confidence = &one
	txn.CategorySource = domain.CategorySourceUser

	e.log.Info().Str("user_id", userID).Str("merchant", merchant).
		Str("category", corrected.String()).Msg("learned category correction")
	return nil
}

// lookupMapping swallows store errors: categorisation degrades rather than
// fails when the mapping store is unavailable.
func (e *Engine) lookupMapping(ctx context.Context, userID, merchant string) *domain.MerchantMapping {
	if e.mappings == nil || merchant == "" {
		return nil
	}
	m, err := e.mappings.FindByMerchant(ctx, userID, merchant)
	if err != nil {
		e.log.Warn().Err(err).Str("merchant", merchant).Msg("mapping lookup failed")
		return nil
	}
	return m
}
