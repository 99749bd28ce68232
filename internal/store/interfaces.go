// Package store defines the persistence abstractions the engine consumes.
// The core never talks to a concrete database; callers supply
// implementations of these interfaces.
package store

import (
	"context"
	"time"

	"github.com/dvloznov/txengine/internal/domain"
)

// MappingStore persists learned merchant-to-category mappings.
type MappingStore interface {
	// FindByMerchant returns the mapping for (userID, merchant), or nil if
	// none exists. Merchant matching is exact and case-insensitive. An empty
	// userID looks up the global scope.
	FindByMerchant(ctx context.Context, userID, merchant string) (*domain.MerchantMapping, error)

	// Upsert creates or replaces the mapping keyed by (userID, standardised
	// merchant), falling back to the raw merchant when no standardised form
	// is set. Lookups pass the same cleaned merchant name.
	Upsert(ctx context.Context, mapping *domain.MerchantMapping) error

	// ListForUser returns the user's own mappings plus the global set.
	ListForUser(ctx context.Context, userID string) ([]*domain.MerchantMapping, error)
}

// RecurringStore persists detected recurring payments.
//
// Implementations must serialise writes per (user, merchant, account) key;
// the behavioural engine expresses reconciliation as read-modify-write and
// relies on the store for per-key ordering.
type RecurringStore interface {
	FindByKey(ctx context.Context, userID, merchant, accountID string) (*domain.RecurringPayment, error)
	Create(ctx context.Context, payment *domain.RecurringPayment) error
	Update(ctx context.Context, payment *domain.RecurringPayment) error
	ListForUser(ctx context.Context, userID string) ([]*domain.RecurringPayment, error)
}

// TransactionStore persists enriched transactions.
type TransactionStore interface {
	Append(ctx context.Context, txns []*domain.UnifiedTransaction) error
	// GetByID returns the user's transaction with the given ID, or nil.
	GetByID(ctx context.Context, userID, txnID string) (*domain.UnifiedTransaction, error)
	// Update replaces the stored transaction matched by (UserID, ID).
	Update(ctx context.Context, txn *domain.UnifiedTransaction) error
	ListForUser(ctx context.Context, userID string) ([]*domain.UnifiedTransaction, error)
	ListForUserWindow(ctx context.Context, userID string, from, to time.Time) ([]*domain.UnifiedTransaction, error)
	// ExistsByHash reports whether a transaction with the dedup hash is
	// already persisted.
	ExistsByHash(ctx context.Context, userID, dedupHash string) (bool, error)
}
