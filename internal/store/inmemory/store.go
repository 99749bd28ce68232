// Package inmemory provides map-backed implementations of the store
// interfaces. They are safe for concurrent use and suitable for tests and
// single-instance deployments; data is lost on restart.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/txengine/internal/domain"
	"github.com/dvloznov/txengine/internal/store"
)

// MappingStore is an in-memory MappingStore.
type MappingStore struct {
	mu       sync.RWMutex
	mappings map[string]*domain.MerchantMapping
}

// NewMappingStore creates an empty in-memory mapping store.
func NewMappingStore() *MappingStore {
	return &MappingStore{mappings: make(map[string]*domain.MerchantMapping)}
}

func mappingKey(userID, merchant string) string {
	return userID + "\x00" + strings.ToLower(strings.TrimSpace(merchant))
}

// FindByMerchant implements store.MappingStore.
func (s *MappingStore) FindByMerchant(ctx context.Context, userID, merchant string) (*domain.MerchantMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mapping, exists := s.mappings[mappingKey(userID, merchant)]
	if !exists {
		return nil, nil
	}

	// Return a copy to avoid external modifications
	cp := *mapping
	return &cp, nil
}

// Upsert implements store.MappingStore. The stored key is the standardised
// merchant (falling back to the raw one) so that lookups made with the
// cleaned merchant name hit it.
func (s *MappingStore) Upsert(ctx context.Context, mapping *domain.MerchantMapping) error {
	merchant := mapping.MerchantStandardised
	if merchant == "" {
		merchant = mapping.MerchantRaw
	}
	if merchant == "" {
		return fmt.Errorf("Upsert: merchant is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *mapping
	s.mappings[mappingKey(mapping.UserID, merchant)] = &cp
	return nil
}

// ListForUser implements store.MappingStore.
func (s *MappingStore) ListForUser(ctx context.Context, userID string) ([]*domain.MerchantMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MerchantMapping
	for _, m := range s.mappings {
		if m.UserID == userID || m.IsGlobal() {
			cp := *m
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].MerchantStandardised != result[j].MerchantStandardised {
			return result[i].MerchantStandardised < result[j].MerchantStandardised
		}
		return result[i].MerchantRaw < result[j].MerchantRaw
	})
	return result, nil
}

// RecurringStore is an in-memory RecurringStore. A single mutex serialises
// all writes, which trivially satisfies the per-key ordering requirement.
type RecurringStore struct {
	mu       sync.RWMutex
	payments map[string]*domain.RecurringPayment
}

// NewRecurringStore creates an empty in-memory recurring-payment store.
func NewRecurringStore() *RecurringStore {
	return &RecurringStore{payments: make(map[string]*domain.RecurringPayment)}
}

func recurringKey(userID, merchant, accountID string) string {
	return userID + "\x00" + strings.ToLower(strings.TrimSpace(merchant)) + "\x00" + accountID
}

// FindByKey implements store.RecurringStore.
func (s *RecurringStore) FindByKey(ctx context.Context, userID, merchant, accountID string) (*domain.RecurringPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, exists := s.payments[recurringKey(userID, merchant, accountID)]
	if !exists {
		return nil, nil
	}
	cp := *payment
	return &cp, nil
}

// Create implements store.RecurringStore.
func (s *RecurringStore) Create(ctx context.Context, payment *domain.RecurringPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recurringKey(payment.UserID, payment.Merchant, payment.AccountID)
	if _, exists := s.payments[key]; exists {
		return fmt.Errorf("Create: recurring payment already exists for %s/%s/%s",
			payment.UserID, payment.Merchant, payment.AccountID)
	}

	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	payment.UpdatedAt = payment.CreatedAt

	cp := *payment
	s.payments[key] = &cp
	return nil
}

// Update implements store.RecurringStore.
func (s *RecurringStore) Update(ctx context.Context, payment *domain.RecurringPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recurringKey(payment.UserID, payment.Merchant, payment.AccountID)
	if _, exists := s.payments[key]; !exists {
		return fmt.Errorf("Update: recurring payment not found for %s/%s/%s",
			payment.UserID, payment.Merchant, payment.AccountID)
	}

	payment.UpdatedAt = time.Now()
	cp := *payment
	s.payments[key] = &cp
	return nil
}

// ListForUser implements store.RecurringStore.
func (s *RecurringStore) ListForUser(ctx context.Context, userID string) ([]*domain.RecurringPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RecurringPayment
	for _, p := range s.payments {
		if p.UserID == userID {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Merchant < result[j].Merchant
	})
	return result, nil
}

// TransactionStore is an in-memory TransactionStore.
type TransactionStore struct {
	mu     sync.RWMutex
	byUser map[string][]*domain.UnifiedTransaction
	hashes map[string]bool
}

// NewTransactionStore creates an empty in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		byUser: make(map[string][]*domain.UnifiedTransaction),
		hashes: make(map[string]bool),
	}
}

// Append implements store.TransactionStore.
func (s *TransactionStore) Append(ctx context.Context, txns []*domain.UnifiedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range txns {
		if t.ID == "" {
			return fmt.Errorf("Append: transaction ID is required")
		}
		cp := *t
		s.byUser[t.UserID] = append(s.byUser[t.UserID], &cp)
		if t.DedupHash != "" {
			s.hashes[t.UserID+"\x00"+t.DedupHash] = true
		}
	}
	return nil
}

// GetByID implements store.TransactionStore.
func (s *TransactionStore) GetByID(ctx context.Context, userID, txnID string) (*domain.UnifiedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.byUser[userID] {
		if t.ID == txnID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

// Update implements store.TransactionStore.
func (s *TransactionStore) Update(ctx context.Context, txn *domain.UnifiedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.byUser[txn.UserID] {
		if t.ID == txn.ID {
			cp := *txn
			s.byUser[txn.UserID][i] = &cp
			return nil
		}
	}
	return fmt.Errorf("Update: transaction %s not found", txn.ID)
}

// ListForUser implements store.TransactionStore.
func (s *TransactionStore) ListForUser(ctx context.Context, userID string) ([]*domain.UnifiedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns := s.byUser[userID]
	result := make([]*domain.UnifiedTransaction, len(txns))
	for i, t := range txns {
		cp := *t
		result[i] = &cp
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// ListForUserWindow implements store.TransactionStore.
func (s *TransactionStore) ListForUserWindow(ctx context.Context, userID string, from, to time.Time) ([]*domain.UnifiedTransaction, error) {
	all, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var result []*domain.UnifiedTransaction
	for _, t := range all {
		if t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// ExistsByHash implements store.TransactionStore.
func (s *TransactionStore) ExistsByHash(ctx context.Context, userID, dedupHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hashes[userID+"\x00"+dedupHash], nil
}

// Interface guards.
var (
	_ store.MappingStore     = (*MappingStore)(nil)
	_ store.RecurringStore   = (*RecurringStore)(nil)
	_ store.TransactionStore = (*TransactionStore)(nil)
)
