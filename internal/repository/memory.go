package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// MemoryRepository implements domain.Repository in process memory.
// Used by tests and by the "memory" driver.
type MemoryRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	order        []string
	rules        map[string]*domain.Rule
	chargebacks  map[string]*domain.ChargebackRecord
	closed       bool
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		transactions: make(map[string]*domain.Transaction),
		rules:        make(map[string]*domain.Rule),
		chargebacks:  make(map[string]*domain.ChargebackRecord),
	}
}

func (m *MemoryRepository) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[tx.ID]; ok {
		return nil
	}
	stored := *tx
	m.transactions[tx.ID] = &stored
	m.order = append(m.order, tx.ID)
	return nil
}

func (m *MemoryRepository) CountMatching(ctx context.Context, field domain.HistoryField, value string, since, until time.Time) (int, error) {
	if _, err := historyColumn(field); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, id := range m.order {
		tx := m.transactions[id]
		if !tx.Timestamp.After(since) || tx.Timestamp.After(until) {
			continue
		}
		var v string
		switch field {
		case domain.HistoryEmail:
			v = tx.Email
		case domain.HistoryCardBIN:
			v = tx.CardBIN
		case domain.HistoryIPCountry:
			v = tx.IPCountry
		}
		if v == value {
			count++
		}
	}
	return count, nil
}

func (m *MemoryRepository) AverageAmount(ctx context.Context) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.order) == 0 {
		return 0, false, nil
	}
	var sum float64
	for _, id := range m.order {
		sum += m.transactions[id].Amount
	}
	return sum / float64(len(m.order)), true, nil
}

func (m *MemoryRepository) ListActiveRules(ctx context.Context) ([]*domain.Rule, error) {
	return m.sortedRules(true), nil
}

func (m *MemoryRepository) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	return m.sortedRules(false), nil
}

func (m *MemoryRepository) sortedRules(activeOnly bool) []*domain.Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rules := make([]*domain.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		if activeOnly && !r.IsActive {
			continue
		}
		copied := *r
		rules = append(rules, &copied)
	}

	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return rules
}

func (m *MemoryRepository) CreateRule(ctx context.Context, rule *domain.Rule) (*domain.Rule, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: rule is required", domain.ErrInvalidInput)
	}

	stored := *rule
	if stored.ID == "" {
		stored.ID = NewRuleID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[stored.ID]; ok {
		return nil, fmt.Errorf("%w: rule %s already exists", domain.ErrInvalidInput, stored.ID)
	}
	m.rules[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (m *MemoryRepository) SeedRules(ctx context.Context, rules []*domain.Rule) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, r := range rules {
		if _, ok := m.rules[r.ID]; ok {
			continue
		}
		stored := *r
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}
		m.rules[r.ID] = &stored
		inserted++
	}
	return inserted, nil
}

func (m *MemoryRepository) SetRuleActive(ctx context.Context, id string, active bool) (*domain.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: rule %s", domain.ErrNotFound, id)
	}
	r.IsActive = active

	out := *r
	return &out, nil
}

func (m *MemoryRepository) AllChargebacks(ctx context.Context) ([]*domain.ChargebackRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*domain.ChargebackRecord, 0, len(m.chargebacks))
	for _, rec := range m.chargebacks {
		copied := *rec
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].ChargebackDate.Equal(records[j].ChargebackDate) {
			return records[i].ChargebackDate.Before(records[j].ChargebackDate)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (m *MemoryRepository) SaveChargebacks(ctx context.Context, records []*domain.ChargebackRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, rec := range records {
		if _, ok := m.chargebacks[rec.ID]; ok {
			continue
		}
		copied := *rec
		m.chargebacks[rec.ID] = &copied
		inserted++
	}
	return inserted, nil
}

func (m *MemoryRepository) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("repository closed")
	}
	return nil
}

func (m *MemoryRepository) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

var _ domain.Repository = (*MemoryRepository)(nil)
