package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/notifyhub/pusha/internal/domain"
)

// MemoryDeliveryRepository is an in-memory DeliveryRepository. It backs the
// service when no DATABASE_URL is configured and is the fake used in tests.
// Receipts beyond maxEntries are evicted oldest first.
type MemoryDeliveryRepository struct {
	mu         sync.RWMutex
	deliveries map[string]*domain.Delivery
	order      []string
	maxEntries int

	// Set in tests to simulate failure paths.
	CreateErr   error
	CompleteErr error
}

// NewMemoryDeliveryRepository keeps at most maxEntries receipts; zero means 10 000.
func NewMemoryDeliveryRepository(maxEntries int) *MemoryDeliveryRepository {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryDeliveryRepository{
		deliveries: make(map[string]*domain.Delivery),
		maxEntries: maxEntries,
	}
}

func (m *MemoryDeliveryRepository) Create(_ context.Context, d *domain.Delivery) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *d
	if _, exists := m.deliveries[d.ID]; !exists {
		m.order = append(m.order, d.ID)
	}
	m.deliveries[d.ID] = &clone

	for len(m.order) > m.maxEntries {
		delete(m.deliveries, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *MemoryDeliveryRepository) Complete(_ context.Context, id string, o domain.Outcome) error {
	if m.CompleteErr != nil {
		return m.CompleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Apply(o)
	return nil
}

func (m *MemoryDeliveryRepository) GetByID(_ context.Context, id string) (*domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (m *MemoryDeliveryRepository) List(_ context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Delivery, 0, len(m.deliveries))
	for _, d := range m.deliveries {
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		if f.Origin != "" && d.Origin != f.Origin {
			continue
		}
		clone := *d
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit := clampLimit(f.Limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryDeliveryRepository) CountByStatus(_ context.Context) (map[domain.Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.Status]int)
	for _, d := range m.deliveries {
		counts[d.Status]++
	}
	return counts, nil
}

// compile-time check that MemoryDeliveryRepository implements DeliveryRepository
var _ DeliveryRepository = (*MemoryDeliveryRepository)(nil)
