package store

import (
	"context"
	"sync"

	"recordbook/pkg/domain"
)

// MemoryStore keeps records in-process with the same counting semantics as MongoDB.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.Fields
	orders  []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.Fields)}
}

func (m *MemoryStore) Ping(context.Context) error  { return nil }
func (m *MemoryStore) Close(context.Context) error { return nil }

// Insert stores a record under a freshly minted id and tracks insertion order.
func (m *MemoryStore) Insert(_ context.Context, fields domain.Fields) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := domain.NewRecordID()
	m.records[id] = cloneFields(fields)
	m.orders = append(m.orders, id)
	return id, nil
}

// FindOne returns the oldest record.
func (m *MemoryStore) FindOne(context.Context) (domain.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.orders {
		if f, ok := m.records[id]; ok {
			return domain.Record{ID: id, Fields: cloneFields(f)}, true, nil
		}
	}
	return domain.Record{}, false, nil
}

// FindAll returns records in insertion order.
func (m *MemoryStore) FindAll(context.Context) ([]domain.Record, error) {
	return m.filter(func(domain.Fields) bool { return true }), nil
}

// FindByCity returns records whose city equals city.
func (m *MemoryStore) FindByCity(_ context.Context, city string) ([]domain.Record, error) {
	return m.filter(func(f domain.Fields) bool {
		return f.City != nil && *f.City == city
	}), nil
}

func (m *MemoryStore) filter(keep func(domain.Fields) bool) []domain.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Record, 0, len(m.orders))
	for _, id := range m.orders {
		if f, ok := m.records[id]; ok && keep(f) {
			res = append(res, domain.Record{ID: id, Fields: cloneFields(f)})
		}
	}
	return res
}

// DeleteByID removes a record and reports how many were deleted.
func (m *MemoryStore) DeleteByID(_ context.Context, id string) (int64, error) {
	id, ok := domain.CanonicalRecordID(id)
	if !ok {
		return 0, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return 0, nil
	}
	delete(m.records, id)
	for i, existing := range m.orders {
		if existing == id {
			m.orders = append(m.orders[:i], m.orders[i+1:]...)
			break
		}
	}
	return 1, nil
}

// ReplaceFields overwrites all fields. Writing identical values counts as matched but not modified.
func (m *MemoryStore) ReplaceFields(_ context.Context, id string, fields domain.Fields) (UpdateResult, error) {
	id, ok := domain.CanonicalRecordID(id)
	if !ok {
		return UpdateResult{}, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[id]
	if !ok {
		return UpdateResult{}, nil
	}
	if current.Equal(fields) {
		return UpdateResult{Matched: 1}, nil
	}
	m.records[id] = cloneFields(fields)
	return UpdateResult{Matched: 1, Modified: 1}, nil
}

func cloneFields(f domain.Fields) domain.Fields {
	return domain.Fields{
		Name:  clonePtr(f.Name),
		Age:   clonePtr(f.Age),
		City:  clonePtr(f.City),
		Hobby: clonePtr(f.Hobby),
	}
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
