// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/facewatch/internal/database"
)

// MockCaseStore is an in-memory implementation of database.CaseWriter
type MockCaseStore struct {
	mu     sync.RWMutex
	cases  map[int64]*database.Case
	nextID int64

	// UpdateCalls counts UpdateEmbedding invocations per case id
	UpdateCalls map[int64]int

	// Error injection
	CreateError          error
	GetError             error
	ListError            error
	ListWithEmbedsError  error
	UpdateEmbeddingError error
	DeleteError          error
	StatsError           error
}

// NewMockCaseStore creates a new empty mock case store
func NewMockCaseStore() *MockCaseStore {
	return &MockCaseStore{
		cases:       make(map[int64]*database.Case),
		nextID:      1,
		UpdateCalls: make(map[int64]int),
	}
}

// AddCase stores a copy of c as-is. A zero ID is assigned the next free id.
func (m *MockCaseStore) AddCase(c database.Case) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.nextID
	}
	if c.ID >= m.nextID {
		m.nextID = c.ID + 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.Embedding = slices.Clone(c.Embedding)
	m.cases[c.ID] = &c
	return c.ID
}

// CreateCase inserts a case with an absent embedding
func (m *MockCaseStore) CreateCase(ctx context.Context, c *database.Case) (int64, error) {
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	stored := *c
	stored.ID = 0
	stored.Embedding = nil
	stored.EmbeddingProfile = ""
	stored.CreatedAt = time.Now()
	id := m.AddCase(stored)
	c.ID = id
	c.CreatedAt = stored.CreatedAt
	return id, nil
}

// UpdateEmbedding overwrites a case's embedding
func (m *MockCaseStore) UpdateEmbedding(ctx context.Context, id int64, embedding []float32, profile string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls[id]++
	if m.UpdateEmbeddingError != nil {
		return 0, m.UpdateEmbeddingError
	}
	c, ok := m.cases[id]
	if !ok {
		return 0, nil
	}
	c.Embedding = slices.Clone(embedding)
	c.EmbeddingProfile = profile
	c.EmbeddedAt = time.Now()
	return 1, nil
}

// ListCasesWithEmbeddings returns copies of all cases with a present embedding, ordered by id
func (m *MockCaseStore) ListCasesWithEmbeddings(ctx context.Context) ([]database.Case, error) {
	if m.ListWithEmbedsError != nil {
		return nil, m.ListWithEmbedsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.Case
	for _, c := range m.cases {
		if c.HasEmbedding() {
			result = append(result, copyCase(c))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// GetCase returns a copy of the case, or nil if not found
func (m *MockCaseStore) GetCase(ctx context.Context, id int64) (*database.Case, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, nil
	}
	cp := copyCase(c)
	return &cp, nil
}

// ListCases returns cases, most recent first
func (m *MockCaseStore) ListCases(ctx context.Context, opts database.ListOptions) ([]database.Case, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]database.Case, 0, len(m.cases))
	for _, c := range m.cases {
		result = append(result, copyCase(c))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if opts.Limit > 0 {
		start := min(opts.Offset, len(result))
		end := min(start+opts.Limit, len(result))
		result = result[start:end]
	}
	return result, nil
}

// DeleteCase removes a case
func (m *MockCaseStore) DeleteCase(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[id]; !ok {
		return database.ErrCaseNotFound
	}
	delete(m.cases, id)
	return nil
}

// Stats returns aggregate counts
func (m *MockCaseStore) Stats(ctx context.Context) (*database.CaseStats, error) {
	if m.StatsError != nil {
		return nil, m.StatsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &database.CaseStats{Total: len(m.cases)}
	months := make(map[string]int)
	for _, c := range m.cases {
		if c.HasEmbedding() {
			stats.WithEmbedding++
		}
		if c.Status == "Pending" {
			stats.Pending++
		}
		if !c.MissingDate.IsZero() {
			months[c.MissingDate.Format("2006-01")]++
		}
	}
	for month, count := range months {
		stats.ByMonth = append(stats.ByMonth, database.MonthCount{Month: month, Count: count})
	}
	sort.Slice(stats.ByMonth, func(i, j int) bool { return stats.ByMonth[i].Month < stats.ByMonth[j].Month })
	return stats, nil
}

// UpdateCount returns how many times UpdateEmbedding was called for a case
func (m *MockCaseStore) UpdateCount(id int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.UpdateCalls[id]
}

func copyCase(c *database.Case) database.Case {
	cp := *c
	cp.Embedding = slices.Clone(c.Embedding)
	return cp
}

var _ database.CaseWriter = (*MockCaseStore)(nil)
