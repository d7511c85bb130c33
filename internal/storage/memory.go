package storage

import (
	"context"
	"sync"

	"github.com/tazhate/dombot/internal/domain"
)

// Memory is a process-local backend for tests and dry runs.
type Memory struct {
	mu    sync.Mutex
	doc   *domain.Document
	saves int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (*domain.Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, false, nil
	}
	return m.doc.Clone(), true, nil
}

func (m *Memory) Save(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc.Clone()
	m.saves++
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Saves reports how many times Save was called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
