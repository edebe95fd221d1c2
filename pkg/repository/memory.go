package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/ditto/pkg/model"
)

// Memory is a process-local HistoryStore
type Memory struct {
	mu      sync.RWMutex
	history map[model.UserID][]*model.QuestionRecord
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		history: make(map[model.UserID][]*model.QuestionRecord),
	}
}

func cloneRecord(r *model.QuestionRecord) *model.QuestionRecord {
	c := *r
	c.Embedding = slices.Clone(r.Embedding)
	return &c
}

func (m *Memory) Get(ctx context.Context, userID model.UserID) ([]*model.QuestionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.history[userID]
	out := make([]*model.QuestionRecord, len(records))
	for i, r := range records {
		out[i] = cloneRecord(r)
	}
	return out, nil
}

func (m *Memory) Append(ctx context.Context, userID model.UserID, record *model.QuestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if model.FindByKey(m.history[userID], record.Question) != nil {
		return errDuplicate(userID, record)
	}
	m.history[userID] = append(m.history[userID], cloneRecord(record))
	return nil
}

func (m *Memory) Delete(ctx context.Context, userID model.UserID, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.history[userID]
	if index < 0 || index >= len(records) {
		return errNotFound(userID, index)
	}
	m.history[userID] = slices.Delete(records, index, index+1)
	return nil
}

func (m *Memory) Clear(ctx context.Context, userID model.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.history, userID)
	return nil
}
