package store

import (
	"context"
	"sync"

	"mytutor_backend/internal/model"
	"mytutor_backend/internal/util"
)

// MemoryStore 进程内会话存储，默认实现
type MemoryStore struct {
	mu         sync.RWMutex
	processing map[string]*model.ProcessingSession
	training   map[string]*model.TrainingSession
	busy       map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		processing: make(map[string]*model.ProcessingSession),
		training:   make(map[string]*model.TrainingSession),
		busy:       make(map[string]bool),
	}
}

func (m *MemoryStore) GetProcessing(ctx context.Context, id string) (*model.ProcessingSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.processing[id]
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) PutProcessing(ctx context.Context, s *model.ProcessingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.processing[s.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteProcessing(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processing, id)
	return nil
}

func (m *MemoryStore) GetTraining(ctx context.Context, id string) (*model.TrainingSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.training[id]
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) PutTraining(ctx context.Context, s *model.TrainingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.training[s.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteTraining(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.training, id)
	return nil
}

func (m *MemoryStore) TryAcquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy[key] {
		return nil, util.ErrOperationInFlight
	}
	m.busy[key] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.busy, key)
			m.mu.Unlock()
		})
	}
	return release, nil
}
