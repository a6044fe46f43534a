package remote

import (
	"context"
	"sync"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

type MemorySnapshotStore struct {
	mu      sync.RWMutex
	records map[string]*domain.SnapshotRecord
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{records: make(map[string]*domain.SnapshotRecord)}
}

func (s *MemorySnapshotStore) Fetch(ctx context.Context, ownerID string) (*domain.SnapshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[ownerID]
	if !ok {
		return nil, domain.ErrRemoteNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *MemorySnapshotStore) Upsert(ctx context.Context, record *domain.SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.records[record.OwnerID] = &copied
	return nil
}

type completionKey struct {
	ownerID string
	habitID string
	date    string
}

type MemoryCompletionStore struct {
	mu          sync.RWMutex
	records     map[completionKey]*domain.RemoteCompletion
	subscribers map[int]subscriber
	nextSubID   int
}

type subscriber struct {
	ownerID string
	fn      func(ev domain.CompletionEvent)
}

func NewMemoryCompletionStore() *MemoryCompletionStore {
	return &MemoryCompletionStore{
		records:     make(map[completionKey]*domain.RemoteCompletion),
		subscribers: make(map[int]subscriber),
	}
}

func (s *MemoryCompletionStore) Find(ctx context.Context, ownerID, habitID, date string) (*domain.RemoteCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[completionKey{ownerID, habitID, date}]
	if !ok {
		return nil, domain.ErrRemoteNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *MemoryCompletionStore) Create(ctx context.Context, rec *domain.RemoteCompletion) error {
	s.mu.Lock()
	key := completionKey{rec.OwnerID, rec.HabitID, rec.Date}
	if _, ok := s.records[key]; ok {
		s.mu.Unlock()
		return domain.ErrDuplicateCompletion
	}
	copied := *rec
	s.records[key] = &copied
	s.mu.Unlock()

	s.publish(domain.CompletionEvent{Action: domain.ActionCreate, Record: copied})
	return nil
}

func (s *MemoryCompletionStore) Update(ctx context.Context, rec *domain.RemoteCompletion) error {
	s.mu.Lock()
	key := completionKey{rec.OwnerID, rec.HabitID, rec.Date}
	if _, ok := s.records[key]; !ok {
		s.mu.Unlock()
		return domain.ErrRemoteNotFound
	}
	copied := *rec
	s.records[key] = &copied
	s.mu.Unlock()

	s.publish(domain.CompletionEvent{Action: domain.ActionUpdate, Record: copied})
	return nil
}

func (s *MemoryCompletionStore) Delete(ctx context.Context, ownerID, habitID, date string) error {
	s.mu.Lock()
	key := completionKey{ownerID, habitID, date}
	rec, ok := s.records[key]
	if !ok {
		s.mu.Unlock()
		return domain.ErrRemoteNotFound
	}
	copied := *rec
	delete(s.records, key)
	s.mu.Unlock()

	s.publish(domain.CompletionEvent{Action: domain.ActionDelete, Record: copied})
	return nil
}

func (s *MemoryCompletionStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.RemoteCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*domain.RemoteCompletion
	for key, rec := range s.records {
		if key.ownerID == ownerID {
			copied := *rec
			records = append(records, &copied)
		}
	}
	return records, nil
}

func (s *MemoryCompletionStore) Subscribe(ctx context.Context, ownerID string, fn func(ev domain.CompletionEvent)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = subscriber{ownerID: ownerID, fn: fn}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}, nil
}

// publish delivers synchronously so tests observe effects without sleeping.
func (s *MemoryCompletionStore) publish(ev domain.CompletionEvent) {
	s.mu.RLock()
	subs := make([]subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		if sub.ownerID == ev.Record.OwnerID {
			subs = append(subs, sub)
		}
	}
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}

var (
	_ domain.RemoteSnapshotStore   = (*MemorySnapshotStore)(nil)
	_ domain.RemoteCompletionStore = (*MemoryCompletionStore)(nil)
)
