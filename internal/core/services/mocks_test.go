package services_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

// fakeAuth is a controllable auth boundary: tests flip the signed-in user
// and listeners fire like they would on a real session change.
type fakeAuth struct {
	mu        sync.Mutex
	user      *domain.SyncUser
	err       error
	listeners map[int]func(*domain.SyncUser)
	nextID    int
}

func newFakeAuth(user *domain.SyncUser) *fakeAuth {
	return &fakeAuth{user: user, listeners: make(map[int]func(*domain.SyncUser))}
}

func (a *fakeAuth) GetUser(ctx context.Context) (*domain.SyncUser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user, a.err
}

func (a *fakeAuth) OnAuthChange(fn func(user *domain.SyncUser)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	a.listeners[id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *fakeAuth) SetUser(user *domain.SyncUser) {
	a.mu.Lock()
	a.user = user
	fns := make([]func(*domain.SyncUser), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

// MockSnapshotStore asserts on remote snapshot traffic.
type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) Fetch(ctx context.Context, ownerID string) (*domain.SnapshotRecord, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SnapshotRecord), args.Error(1)
}

func (m *MockSnapshotStore) Upsert(ctx context.Context, record *domain.SnapshotRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockCompletionStore asserts on remote completion traffic.
type MockCompletionStore struct {
	mock.Mock
}

func (m *MockCompletionStore) Find(ctx context.Context, ownerID, habitID, date string) (*domain.RemoteCompletion, error) {
	args := m.Called(ctx, ownerID, habitID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RemoteCompletion), args.Error(1)
}

func (m *MockCompletionStore) Create(ctx context.Context, rec *domain.RemoteCompletion) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockCompletionStore) Update(ctx context.Context, rec *domain.RemoteCompletion) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockCompletionStore) Delete(ctx context.Context, ownerID, habitID, date string) error {
	args := m.Called(ctx, ownerID, habitID, date)
	return args.Error(0)
}

func (m *MockCompletionStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.RemoteCompletion, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RemoteCompletion), args.Error(1)
}

func (m *MockCompletionStore) Subscribe(ctx context.Context, ownerID string, fn func(ev domain.CompletionEvent)) (func(), error) {
	args := m.Called(ctx, ownerID, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}
