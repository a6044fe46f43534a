package localstore

import (
	"context"
	"sort"
	"sync"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

type MemoryStore struct {
	mu          sync.RWMutex
	habits      map[string]*domain.Habit
	completions map[string]*domain.HabitCompletion
	settings    *domain.UserSettings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		habits:      make(map[string]*domain.Habit),
		completions: make(map[string]*domain.HabitCompletion),
	}
}

func (s *MemoryStore) ListHabits(ctx context.Context) ([]*domain.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	habits := make([]*domain.Habit, 0, len(s.habits))
	for _, h := range s.habits {
		copied := *h
		habits = append(habits, &copied)
	}

	sort.Slice(habits, func(i, j int) bool {
		return habits[i].SortOrder < habits[j].SortOrder
	})
	return habits, nil
}

func (s *MemoryStore) GetHabit(ctx context.Context, id string) (*domain.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.habits[id]
	if !ok {
		return nil, domain.ErrHabitNotFound
	}
	copied := *h
	return &copied, nil
}

func (s *MemoryStore) PutHabit(ctx context.Context, habit *domain.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *habit
	s.habits[habit.ID] = &copied
	return nil
}

func (s *MemoryStore) DeleteHabit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.habits[id]; !ok {
		return domain.ErrHabitNotFound
	}
	delete(s.habits, id)

	for cid, c := range s.completions {
		if c.HabitID == id {
			delete(s.completions, cid)
		}
	}
	return nil
}

func (s *MemoryStore) ListCompletions(ctx context.Context) ([]*domain.HabitCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completions := make([]*domain.HabitCompletion, 0, len(s.completions))
	for _, c := range s.completions {
		copied := *c
		completions = append(completions, &copied)
	}

	sort.Slice(completions, func(i, j int) bool {
		if completions[i].Date != completions[j].Date {
			return completions[i].Date < completions[j].Date
		}
		return completions[i].HabitID < completions[j].HabitID
	})
	return completions, nil
}

func (s *MemoryStore) ListCompletionsByHabit(ctx context.Context, habitID string) ([]*domain.HabitCompletion, error) {
	all, err := s.ListCompletions(ctx)
	if err != nil {
		return nil, err
	}

	var filtered []*domain.HabitCompletion
	for _, c := range all {
		if c.HabitID == habitID {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (s *MemoryStore) FindCompletion(ctx context.Context, habitID, date string) (*domain.HabitCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.completions {
		if c.HabitID == habitID && c.Date == date {
			copied := *c
			return &copied, nil
		}
	}
	return nil, domain.ErrCompletionNotFound
}

func (s *MemoryStore) PutCompletion(ctx context.Context, completion *domain.HabitCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *completion
	s.completions[completion.ID] = &copied
	return nil
}

func (s *MemoryStore) DeleteCompletion(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.completions[id]; !ok {
		return domain.ErrCompletionNotFound
	}
	delete(s.completions, id)
	return nil
}

func (s *MemoryStore) GetSettings(ctx context.Context) (*domain.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		s.settings = domain.DefaultSettings()
	}
	copied := *s.settings
	return &copied, nil
}

func (s *MemoryStore) PutSettings(ctx context.Context, settings *domain.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *settings
	s.settings = &copied
	return nil
}

func (s *MemoryStore) ReplaceAll(ctx context.Context, snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.habits = make(map[string]*domain.Habit, len(snap.Data.Habits))
	for _, h := range snap.Data.Habits {
		copied := *h
		s.habits[h.ID] = &copied
	}

	s.completions = make(map[string]*domain.HabitCompletion, len(snap.Data.Completions))
	for _, c := range snap.Data.Completions {
		copied := *c
		s.completions[c.ID] = &copied
	}

	if snap.Data.Settings != nil {
		copied := *snap.Data.Settings
		s.settings = &copied
	}
	return nil
}

func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.habits = make(map[string]*domain.Habit)
	s.completions = make(map[string]*domain.HabitCompletion)
	s.settings = nil
	return nil
}

var _ domain.LocalStore = (*MemoryStore)(nil)
