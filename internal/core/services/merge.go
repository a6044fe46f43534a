package services

import (
	"time"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

// MergeSnapshots reconciles a local and a remote snapshot into one. Habits
// win by later UpdatedAt (ties keep local), completions union by
// (habitID, date) keeping the later CompletedAt, settings win by later
// UpdatedAt. Hard deletes are never propagated here: removal that must
// survive sync goes through Archive or the incremental channel.
func MergeSnapshots(local, remote *domain.Snapshot) (*domain.Snapshot, domain.MergeResult) {
	var result domain.MergeResult

	habits := mergeHabits(local.Data.Habits, remote.Data.Habits, &result)
	completions := mergeCompletions(local.Data.Completions, remote.Data.Completions, &result)
	settings := mergeSettings(local.Data.Settings, remote.Data.Settings, &result)

	merged := &domain.Snapshot{
		Version:    local.Version,
		ExportedAt: time.Now().UTC(),
		App:        domain.AppName,
		Data: domain.SnapshotData{
			Habits:      habits,
			Completions: completions,
			Settings:    settings,
		},
	}

	return merged, result
}

func mergeHabits(local, remote []*domain.Habit, result *domain.MergeResult) []*domain.Habit {
	byID := make(map[string]*domain.Habit, len(local))
	for _, h := range local {
		byID[h.ID] = h
	}

	// Local order first, remote-only records appended.
	merged := make([]*domain.Habit, 0, len(local))
	merged = append(merged, local...)

	for _, rh := range remote {
		lh, ok := byID[rh.ID]
		if !ok {
			byID[rh.ID] = rh
			merged = append(merged, rh)
			result.HabitsUpdated++
			continue
		}

		if rh.UpdatedAt.After(lh.UpdatedAt) {
			for i, h := range merged {
				if h.ID == rh.ID {
					merged[i] = rh
					break
				}
			}
			byID[rh.ID] = rh
			result.HabitsUpdated++
		}
	}

	return merged
}

func mergeCompletions(local, remote []*domain.HabitCompletion, result *domain.MergeResult) []*domain.HabitCompletion {
	type slot struct{ idx int }

	byKey := make(map[domain.CompletionKey]slot, len(local))
	merged := make([]*domain.HabitCompletion, 0, len(local))

	for _, c := range local {
		if s, ok := byKey[c.Key()]; ok {
			if c.CompletedAt.After(merged[s.idx].CompletedAt) {
				merged[s.idx] = c
			}
			continue
		}
		byKey[c.Key()] = slot{idx: len(merged)}
		merged = append(merged, c)
	}

	for _, rc := range remote {
		s, ok := byKey[rc.Key()]
		if !ok {
			byKey[rc.Key()] = slot{idx: len(merged)}
			merged = append(merged, rc)
			result.CompletionsAdded++
			continue
		}

		if rc.CompletedAt.After(merged[s.idx].CompletedAt) {
			merged[s.idx] = rc
			result.CompletionsAdded++
		}
	}

	return merged
}

func mergeSettings(local, remote *domain.UserSettings, result *domain.MergeResult) *domain.UserSettings {
	if local == nil {
		result.SettingsUpdated = remote != nil
		return remote
	}
	if remote != nil && remote.UpdatedAt.After(local.UpdatedAt) {
		result.SettingsUpdated = true
		return remote
	}
	return local
}
