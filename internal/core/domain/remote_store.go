package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRemoteNotFound      = errors.New("remote record not found")
	ErrDuplicateCompletion = errors.New("remote completion already exists")
)

type SnapshotRecord struct {
	OwnerID    string    `json:"ownerId" db:"owner_id"`
	Payload    *Snapshot `json:"payload" db:"-"`
	ExportedAt time.Time `json:"exportedAt" db:"exported_at"`
}

type RemoteSnapshotStore interface {
	// Fetch returns the owner's snapshot record, or ErrRemoteNotFound.
	Fetch(ctx context.Context, ownerID string) (*SnapshotRecord, error)

	// Upsert stores the snapshot under the owner key, replacing any existing record.
	Upsert(ctx context.Context, record *SnapshotRecord) error
}

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// RemoteCompletion is keyed remotely by (OwnerID, HabitID, Date). LocalID
// carries the pushing device's completion ID for self-echo suppression.
type RemoteCompletion struct {
	OwnerID     string    `json:"ownerId" db:"owner_id"`
	HabitID     string    `json:"habitId" db:"habit_id"`
	Date        string    `json:"date" db:"date"`
	CompletedAt time.Time `json:"completedAt" db:"completed_at"`
	Note        string    `json:"note" db:"note"`
	LocalID     string    `json:"localId" db:"local_id"`
}

type CompletionEvent struct {
	Action string           `json:"action"`
	Record RemoteCompletion `json:"record"`
}

type RemoteCompletionStore interface {
	// Find locates the record for (ownerID, habitID, date), or returns ErrRemoteNotFound.
	Find(ctx context.Context, ownerID, habitID, date string) (*RemoteCompletion, error)

	// Create inserts a new record. A race with another device surfaces as ErrDuplicateCompletion.
	Create(ctx context.Context, rec *RemoteCompletion) error

	// Update overwrites the record identified by rec's composite key.
	Update(ctx context.Context, rec *RemoteCompletion) error

	// Delete removes the record; deleting an absent record returns ErrRemoteNotFound.
	Delete(ctx context.Context, ownerID, habitID, date string) error

	// ListByOwner returns every completion record for the owner.
	ListByOwner(ctx context.Context, ownerID string) ([]*RemoteCompletion, error)

	// Subscribe opens a live change feed filtered to the owner's records.
	Subscribe(ctx context.Context, ownerID string, fn func(ev CompletionEvent)) (unsubscribe func(), err error)
}
