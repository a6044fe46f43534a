package domain

import (
	"context"
	"time"
)

type SyncUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthProvider is the consumed auth boundary. GetUser returns nil, not an
// error, when nobody is signed in.
type AuthProvider interface {
	GetUser(ctx context.Context) (*SyncUser, error)
	OnAuthChange(fn func(user *SyncUser)) (unsubscribe func())
}
