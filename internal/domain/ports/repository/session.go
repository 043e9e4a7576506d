package repository

import (
	"context"
	"time"

	"github.com/simonbarrel6/aakora/internal/domain/model"
)

// SessionStore owns every user's dialogue position. Implementations hand out
// copies; callers never keep a reference across turns.
type SessionStore interface {
	// Get returns a fresh StateNone session for unknown users.
	Get(ctx context.Context, userID int64) (*model.Session, error)
	// Put replaces the session. Putting a StateNone session clears it.
	Put(ctx context.Context, userID int64, s *model.Session) error
	Clear(ctx context.Context, userID int64) error
	// MergeFields shallow merges partial over the stored fields and returns the result.
	MergeFields(ctx context.Context, userID int64, partial model.Fields) (*model.Session, error)
}

// SessionSweeper is implemented by stores that need an external expiry pass.
type SessionSweeper interface {
	Sweep(ctx context.Context, idle time.Duration) (int, error)
}
