package history

import (
	"context"
	"time"
)

// Entry is one published status snapshot for a user.
type Entry struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	StatusText string    `json:"status_text"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store records published status texts per user.
//
// Append skips the write when the most recent entry already holds the same
// text. That guard only compares against the single latest entry: it bounds
// write amplification, it is not a uniqueness constraint.
//
// Prune deletes entries that fall outside the most-recent-`limit` window OR
// are older than `truncateAfterDays` days. limit=0 deletes everything (history
// disabled); truncateAfterDays=0 disables the age axis.
type Store interface {
	Append(ctx context.Context, userID, statusText string) error
	Prune(ctx context.Context, userID string, limit, truncateAfterDays int) error
	ListRecent(ctx context.Context, userID string, limit int) ([]Entry, error)
}
