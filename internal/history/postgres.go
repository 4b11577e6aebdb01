package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/GollyTicker/PluralSync/internal/db"
)

// PostgresStore persists history in the history_status table.
type PostgresStore struct {
	log *slog.Logger
	db  *db.DB
}

func NewPostgresStore(log *slog.Logger, dbConn *db.DB) *PostgresStore {
	return &PostgresStore{log: log, db: dbConn}
}

func (s *PostgresStore) Append(ctx context.Context, userID, statusText string) error {
	var lastText string
	err := s.db.Pool.QueryRow(ctx,
		`SELECT status_text
		 FROM history_status
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userID,
	).Scan(&lastText)

	switch {
	case err == nil:
		if lastText == statusText {
			s.log.Debug("history_append_skipped_duplicate", "user_id", userID)
			return nil
		}
	case errors.Is(err, pgx.ErrNoRows):
		// first entry for this user
	default:
		return fmt.Errorf("fetch last history entry: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx,
		`INSERT INTO history_status (user_id, status_text)
		 VALUES ($1, $2)`,
		userID, statusText,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Prune(ctx context.Context, userID string, limit, truncateAfterDays int) error {
	// count axis and age axis combine with OR; either alone deletes a row
	_, err := s.db.Pool.Exec(ctx,
		`DELETE FROM history_status
		 WHERE user_id = $1
		   AND (
		     id NOT IN (
		       SELECT id FROM history_status
		       WHERE user_id = $1
		       ORDER BY created_at DESC, id DESC
		       LIMIT $2
		     )
		     OR ($3::int > 0 AND created_at <= NOW() - make_interval(days => $3))
		   )`,
		userID, limit, truncateAfterDays,
	)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, user_id, status_text, created_at
		 FROM history_status
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.StatusText, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
