package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/flashlearn/backend/internal/common"
	"github.com/flashlearn/backend/internal/models"
)

const (
	pqForeignKeyViolation = "23503"

	// Named in internal/database/migrations/000001_init.up.sql.
	userForeignKey      = "progress_records_user_id_fkey"
	flashcardForeignKey = "progress_records_flashcard_id_fkey"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert creates the (user, flashcard) record with one attempt or, when it
// exists, increments attempts and overwrites the mastery flag and review
// time. It is a single statement so concurrent calls cannot lose an
// increment.
func (s *Store) Upsert(ctx context.Context, userID int64, flashcardID string, isMastered bool, at time.Time) (*models.ProgressRecord, error) {
	var p models.ProgressRecord
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO progress_records (user_id, flashcard_id, attempts, is_mastered, last_reviewed)
		 VALUES ($1, $2, 1, $3, $4)
		 ON CONFLICT (user_id, flashcard_id)
		 DO UPDATE SET attempts = progress_records.attempts + 1,
		               is_mastered = EXCLUDED.is_mastered,
		               last_reviewed = EXCLUDED.last_reviewed
		 RETURNING user_id, flashcard_id, attempts, is_mastered, last_reviewed`,
		userID, flashcardID, isMastered, at,
	).Scan(&p.UserID, &p.FlashcardID, &p.Attempts, &p.IsMastered, &p.LastReviewed)
	if err != nil {
		return nil, upsertError(err, userID, flashcardID)
	}
	return &p, nil
}

// upsertError maps a failed upsert onto the error taxonomy. A missing user
// behind a valid token is an authentication problem, not a missing card.
func upsertError(err error, userID int64, flashcardID string) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqForeignKeyViolation {
		return common.StoreErr("upsert progress", err)
	}
	switch pqErr.Constraint {
	case userForeignKey:
		return fmt.Errorf("user %d: %w", userID, common.ErrUnauthenticated)
	case flashcardForeignKey:
		return fmt.Errorf("flashcard %s: %w", flashcardID, common.ErrNotFound)
	default:
		return common.StoreErr("upsert progress", err)
	}
}

func (s *Store) ListForUser(ctx context.Context, userID int64) ([]models.ProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, flashcard_id, attempts, is_mastered, last_reviewed
		 FROM progress_records
		 WHERE user_id = $1
		 ORDER BY last_reviewed DESC`,
		userID,
	)
	if err != nil {
		return nil, common.StoreErr("list progress", err)
	}
	defer rows.Close()

	records := []models.ProgressRecord{}
	for rows.Next() {
		var p models.ProgressRecord
		if err := rows.Scan(&p.UserID, &p.FlashcardID, &p.Attempts, &p.IsMastered, &p.LastReviewed); err != nil {
			return nil, common.StoreErr("scan progress", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreErr("iterate progress", err)
	}
	return records, nil
}
