package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/infra/postgres"
)

var ErrWrongAnswerNotFound = errors.New("wrong answer entry not found")

const wrongAnswerColumns = `
	id, user_id, item_id, attempts, wrong_at,
	review_window_start, review_window_end, is_completed, completed_at,
	lemma, gloss, level`

// WrongAnswerRepository provides access to wrong-answer review entries.
type WrongAnswerRepository struct {
	db postgres.DBTX
}

func NewWrongAnswerRepository(db postgres.DBTX) *WrongAnswerRepository {
	return &WrongAnswerRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *WrongAnswerRepository) WithTx(tx pgx.Tx) *WrongAnswerRepository {
	return &WrongAnswerRepository{db: tx}
}

func scanWrongAnswer(row pgx.Row) (*entities.WrongAnswerEntry, error) {
	var w entities.WrongAnswerEntry
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.ItemID,
		&w.Attempts,
		&w.WrongAt,
		&w.ReviewWindowStart,
		&w.ReviewWindowEnd,
		&w.IsCompleted,
		&w.CompletedAt,
		&w.Lemma,
		&w.Gloss,
		&w.Level,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWrongAnswerNotFound
		}
		return nil, fmt.Errorf("scan wrong answer: %w", err)
	}
	return &w, nil
}

// GetOpen returns the open entry for (user, item), if any.
func (r *WrongAnswerRepository) GetOpen(ctx context.Context, userID, itemID int64) (*entities.WrongAnswerEntry, error) {
	query := `
		SELECT` + wrongAnswerColumns + `
		FROM wrong_answers
		WHERE user_id = $1 AND item_id = $2 AND NOT is_completed
	`
	return scanWrongAnswer(r.db.QueryRow(ctx, query, userID, itemID))
}

// Create inserts a new entry and returns its id.
func (r *WrongAnswerRepository) Create(ctx context.Context, w *entities.WrongAnswerEntry) (int64, error) {
	query := `
		INSERT INTO wrong_answers (
			user_id, item_id, attempts, wrong_at,
			review_window_start, review_window_end, lemma, gloss, level
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		w.UserID, w.ItemID, w.Attempts, w.WrongAt,
		w.ReviewWindowStart, w.ReviewWindowEnd, w.Lemma, w.Gloss, w.Level,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create wrong answer: %w", err)
	}
	return id, nil
}

// Refresh bumps attempts and moves the review window after a repeat failure.
func (r *WrongAnswerRepository) Refresh(ctx context.Context, w *entities.WrongAnswerEntry) error {
	query := `
		UPDATE wrong_answers
		SET attempts = $2, wrong_at = $3, review_window_start = $4, review_window_end = $5
		WHERE id = $1 AND NOT is_completed
	`
	tag, err := r.db.Exec(ctx, query, w.ID, w.Attempts, w.WrongAt, w.ReviewWindowStart, w.ReviewWindowEnd)
	if err != nil {
		return fmt.Errorf("refresh wrong answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWrongAnswerNotFound
	}
	return nil
}

// Complete closes an entry at the given time.
func (r *WrongAnswerRepository) Complete(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE wrong_answers
		SET is_completed = TRUE, completed_at = $2
		WHERE id = $1 AND NOT is_completed
	`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("complete wrong answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWrongAnswerNotFound
	}
	return nil
}

func (r *WrongAnswerRepository) list(ctx context.Context, query string, args ...any) ([]*entities.WrongAnswerEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wrong answers: %w", err)
	}
	defer rows.Close()

	var entries []*entities.WrongAnswerEntry
	for rows.Next() {
		w, err := scanWrongAnswer(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, w)
	}
	return entries, rows.Err()
}

// ListByUser returns a user's entries, open first, newest failure first.
func (r *WrongAnswerRepository) ListByUser(ctx context.Context, userID int64, includeCompleted bool) ([]*entities.WrongAnswerEntry, error) {
	query := `
		SELECT` + wrongAnswerColumns + `
		FROM wrong_answers
		WHERE user_id = $1 AND (NOT is_completed OR $2)
		ORDER BY is_completed ASC, wrong_at DESC
	`
	return r.list(ctx, query, userID, includeCompleted)
}

// ListOpenOldest returns up to limit open entries, oldest failure first, so
// quiz generation is fair to long-waiting items.
func (r *WrongAnswerRepository) ListOpenOldest(ctx context.Context, userID int64, limit int) ([]*entities.WrongAnswerEntry, error) {
	query := `
		SELECT` + wrongAnswerColumns + `
		FROM wrong_answers
		WHERE user_id = $1 AND NOT is_completed
		ORDER BY wrong_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

// ExpireEndedBefore force-completes open entries whose window ended before
// the cutoff. Returns the number of entries closed.
func (r *WrongAnswerRepository) ExpireEndedBefore(ctx context.Context, cutoff, completedAt time.Time) (int64, error) {
	query := `
		UPDATE wrong_answers
		SET is_completed = TRUE, completed_at = $2
		WHERE NOT is_completed AND review_window_end < $1
	`
	tag, err := r.db.Exec(ctx, query, cutoff, completedAt)
	if err != nil {
		return 0, fmt.Errorf("expire wrong answers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountAvailable returns how many open entries are inside their window at now.
func (r *WrongAnswerRepository) CountAvailable(ctx context.Context, userID int64, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM wrong_answers
		WHERE user_id = $1 AND NOT is_completed
		  AND review_window_start <= $2 AND review_window_end > $2
	`, userID, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count available wrong answers: %w", err)
	}
	return n, nil
}
