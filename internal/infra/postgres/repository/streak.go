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

var ErrStreakNotFound = errors.New("streak state not found")

// StreakRepository provides access to per-user streak state.
type StreakRepository struct {
	db postgres.DBTX
}

func NewStreakRepository(db postgres.DBTX) *StreakRepository {
	return &StreakRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *StreakRepository) WithTx(tx pgx.Tx) *StreakRepository {
	return &StreakRepository{db: tx}
}

func scanStreak(row pgx.Row) (*entities.UserStreakState, error) {
	var s entities.UserStreakState
	err := row.Scan(&s.UserID, &s.Streak, &s.DailyQuizCount, &s.LastQuizDate, &s.StreakUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStreakNotFound
		}
		return nil, fmt.Errorf("scan streak: %w", err)
	}
	return &s, nil
}

// Get retrieves a user's streak state.
func (r *StreakRepository) Get(ctx context.Context, userID int64) (*entities.UserStreakState, error) {
	query := `
		SELECT user_id, streak, daily_quiz_count, last_quiz_date, streak_updated_at
		FROM user_streaks WHERE user_id = $1
	`
	return scanStreak(r.db.QueryRow(ctx, query, userID))
}

// GetForUpdate retrieves a user's streak state with a row lock so concurrent
// answers cannot lose a counter increment.
func (r *StreakRepository) GetForUpdate(ctx context.Context, userID int64) (*entities.UserStreakState, error) {
	query := `
		SELECT user_id, streak, daily_quiz_count, last_quiz_date, streak_updated_at
		FROM user_streaks WHERE user_id = $1 FOR UPDATE
	`
	return scanStreak(r.db.QueryRow(ctx, query, userID))
}

// Upsert creates or replaces a user's streak state.
func (r *StreakRepository) Upsert(ctx context.Context, s *entities.UserStreakState) error {
	query := `
		INSERT INTO user_streaks (user_id, streak, daily_quiz_count, last_quiz_date, streak_updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			streak = EXCLUDED.streak,
			daily_quiz_count = EXCLUDED.daily_quiz_count,
			last_quiz_date = EXCLUDED.last_quiz_date,
			streak_updated_at = EXCLUDED.streak_updated_at
	`
	if _, err := r.db.Exec(ctx, query, s.UserID, s.Streak, s.DailyQuizCount, s.LastQuizDate, s.StreakUpdatedAt); err != nil {
		return fmt.Errorf("upsert streak: %w", err)
	}
	return nil
}

// ResetBelowThreshold zeroes the streak of every user who did not reach the
// required quiz count on the given day. Run by the midnight rollup with the
// day that just ended. Returns the number of streaks reset.
func (r *StreakRepository) ResetBelowThreshold(ctx context.Context, day time.Time, required int) (int64, error) {
	query := `
		UPDATE user_streaks
		SET streak = 0
		WHERE streak > 0
		  AND NOT (last_quiz_date = $1 AND daily_quiz_count >= $2)
	`
	tag, err := r.db.Exec(ctx, query, day, required)
	if err != nil {
		return 0, fmt.Errorf("reset streaks below threshold: %w", err)
	}
	return tag.RowsAffected(), nil
}
