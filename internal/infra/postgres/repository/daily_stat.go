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

var ErrDailyStatNotFound = errors.New("daily stat not found")

// DailyStatRepository provides access to per-day study counters.
type DailyStatRepository struct {
	db postgres.DBTX
}

func NewDailyStatRepository(db postgres.DBTX) *DailyStatRepository {
	return &DailyStatRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *DailyStatRepository) WithTx(tx pgx.Tx) *DailyStatRepository {
	return &DailyStatRepository{db: tx}
}

// Bump increments the counters for (user, date), creating the row if needed.
func (r *DailyStatRepository) Bump(ctx context.Context, userID int64, date time.Time, solved, autoLearned, wrongDueNext int) error {
	query := `
		INSERT INTO daily_study_stats (user_id, date, srs_solved, auto_learned, wrong_due_next)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, date) DO UPDATE SET
			srs_solved = daily_study_stats.srs_solved + EXCLUDED.srs_solved,
			auto_learned = daily_study_stats.auto_learned + EXCLUDED.auto_learned,
			wrong_due_next = daily_study_stats.wrong_due_next + EXCLUDED.wrong_due_next
	`
	if _, err := r.db.Exec(ctx, query, userID, date, solved, autoLearned, wrongDueNext); err != nil {
		return fmt.Errorf("bump daily stat: %w", err)
	}
	return nil
}

// Get retrieves the counters for (user, date).
func (r *DailyStatRepository) Get(ctx context.Context, userID int64, date time.Time) (*entities.DailyStudyStat, error) {
	query := `
		SELECT user_id, date, srs_solved, auto_learned, wrong_due_next
		FROM daily_study_stats
		WHERE user_id = $1 AND date = $2
	`

	var s entities.DailyStudyStat
	err := r.db.QueryRow(ctx, query, userID, date).Scan(
		&s.UserID, &s.Date, &s.SRSSolved, &s.AutoLearned, &s.WrongDueNext,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDailyStatNotFound
		}
		return nil, fmt.Errorf("get daily stat: %w", err)
	}
	return &s, nil
}
