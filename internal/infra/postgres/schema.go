package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS srs_cards (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    item_id BIGINT NOT NULL,
    stage INT NOT NULL DEFAULT 0,
    correct_total INT NOT NULL DEFAULT 0,
    wrong_total INT NOT NULL DEFAULT 0,
    waiting_until TIMESTAMPTZ,
    next_review_at TIMESTAMPTZ,
    is_overdue BOOLEAN NOT NULL DEFAULT FALSE,
    overdue_start_at TIMESTAMPTZ,
    overdue_deadline TIMESTAMPTZ,
    frozen_until TIMESTAMPTZ,
    is_from_wrong_answer BOOLEAN NOT NULL DEFAULT FALSE,
    is_mastered BOOLEAN NOT NULL DEFAULT FALSE,
    master_cycles INT NOT NULL DEFAULT 0,
    folder_id BIGINT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (user_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_srs_cards_waiting ON srs_cards (waiting_until) WHERE waiting_until IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_srs_cards_overdue ON srs_cards (overdue_deadline) WHERE is_overdue;
CREATE INDEX IF NOT EXISTS idx_srs_cards_frozen ON srs_cards (frozen_until) WHERE frozen_until IS NOT NULL;

CREATE TABLE IF NOT EXISTS srs_folders (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    parent_id BIGINT REFERENCES srs_folders(id) ON DELETE SET NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    date DATE NOT NULL,
    alarm_active BOOLEAN NOT NULL DEFAULT TRUE,
    next_alarm_at TIMESTAMPTZ,
    learning_curve_type TEXT NOT NULL DEFAULT 'forgettingCurve',
    auto_created BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_srs_folders_user_date ON srs_folders (user_id, date);

CREATE TABLE IF NOT EXISTS srs_folder_items (
    folder_id BIGINT NOT NULL REFERENCES srs_folders(id) ON DELETE CASCADE,
    card_id BIGINT NOT NULL REFERENCES srs_cards(id) ON DELETE CASCADE,
    learned BOOLEAN NOT NULL DEFAULT FALSE,
    wrong_count INT NOT NULL DEFAULT 0,
    last_reviewed_at TIMESTAMPTZ,

    PRIMARY KEY (folder_id, card_id)
);

CREATE TABLE IF NOT EXISTS wrong_answers (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    item_id BIGINT NOT NULL,
    attempts INT NOT NULL DEFAULT 1,
    wrong_at TIMESTAMPTZ NOT NULL,
    review_window_start TIMESTAMPTZ NOT NULL,
    review_window_end TIMESTAMPTZ NOT NULL,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at TIMESTAMPTZ,
    lemma TEXT NOT NULL DEFAULT '',
    gloss TEXT NOT NULL DEFAULT '',
    level TEXT NOT NULL DEFAULT ''
);

-- One open entry per (user, item); completed history rows stay behind.
CREATE UNIQUE INDEX IF NOT EXISTS uq_wrong_answers_open
    ON wrong_answers (user_id, item_id) WHERE NOT is_completed;

CREATE TABLE IF NOT EXISTS daily_study_stats (
    user_id BIGINT NOT NULL,
    date DATE NOT NULL,
    srs_solved INT NOT NULL DEFAULT 0,
    auto_learned INT NOT NULL DEFAULT 0,
    wrong_due_next INT NOT NULL DEFAULT 0,

    PRIMARY KEY (user_id, date)
);

CREATE TABLE IF NOT EXISTS user_streaks (
    user_id BIGINT PRIMARY KEY,
    streak INT NOT NULL DEFAULT 0,
    daily_quiz_count INT NOT NULL DEFAULT 0,
    last_quiz_date DATE,
    streak_updated_at DATE
);
`

// Migrate applies the schema on startup. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
