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

var ErrCardNotFound = errors.New("card not found")

const cardColumns = `
	id, user_id, item_id, stage, correct_total, wrong_total,
	waiting_until, next_review_at, is_overdue, overdue_start_at, overdue_deadline,
	frozen_until, is_from_wrong_answer, is_mastered, master_cycles, folder_id,
	created_at, updated_at`

// CardRepository provides access to SRS card state in the database.
type CardRepository struct {
	db postgres.DBTX
}

// NewCardRepository creates a new CardRepository with the provided database handle.
func NewCardRepository(db postgres.DBTX) *CardRepository {
	return &CardRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *CardRepository) WithTx(tx pgx.Tx) *CardRepository {
	return &CardRepository{db: tx}
}

func scanCard(row pgx.Row) (*entities.Card, error) {
	var c entities.Card
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.ItemID,
		&c.Stage,
		&c.CorrectTotal,
		&c.WrongTotal,
		&c.WaitingUntil,
		&c.NextReviewAt,
		&c.IsOverdue,
		&c.OverdueStartAt,
		&c.OverdueDeadline,
		&c.FrozenUntil,
		&c.IsFromWrongAnswer,
		&c.IsMastered,
		&c.MasterCycles,
		&c.FolderID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("scan card: %w", err)
	}
	return &c, nil
}

// Get retrieves a card by id. Ownership is checked by the caller comparing UserID.
func (r *CardRepository) Get(ctx context.Context, cardID int64) (*entities.Card, error) {
	query := `SELECT` + cardColumns + ` FROM srs_cards WHERE id = $1`
	return scanCard(r.db.QueryRow(ctx, query, cardID))
}

// GetForUpdate retrieves a card with a row lock, serializing concurrent
// answer and sweep transitions on the same card.
func (r *CardRepository) GetForUpdate(ctx context.Context, cardID int64) (*entities.Card, error) {
	query := `SELECT` + cardColumns + ` FROM srs_cards WHERE id = $1 FOR UPDATE`
	return scanCard(r.db.QueryRow(ctx, query, cardID))
}

// GetByItem retrieves a user's card for a vocabulary item.
func (r *CardRepository) GetByItem(ctx context.Context, userID, itemID int64) (*entities.Card, error) {
	query := `SELECT` + cardColumns + ` FROM srs_cards WHERE user_id = $1 AND item_id = $2`
	return scanCard(r.db.QueryRow(ctx, query, userID, itemID))
}

// EnsureCards creates missing cards for the given items and returns the card
// ids for all of them, existing or new.
func (r *CardRepository) EnsureCards(ctx context.Context, userID int64, itemIDs []int64) ([]int64, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	insert := `
		INSERT INTO srs_cards (user_id, item_id)
		SELECT $1, unnest($2::int8[])
		ON CONFLICT (user_id, item_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert, userID, itemIDs); err != nil {
		return nil, fmt.Errorf("ensure cards: %w", err)
	}

	query := `
		SELECT id FROM srs_cards
		WHERE user_id = $1 AND item_id = ANY($2::int8[])
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, userID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("select ensured cards: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, len(itemIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan card id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AssignFolder points cards at the folder whose learning curve now governs
// their waiting delays.
func (r *CardRepository) AssignFolder(ctx context.Context, folderID int64, cardIDs []int64) error {
	if len(cardIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE srs_cards SET folder_id = $1 WHERE id = ANY($2::int8[])`,
		folderID, cardIDs,
	)
	if err != nil {
		return fmt.Errorf("assign folder: %w", err)
	}
	return nil
}

// Update writes the full mutable state of a card.
func (r *CardRepository) Update(ctx context.Context, c *entities.Card) error {
	query := `
		UPDATE srs_cards SET
			stage = $2,
			correct_total = $3,
			wrong_total = $4,
			waiting_until = $5,
			next_review_at = $6,
			is_overdue = $7,
			overdue_start_at = $8,
			overdue_deadline = $9,
			frozen_until = $10,
			is_from_wrong_answer = $11,
			is_mastered = $12,
			master_cycles = $13,
			folder_id = $14,
			updated_at = $15
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		c.ID,
		c.Stage,
		c.CorrectTotal,
		c.WrongTotal,
		c.WaitingUntil,
		c.NextReviewAt,
		c.IsOverdue,
		c.OverdueStartAt,
		c.OverdueDeadline,
		c.FrozenUntil,
		c.IsFromWrongAnswer,
		c.IsMastered,
		c.MasterCycles,
		c.FolderID,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

// Delete removes a card on explicit unenroll. Folder items cascade.
func (r *CardRepository) Delete(ctx context.Context, userID, cardID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM srs_cards WHERE id = $1 AND user_id = $2`, cardID, userID)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

func (r *CardRepository) list(ctx context.Context, query string, args ...any) ([]*entities.Card, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []*entities.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// ListWaitingElapsed returns cards whose waiting period has ended and that
// are neither overdue nor frozen yet.
func (r *CardRepository) ListWaitingElapsed(ctx context.Context, now time.Time, limit int) ([]*entities.Card, error) {
	query := `
		SELECT` + cardColumns + `
		FROM srs_cards
		WHERE waiting_until IS NOT NULL AND waiting_until <= $1
		  AND NOT is_overdue
		  AND (frozen_until IS NULL OR frozen_until <= $1)
		ORDER BY waiting_until
		LIMIT $2
	`
	return r.list(ctx, query, now, limit)
}

// ListOverduePastDeadline returns overdue cards whose deadline has passed.
func (r *CardRepository) ListOverduePastDeadline(ctx context.Context, now time.Time, limit int) ([]*entities.Card, error) {
	query := `
		SELECT` + cardColumns + `
		FROM srs_cards
		WHERE is_overdue AND overdue_deadline IS NOT NULL AND overdue_deadline <= $1
		ORDER BY overdue_deadline
		LIMIT $2
	`
	return r.list(ctx, query, now, limit)
}

// ListFrozenElapsed returns cards whose freeze has ended.
func (r *CardRepository) ListFrozenElapsed(ctx context.Context, now time.Time, limit int) ([]*entities.Card, error) {
	query := `
		SELECT` + cardColumns + `
		FROM srs_cards
		WHERE frozen_until IS NOT NULL AND frozen_until <= $1
		ORDER BY frozen_until
		LIMIT $2
	`
	return r.list(ctx, query, now, limit)
}

// ListActiveTimers pages through every card holding a live timer: a future
// waiting period, an open overdue window, or a freeze. Keyset pagination on
// id keeps the recalculation pass bounded per batch.
func (r *CardRepository) ListActiveTimers(ctx context.Context, now time.Time, afterID int64, limit int) ([]*entities.Card, error) {
	query := `
		SELECT` + cardColumns + `
		FROM srs_cards
		WHERE id > $1
		  AND (waiting_until > $2 OR is_overdue OR frozen_until > $2)
		ORDER BY id
		LIMIT $3
	`
	return r.list(ctx, query, afterID, now, limit)
}

// FolderCurve returns the learning curve of the folder a card belongs to,
// or the default curve when the card is folderless.
func (r *CardRepository) FolderCurve(ctx context.Context, c *entities.Card) (entities.LearningCurveType, error) {
	if c.FolderID == nil {
		return entities.CurveForgettingCurve, nil
	}

	var curve string
	err := r.db.QueryRow(ctx, `SELECT learning_curve_type FROM srs_folders WHERE id = $1`, *c.FolderID).Scan(&curve)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entities.CurveForgettingCurve, nil
		}
		return "", fmt.Errorf("folder curve: %w", err)
	}
	return entities.LearningCurveType(curve), nil
}
