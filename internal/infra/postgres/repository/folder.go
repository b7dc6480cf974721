package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/infra/postgres"
)

var (
	ErrFolderNotFound     = errors.New("folder not found")
	ErrFolderItemConflict = errors.New("card already in folder")
)

// FolderRepository provides access to folders and folder items.
type FolderRepository struct {
	db postgres.DBTX
}

func NewFolderRepository(db postgres.DBTX) *FolderRepository {
	return &FolderRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *FolderRepository) WithTx(tx pgx.Tx) *FolderRepository {
	return &FolderRepository{db: tx}
}

// Create inserts a folder and returns its id.
func (r *FolderRepository) Create(ctx context.Context, f *entities.Folder) (int64, error) {
	query := `
		INSERT INTO srs_folders (
			user_id, parent_id, name, kind, date,
			alarm_active, next_alarm_at, learning_curve_type, auto_created, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRow(ctx, query,
		f.UserID,
		f.ParentID,
		f.Name,
		f.Kind,
		f.Date,
		f.AlarmActive,
		f.NextAlarmAt,
		f.LearningCurveType,
		f.AutoCreated,
		f.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create folder: %w", err)
	}
	return id, nil
}

func scanFolder(row pgx.Row) (*entities.Folder, error) {
	var f entities.Folder
	var kind, curve string
	err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.ParentID,
		&f.Name,
		&kind,
		&f.Date,
		&f.AlarmActive,
		&f.NextAlarmAt,
		&curve,
		&f.AutoCreated,
		&f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFolderNotFound
		}
		return nil, fmt.Errorf("scan folder: %w", err)
	}
	f.Kind = entities.FolderKind(kind)
	f.LearningCurveType = entities.LearningCurveType(curve)
	return &f, nil
}

const folderColumns = `
	id, user_id, parent_id, name, kind, date,
	alarm_active, next_alarm_at, learning_curve_type, auto_created, created_at`

// Get retrieves a folder by id.
func (r *FolderRepository) Get(ctx context.Context, folderID int64) (*entities.Folder, error) {
	query := `SELECT` + folderColumns + ` FROM srs_folders WHERE id = $1`
	return scanFolder(r.db.QueryRow(ctx, query, folderID))
}

// AddItem inserts a folder item. A duplicate (folder, card) pair is rejected
// by the primary key and surfaces as ErrFolderItemConflict: concurrent
// duplicate adds deterministically lose, they are never merged.
func (r *FolderRepository) AddItem(ctx context.Context, folderID, cardID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO srs_folder_items (folder_id, card_id) VALUES ($1, $2)`,
		folderID, cardID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrFolderItemConflict
		}
		return fmt.Errorf("add folder item: %w", err)
	}
	return nil
}

// UpdateItemReview records an answer against a folder item.
func (r *FolderRepository) UpdateItemReview(ctx context.Context, folderID, cardID int64, learned bool, at time.Time) error {
	query := `
		UPDATE srs_folder_items
		SET learned = $3,
		    wrong_count = wrong_count + CASE WHEN $3 THEN 0 ELSE 1 END,
		    last_reviewed_at = $4
		WHERE folder_id = $1 AND card_id = $2
	`
	if _, err := r.db.Exec(ctx, query, folderID, cardID, learned, at); err != nil {
		return fmt.Errorf("update folder item: %w", err)
	}
	return nil
}

// ResetItems marks every item of a folder unlearned.
func (r *FolderRepository) ResetItems(ctx context.Context, folderID int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE srs_folder_items SET learned = FALSE WHERE folder_id = $1`, folderID); err != nil {
		return fmt.Errorf("reset folder items: %w", err)
	}
	return nil
}

// ListUnlearnedItems returns the study queue of a folder: unlearned items
// joined with their cards, oldest cards first.
func (r *FolderRepository) ListUnlearnedItems(ctx context.Context, folderID int64) ([]*entities.QueueItem, error) {
	query := `
		SELECT fi.folder_id, fi.card_id, c.item_id, fi.learned, fi.wrong_count
		FROM srs_folder_items fi
		JOIN srs_cards c ON c.id = fi.card_id
		WHERE fi.folder_id = $1 AND NOT fi.learned
		ORDER BY fi.card_id
	`
	rows, err := r.db.Query(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("list unlearned items: %w", err)
	}
	defer rows.Close()

	var items []*entities.QueueItem
	for rows.Next() {
		var it entities.QueueItem
		if err := rows.Scan(&it.FolderID, &it.CardID, &it.ItemID, &it.Learned, &it.WrongCount); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// CountUnlearned returns the number of unlearned items in a folder.
func (r *FolderRepository) CountUnlearned(ctx context.Context, folderID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM srs_folder_items WHERE folder_id = $1 AND NOT learned`,
		folderID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unlearned: %w", err)
	}
	return n, nil
}

// Counts returns total/learned/remaining for a folder.
func (r *FolderRepository) Counts(ctx context.Context, folderID int64) (entities.FolderCounts, error) {
	var c entities.FolderCounts
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE learned)
		FROM srs_folder_items WHERE folder_id = $1
	`, folderID).Scan(&c.Total, &c.Learned)
	if err != nil {
		return c, fmt.Errorf("folder counts: %w", err)
	}
	c.Remaining = c.Total - c.Learned
	return c, nil
}

// ListForDate returns a user's folders dated on or before the given local day.
func (r *FolderRepository) ListForDate(ctx context.Context, userID int64, date time.Time) ([]*entities.Folder, error) {
	query := `
		SELECT` + folderColumns + `
		FROM srs_folders
		WHERE user_id = $1 AND date <= $2
		ORDER BY date DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("list folders for date: %w", err)
	}
	defer rows.Close()

	var folders []*entities.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// ListAlarmCandidates returns all alarm-active folders dated on the given
// local day that still have at least one unlearned item. Used by the
// six-hourly notify across all users.
func (r *FolderRepository) ListAlarmCandidates(ctx context.Context, date time.Time) ([]*entities.Folder, error) {
	query := `
		SELECT` + folderColumns + `
		FROM srs_folders f
		WHERE f.date = $1
		  AND f.alarm_active
		  AND EXISTS (
			SELECT 1 FROM srs_folder_items fi
			WHERE fi.folder_id = f.id AND NOT fi.learned
		  )
		ORDER BY f.id
	`
	rows, err := r.db.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("list alarm candidates: %w", err)
	}
	defer rows.Close()

	var folders []*entities.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// SetNextAlarm updates a folder's next alarm slot. A nil time mutes it.
func (r *FolderRepository) SetNextAlarm(ctx context.Context, folderID int64, at *time.Time) error {
	if _, err := r.db.Exec(ctx, `UPDATE srs_folders SET next_alarm_at = $2 WHERE id = $1`, folderID, at); err != nil {
		return fmt.Errorf("set next alarm: %w", err)
	}
	return nil
}

// SetAlarmActive toggles a folder's alarm flag.
func (r *FolderRepository) SetAlarmActive(ctx context.Context, folderID int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE srs_folders SET alarm_active = $2 WHERE id = $1`, folderID, active)
	if err != nil {
		return fmt.Errorf("set alarm active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFolderNotFound
	}
	return nil
}

// MuteAlarmsForDate clears alarms of every folder dated on the given local
// day. Run by the midnight rollup for the day that just ended.
func (r *FolderRepository) MuteAlarmsForDate(ctx context.Context, date time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE srs_folders SET next_alarm_at = NULL WHERE date = $1 AND next_alarm_at IS NOT NULL`,
		date,
	)
	if err != nil {
		return 0, fmt.Errorf("mute alarms for date: %w", err)
	}
	return tag.RowsAffected(), nil
}
