package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vocaloop/srs-core/internal/domain/entities"
)

// Transactor runs a function inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// CardStore provides access to SRS card state.
type CardStore interface {
	Get(ctx context.Context, cardID int64) (*entities.Card, error)
	GetForUpdate(ctx context.Context, cardID int64) (*entities.Card, error)
	GetByItem(ctx context.Context, userID, itemID int64) (*entities.Card, error)
	EnsureCards(ctx context.Context, userID int64, itemIDs []int64) ([]int64, error)
	AssignFolder(ctx context.Context, folderID int64, cardIDs []int64) error
	Update(ctx context.Context, c *entities.Card) error
	Delete(ctx context.Context, userID, cardID int64) error
	ListWaitingElapsed(ctx context.Context, now time.Time, limit int) ([]*entities.Card, error)
	ListOverduePastDeadline(ctx context.Context, now time.Time, limit int) ([]*entities.Card, error)
	ListFrozenElapsed(ctx context.Context, now time.Time, limit int) ([]*entities.Card, error)
	ListActiveTimers(ctx context.Context, now time.Time, afterID int64, limit int) ([]*entities.Card, error)
	FolderCurve(ctx context.Context, c *entities.Card) (entities.LearningCurveType, error)
}

// FolderStore provides access to folders and their items.
type FolderStore interface {
	Create(ctx context.Context, f *entities.Folder) (int64, error)
	Get(ctx context.Context, folderID int64) (*entities.Folder, error)
	AddItem(ctx context.Context, folderID, cardID int64) error
	UpdateItemReview(ctx context.Context, folderID, cardID int64, learned bool, at time.Time) error
	ResetItems(ctx context.Context, folderID int64) error
	ListUnlearnedItems(ctx context.Context, folderID int64) ([]*entities.QueueItem, error)
	CountUnlearned(ctx context.Context, folderID int64) (int, error)
	Counts(ctx context.Context, folderID int64) (entities.FolderCounts, error)
	ListForDate(ctx context.Context, userID int64, date time.Time) ([]*entities.Folder, error)
	ListAlarmCandidates(ctx context.Context, date time.Time) ([]*entities.Folder, error)
	SetNextAlarm(ctx context.Context, folderID int64, at *time.Time) error
	SetAlarmActive(ctx context.Context, folderID int64, active bool) error
	MuteAlarmsForDate(ctx context.Context, date time.Time) (int64, error)
}

// WrongAnswerStore provides access to wrong-answer review entries.
type WrongAnswerStore interface {
	GetOpen(ctx context.Context, userID, itemID int64) (*entities.WrongAnswerEntry, error)
	Create(ctx context.Context, w *entities.WrongAnswerEntry) (int64, error)
	Refresh(ctx context.Context, w *entities.WrongAnswerEntry) error
	Complete(ctx context.Context, id int64, at time.Time) error
	ListByUser(ctx context.Context, userID int64, includeCompleted bool) ([]*entities.WrongAnswerEntry, error)
	ListOpenOldest(ctx context.Context, userID int64, limit int) ([]*entities.WrongAnswerEntry, error)
	ExpireEndedBefore(ctx context.Context, cutoff, completedAt time.Time) (int64, error)
	CountAvailable(ctx context.Context, userID int64, now time.Time) (int, error)
}

// DailyStatStore provides access to per-day study counters.
type DailyStatStore interface {
	Bump(ctx context.Context, userID int64, date time.Time, solved, autoLearned, wrongDueNext int) error
	Get(ctx context.Context, userID int64, date time.Time) (*entities.DailyStudyStat, error)
}

// StreakStore provides access to per-user streak state.
type StreakStore interface {
	Get(ctx context.Context, userID int64) (*entities.UserStreakState, error)
	GetForUpdate(ctx context.Context, userID int64) (*entities.UserStreakState, error)
	Upsert(ctx context.Context, s *entities.UserStreakState) error
	ResetBelowThreshold(ctx context.Context, day time.Time, required int) (int64, error)
}

// VocabProvider resolves opaque item references to vocabulary detail.
type VocabProvider interface {
	GetByID(id int64) (*entities.VocabItem, error)
	SameLevelDistractors(target *entities.VocabItem, exclude map[int64]bool, count int) []string
}

// Stores bundles every repository a transactional flow touches.
type Stores struct {
	Cards        CardStore
	Folders      FolderStore
	WrongAnswers WrongAnswerStore
	DailyStats   DailyStatStore
	Streaks      StreakStore
}

// BindFunc binds the store set to a transaction. Tests supply a binder that
// ignores the transaction and returns in-memory fakes.
type BindFunc func(tx pgx.Tx) Stores

// DelayQueue schedules a payload for later delivery. Enqueueing an existing
// key replaces the pending job.
type DelayQueue interface {
	Enqueue(key string, payload any, delay time.Duration)
}

// Notifier delivers a folder alarm to the user.
type Notifier interface {
	NotifyFolderAlarm(ctx context.Context, userID int64, folder *entities.Folder, remaining int) error
}
