package entities

import "time"

// FolderKind distinguishes how a folder came to exist.
type FolderKind string

const (
	FolderKindReview FolderKind = "review" // scheduled review cohort
	FolderKindCustom FolderKind = "custom" // user-created
	FolderKindAuto   FolderKind = "auto"   // generated by the scheduler
)

// Folder is a dated grouping of cards studied together.
type Folder struct {
	ID       int64
	UserID   int64
	ParentID *int64 // nullable: folders form a hierarchy
	Name     string
	Kind     FolderKind
	Date     time.Time // local midnight of the study date

	AlarmActive bool
	NextAlarmAt *time.Time

	LearningCurveType LearningCurveType
	AutoCreated       bool

	CreatedAt time.Time
}

// FolderItem joins a card into a folder. Unique per (folder, card).
type FolderItem struct {
	FolderID       int64
	CardID         int64
	Learned        bool
	WrongCount     int
	LastReviewedAt *time.Time
}

// FolderCounts summarizes study progress inside a folder.
type FolderCounts struct {
	Total     int
	Learned   int
	Remaining int
}

// QueueItem is one unlearned folder entry with its resolved vocab detail,
// as returned to the study queue.
type QueueItem struct {
	FolderID   int64
	CardID     int64
	ItemID     int64
	Learned    bool
	WrongCount int
	Vocab      *VocabItem
}
