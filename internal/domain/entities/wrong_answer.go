package entities

import "time"

// ReviewStatus classifies a wrong-answer entry relative to its review window.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"   // window not yet open
	ReviewAvailable ReviewStatus = "available" // inside the window
	ReviewOverdue   ReviewStatus = "overdue"   // window already closed
)

// WrongAnswerEntry records a missed item and its mandatory next-day review
// window. At most one open entry exists per (user, item).
type WrongAnswerEntry struct {
	ID     int64
	UserID int64
	ItemID int64

	Attempts          int
	WrongAt           time.Time
	ReviewWindowStart time.Time
	ReviewWindowEnd   time.Time

	IsCompleted bool
	CompletedAt *time.Time

	// Snapshot of the item at failure time, kept so the review quiz can be
	// built even if the vocabulary source changes.
	Lemma string
	Gloss string
	Level string
}

// Status returns where now falls relative to the review window.
func (w *WrongAnswerEntry) Status(now time.Time) ReviewStatus {
	switch {
	case now.Before(w.ReviewWindowStart):
		return ReviewPending
	case now.Before(w.ReviewWindowEnd):
		return ReviewAvailable
	default:
		return ReviewOverdue
	}
}

// InWindow reports whether the entry may be completed at now.
func (w *WrongAnswerEntry) InWindow(now time.Time) bool {
	return !now.Before(w.ReviewWindowStart) && now.Before(w.ReviewWindowEnd)
}

// WrongAnswerQuizItem is one generated multiple-choice question.
type WrongAnswerQuizItem struct {
	WrongAnswerID int64
	ItemID        int64
	Lemma         string
	Options       []string
	CorrectIndex  int
	Attempts      int
	WrongAt       time.Time
}
