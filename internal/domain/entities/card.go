package entities

import "time"

// LearningCurveType selects which interval table a folder's cards follow.
type LearningCurveType string

const (
	CurveShort           LearningCurveType = "short"           // legacy table [1,3,7,14,30]
	CurveForgettingCurve LearningCurveType = "forgettingCurve" // [3,7,14,30,60,120]
)

func (c LearningCurveType) Valid() bool {
	return c == CurveShort || c == CurveForgettingCurve
}

// Card is one user's SRS state for a single vocabulary item.
type Card struct {
	ID     int64
	UserID int64
	ItemID int64 // opaque vocabulary item reference

	Stage        int
	CorrectTotal int
	WrongTotal   int

	// Timer classes. At most one of waiting/overdue/frozen is active.
	WaitingUntil    *time.Time
	NextReviewAt    *time.Time
	IsOverdue       bool
	OverdueStartAt  *time.Time
	OverdueDeadline *time.Time
	FrozenUntil     *time.Time

	IsFromWrongAnswer bool
	IsMastered        bool
	MasterCycles      int

	FolderID *int64 // nullable: a card may be enrolled without a folder

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewCard(userID, itemID int64, now time.Time) *Card {
	return &Card{
		UserID:    userID,
		ItemID:    itemID,
		Stage:     0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsWaiting reports whether the card is inside its waiting period at t.
func (c *Card) IsWaiting(t time.Time) bool {
	return c.WaitingUntil != nil && c.WaitingUntil.After(t) && !c.IsOverdue
}

// IsFrozen reports whether the card is frozen at t.
func (c *Card) IsFrozen(t time.Time) bool {
	return c.FrozenUntil != nil && c.FrozenUntil.After(t)
}

// IsReviewable reports whether the card may be answered with state effect:
// it must be overdue and still before its overdue deadline.
func (c *Card) IsReviewable(t time.Time) bool {
	return c.IsOverdue && c.OverdueDeadline != nil && c.OverdueDeadline.After(t)
}

// ClearTimers drops every timer class. Used on mastery and on unenroll.
func (c *Card) ClearTimers() {
	c.WaitingUntil = nil
	c.NextReviewAt = nil
	c.IsOverdue = false
	c.OverdueStartAt = nil
	c.OverdueDeadline = nil
	c.FrozenUntil = nil
}
