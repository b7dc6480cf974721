package entities

import "time"

// BonusTier is a derived, read-only classification of a streak. Never stored.
type BonusTier string

const (
	BonusNone   BonusTier = "none"
	BonusBronze BonusTier = "bronze" // 7+ days
	BonusSilver BonusTier = "silver" // 30+ days
	BonusGold   BonusTier = "gold"   // 100+ days
)

// UserStreakState tracks consecutive days meeting the daily quiz threshold.
type UserStreakState struct {
	UserID          int64
	Streak          int
	DailyQuizCount  int
	LastQuizDate    *time.Time // local midnight of the last counted quiz
	StreakUpdatedAt *time.Time // local midnight of the last streak bump
}

func NewUserStreakState(userID int64) *UserStreakState {
	return &UserStreakState{UserID: userID}
}

// Bonus derives the tier for the current streak.
func (s *UserStreakState) Bonus() BonusTier {
	switch {
	case s.Streak >= 100:
		return BonusGold
	case s.Streak >= 30:
		return BonusSilver
	case s.Streak >= 7:
		return BonusBronze
	default:
		return BonusNone
	}
}

// StreakInfo is the read model returned to callers.
type StreakInfo struct {
	Streak             int
	DailyQuizCount     int
	RequiredDaily      int
	RemainingForStreak int
	Bonus              BonusTier
	CompletedToday     bool
}
