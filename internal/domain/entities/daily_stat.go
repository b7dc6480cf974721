package entities

import "time"

// DailyStudyStat accumulates per-day study counters. Unique per (user, date).
type DailyStudyStat struct {
	UserID       int64
	Date         time.Time // local midnight
	SRSSolved    int
	AutoLearned  int
	WrongDueNext int
}
