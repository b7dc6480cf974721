package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/infra/postgres/repository"
	"github.com/vocaloop/srs-core/internal/srs"
)

// advanceStreak counts one quiz for the user on the given local day. The
// daily counter resets exactly once when the day changes; the streak bumps
// at most once per day, when the counter reaches the required threshold.
func advanceStreak(ctx context.Context, streaks StreakStore, userID int64, today time.Time, required int) error {
	state, err := streaks.GetForUpdate(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrStreakNotFound) {
			return err
		}
		state = entities.NewUserStreakState(userID)
	}

	if state.LastQuizDate == nil || !srs.SameDay(*state.LastQuizDate, today) {
		state.DailyQuizCount = 0
	}
	state.DailyQuizCount++
	day := today
	state.LastQuizDate = &day

	bumpedToday := state.StreakUpdatedAt != nil && srs.SameDay(*state.StreakUpdatedAt, today)
	if state.DailyQuizCount >= required && !bumpedToday {
		yesterday := today.AddDate(0, 0, -1)
		if state.StreakUpdatedAt != nil && srs.SameDay(*state.StreakUpdatedAt, yesterday) {
			state.Streak++
		} else {
			state.Streak = 1
		}
		bump := today
		state.StreakUpdatedAt = &bump
	}

	return streaks.Upsert(ctx, state)
}

// StreakService exposes streak reads and the daily rollup reset.
type StreakService struct {
	streaks StreakStore
	clock   srs.Clock
	loc     *time.Location
	daily   int
	logger  *zap.Logger
}

func NewStreakService(streaks StreakStore, clock srs.Clock, loc *time.Location, requiredDailyQuizzes int, logger *zap.Logger) *StreakService {
	return &StreakService{
		streaks: streaks,
		clock:   clock,
		loc:     loc,
		daily:   requiredDailyQuizzes,
		logger:  logger,
	}
}

// GetStreakInfo returns the user's streak read model. A user with no state
// yet gets the zero model rather than an error.
func (s *StreakService) GetStreakInfo(ctx context.Context, userID int64) (*entities.StreakInfo, error) {
	state, err := s.streaks.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrStreakNotFound) {
			return nil, err
		}
		state = entities.NewUserStreakState(userID)
	}

	today := srs.StartOfDay(s.clock.Now(), s.loc)
	count := 0
	if state.LastQuizDate != nil && srs.SameDay(*state.LastQuizDate, today) {
		count = state.DailyQuizCount
	}

	remaining := s.daily - count
	if remaining < 0 {
		remaining = 0
	}

	return &entities.StreakInfo{
		Streak:             state.Streak,
		DailyQuizCount:     count,
		RequiredDaily:      s.daily,
		RemainingForStreak: remaining,
		Bonus:              state.Bonus(),
		CompletedToday:     count >= s.daily,
	}, nil
}

// RolloverDay zeroes the streak of every user who ended the given day under
// the daily threshold. Called by the midnight rollup with the day that just
// ended.
func (s *StreakService) RolloverDay(ctx context.Context, day time.Time) (int64, error) {
	reset, err := s.streaks.ResetBelowThreshold(ctx, day, s.daily)
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		s.logger.Info("streaks reset by rollup",
			zap.Time("day", day), zap.Int64("count", reset))
	}
	return reset, nil
}
