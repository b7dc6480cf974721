package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/infra/postgres/repository"
	"github.com/vocaloop/srs-core/internal/srs"
)

// AnswerResult reports the card transition caused by one answer.
type AnswerResult struct {
	Status       string // "pass" or "fail"
	Stage        int
	Mastered     bool
	NextReviewAt *time.Time
}

// ReviewService applies the per-answer state transition: card stage, folder
// item, daily stat, streak and wrong-answer entry move in one transaction.
type ReviewService struct {
	tx     Transactor
	bind   BindFunc
	vocab  VocabProvider
	clock  srs.Clock
	loc    *time.Location
	daily  int
	logger *zap.Logger
}

func NewReviewService(
	tx Transactor,
	bind BindFunc,
	vocab VocabProvider,
	clock srs.Clock,
	loc *time.Location,
	requiredDailyQuizzes int,
	logger *zap.Logger,
) *ReviewService {
	return &ReviewService{
		tx:     tx,
		bind:   bind,
		vocab:  vocab,
		clock:  clock,
		loc:    loc,
		daily:  requiredDailyQuizzes,
		logger: logger,
	}
}

// SubmitAnswer records one answer against a card. folderID, when given, ties
// the answer to a folder item. Either everything commits or nothing does.
func (s *ReviewService) SubmitAnswer(ctx context.Context, userID int64, folderID *int64, cardID int64, correct bool) (*AnswerResult, error) {
	var result *AnswerResult

	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		st := s.bind(tx)
		now := s.clock.Now()

		card, err := st.Cards.GetForUpdate(ctx, cardID)
		if err != nil {
			if errors.Is(err, repository.ErrCardNotFound) {
				return fmt.Errorf("%w: card %d", ErrNotFound, cardID)
			}
			return err
		}
		if card.UserID != userID {
			return fmt.Errorf("%w: card %d", ErrForbidden, cardID)
		}
		if card.IsFrozen(now) {
			return fmt.Errorf("%w: card %d is frozen", ErrConflict, cardID)
		}

		curve, err := st.Cards.FolderCurve(ctx, card)
		if err != nil {
			return err
		}
		policy := srs.PolicyFor(curve)

		if correct {
			if err := s.applyCorrect(ctx, st, card, policy, now); err != nil {
				return err
			}
		} else {
			if err := s.applyIncorrect(ctx, st, card, now); err != nil {
				return err
			}
		}

		card.UpdatedAt = now
		if err := st.Cards.Update(ctx, card); err != nil {
			return err
		}

		if folderID != nil {
			folder, err := st.Folders.Get(ctx, *folderID)
			if err != nil {
				if errors.Is(err, repository.ErrFolderNotFound) {
					return fmt.Errorf("%w: folder %d", ErrNotFound, *folderID)
				}
				return err
			}
			if folder.UserID != userID {
				return fmt.Errorf("%w: folder %d", ErrForbidden, *folderID)
			}
			if err := st.Folders.UpdateItemReview(ctx, *folderID, card.ID, correct, now); err != nil {
				return err
			}
		}

		today := srs.StartOfDay(now, s.loc)
		wrongDueNext := 0
		if !correct {
			wrongDueNext = 1
		}
		if err := st.DailyStats.Bump(ctx, userID, today, 1, 0, wrongDueNext); err != nil {
			return err
		}

		if err := advanceStreak(ctx, st.Streaks, userID, today, s.daily); err != nil {
			return err
		}

		status := "fail"
		if correct {
			status = "pass"
		}
		result = &AnswerResult{
			Status:       status,
			Stage:        card.Stage,
			Mastered:     card.IsMastered,
			NextReviewAt: card.NextReviewAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("answer processed",
		zap.Int64("user_id", userID),
		zap.Int64("card_id", cardID),
		zap.String("status", result.Status),
		zap.Int("stage", result.Stage),
	)
	return result, nil
}

func (s *ReviewService) applyCorrect(ctx context.Context, st Stores, card *entities.Card, policy srs.IntervalPolicy, now time.Time) error {
	card.CorrectTotal++
	card.IsFromWrongAnswer = false
	card.Stage++

	if card.Stage >= policy.MaxStage() {
		// Terminal stage: the card graduates and the next cycle, if the
		// user ever re-enrolls it, starts over from stage zero.
		card.IsMastered = true
		card.MasterCycles++
		card.Stage = 0
		card.ClearTimers()
	} else {
		until := srs.ComputeWaitingUntil(s.clock, policy, card.Stage, s.loc)
		card.WaitingUntil = &until
		card.NextReviewAt = &until
		card.IsOverdue = false
		card.OverdueStartAt = nil
		card.OverdueDeadline = nil
		card.FrozenUntil = nil
	}

	// A correct answer inside the mandatory window also closes the open
	// wrong-answer entry; outside the window the entry stays open.
	open, err := st.WrongAnswers.GetOpen(ctx, card.UserID, card.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrWrongAnswerNotFound) {
			return nil
		}
		return err
	}
	if open.InWindow(now) {
		return st.WrongAnswers.Complete(ctx, open.ID, now)
	}
	return nil
}

func (s *ReviewService) applyIncorrect(ctx context.Context, st Stores, card *entities.Card, now time.Time) error {
	card.WrongTotal++
	card.Stage = 0
	card.IsFromWrongAnswer = true

	until := srs.ComputeWrongWaitingUntil(s.clock, s.loc)
	card.WaitingUntil = &until
	card.NextReviewAt = &until
	card.IsOverdue = false
	card.OverdueStartAt = nil
	card.OverdueDeadline = nil
	card.FrozenUntil = nil

	return s.upsertWrongAnswer(ctx, st, card, now)
}

// upsertWrongAnswer opens or refreshes the mandatory review entry. Its window
// is one accelerated day wide and opens one accelerated day after the
// failure. This is deliberately looser than the card's own retry timer.
func (s *ReviewService) upsertWrongAnswer(ctx context.Context, st Stores, card *entities.Card, now time.Time) error {
	day := s.clock.Accelerate(24 * time.Hour)
	start := now.Add(day)
	end := start.Add(day)

	open, err := st.WrongAnswers.GetOpen(ctx, card.UserID, card.ItemID)
	if err == nil {
		open.Attempts++
		open.WrongAt = now
		open.ReviewWindowStart = start
		open.ReviewWindowEnd = end
		return st.WrongAnswers.Refresh(ctx, open)
	}
	if !errors.Is(err, repository.ErrWrongAnswerNotFound) {
		return err
	}

	entry := &entities.WrongAnswerEntry{
		UserID:            card.UserID,
		ItemID:            card.ItemID,
		Attempts:          1,
		WrongAt:           now,
		ReviewWindowStart: start,
		ReviewWindowEnd:   end,
	}
	if item, err := s.vocab.GetByID(card.ItemID); err == nil {
		entry.Lemma = item.Lemma
		entry.Gloss = item.Gloss
		entry.Level = item.Level
	} else {
		s.logger.Warn("vocab snapshot unavailable for wrong answer",
			zap.Int64("item_id", card.ItemID), zap.Error(err))
	}

	_, err = st.WrongAnswers.Create(ctx, entry)
	return err
}
