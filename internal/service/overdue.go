package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/srs"
)

// SweepReport counts the card transitions one sweep performed.
type SweepReport struct {
	Promoted int // waiting elapsed, now overdue
	Frozen   int // overdue deadline missed, now frozen
	Thawed   int // freeze elapsed, overdue again
}

// OverdueService walks the three timer classes and moves cards between them:
// elapsed waiting periods open an overdue window, a missed overdue deadline
// freezes the card for an accelerated day, and an elapsed freeze re-opens
// the overdue window.
type OverdueService struct {
	tx        Transactor
	bind      BindFunc
	clock     srs.Clock
	batchSize int
	logger    *zap.Logger
}

func NewOverdueService(tx Transactor, bind BindFunc, clock srs.Clock, batchSize int, logger *zap.Logger) *OverdueService {
	return &OverdueService{
		tx:        tx,
		bind:      bind,
		clock:     clock,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Sweep runs one full pass. Each timer class is drained in batches so one
// sweep never holds a transaction over the whole card table.
func (s *OverdueService) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}
	now := s.clock.Now()

	if err := s.drain(ctx, now, &report.Thawed, s.thawBatch); err != nil {
		return report, err
	}
	if err := s.drain(ctx, now, &report.Frozen, s.freezeBatch); err != nil {
		return report, err
	}
	if err := s.drain(ctx, now, &report.Promoted, s.promoteBatch); err != nil {
		return report, err
	}

	if report.Promoted+report.Frozen+report.Thawed > 0 {
		s.logger.Info("overdue sweep",
			zap.Int("promoted", report.Promoted),
			zap.Int("frozen", report.Frozen),
			zap.Int("thawed", report.Thawed),
		)
	}
	return report, nil
}

func (s *OverdueService) drain(ctx context.Context, now time.Time, counter *int, batch func(ctx context.Context, now time.Time) (int, error)) error {
	for {
		n, err := batch(ctx, now)
		if err != nil {
			return err
		}
		*counter += n
		if n < s.batchSize {
			return nil
		}
	}
}

// promoteBatch opens an overdue window for cards whose waiting period ended.
// Wrong-answer cards get one accelerated day to respond; correct-path cards
// get their stage-appropriate accelerated delay.
func (s *OverdueService) promoteBatch(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		st := s.bind(tx)
		cards, err := st.Cards.ListWaitingElapsed(ctx, now, s.batchSize)
		if err != nil {
			return err
		}

		for _, card := range cards {
			window, err := s.overdueWindow(ctx, st, card)
			if err != nil {
				return err
			}
			deadline := now.Add(window)

			card.WaitingUntil = nil
			card.IsOverdue = true
			card.OverdueStartAt = timePtr(now)
			card.OverdueDeadline = &deadline
			card.FrozenUntil = nil
			card.UpdatedAt = now

			if err := st.Cards.Update(ctx, card); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// freezeBatch freezes overdue cards whose deadline passed unanswered. The
// stage is preserved; freezing pauses the card, it does not punish it.
func (s *OverdueService) freezeBatch(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		st := s.bind(tx)
		cards, err := st.Cards.ListOverduePastDeadline(ctx, now, s.batchSize)
		if err != nil {
			return err
		}

		frozenUntil := now.Add(s.clock.Accelerate(24 * time.Hour))
		for _, card := range cards {
			card.IsOverdue = false
			card.OverdueStartAt = nil
			card.OverdueDeadline = nil
			card.FrozenUntil = &frozenUntil
			card.UpdatedAt = now

			if err := st.Cards.Update(ctx, card); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// thawBatch re-opens the overdue window for cards whose freeze elapsed.
func (s *OverdueService) thawBatch(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		st := s.bind(tx)
		cards, err := st.Cards.ListFrozenElapsed(ctx, now, s.batchSize)
		if err != nil {
			return err
		}

		deadline := now.Add(s.clock.Accelerate(24 * time.Hour))
		for _, card := range cards {
			card.FrozenUntil = nil
			card.IsOverdue = true
			card.OverdueStartAt = timePtr(now)
			card.OverdueDeadline = &deadline
			card.UpdatedAt = now

			if err := st.Cards.Update(ctx, card); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *OverdueService) overdueWindow(ctx context.Context, st Stores, card *entities.Card) (time.Duration, error) {
	if card.IsFromWrongAnswer {
		return s.clock.Accelerate(24 * time.Hour), nil
	}

	curve, err := st.Cards.FolderCurve(ctx, card)
	if err != nil {
		return 0, err
	}
	policy := srs.PolicyFor(curve)
	return s.clock.Accelerate(policy.WaitingDuration(card.Stage)), nil
}

func timePtr(t time.Time) *time.Time { return &t }
