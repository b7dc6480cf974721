package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/srs"
)

// FactorPresets are the acceleration shortcuts exposed to callers: real
// time, a day per minute-equivalent hour, a day per minute, a week per
// minute.
var FactorPresets = []int{1, 60, 1440, 10080}

// RecalcReport summarizes one recalculation pass.
type RecalcReport struct {
	Scanned   int
	Updated   int
	Factor    int
	DayOffset int
	Elapsed   time.Duration
}

// TimeStatus is the read model of the global time state.
type TimeStatus struct {
	Factor    int
	DayOffset int
	Presets   []int
	Now       time.Time
}

// AcceleratorService owns the global acceleration factor and day offset.
// A change only reports success after every active timer has been
// recomputed; if the recalculation fails, the previous value is restored so
// callers never observe a half-applied change.
type AcceleratorService struct {
	keeper    *srs.TimeKeeper
	tx        Transactor
	bind      BindFunc
	batchSize int
	onChange  func()
	logger    *zap.Logger
}

func NewAcceleratorService(
	keeper *srs.TimeKeeper,
	tx Transactor,
	bind BindFunc,
	batchSize int,
	logger *zap.Logger,
) *AcceleratorService {
	return &AcceleratorService{
		keeper:    keeper,
		tx:        tx,
		bind:      bind,
		batchSize: batchSize,
		logger:    logger,
	}
}

// OnChange registers a callback fired after a factor or offset change has
// fully applied. The trigger service uses it to retune its sweep cadence.
func (s *AcceleratorService) OnChange(fn func()) { s.onChange = fn }

// SetFactor applies a new acceleration factor. Out-of-range input is
// rejected with no state change.
func (s *AcceleratorService) SetFactor(ctx context.Context, factor int) (*RecalcReport, error) {
	previous := s.keeper.Factor()
	if err := s.keeper.SetFactor(factor); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	report, err := s.RecalculateActiveTimers(ctx)
	if err != nil {
		_ = s.keeper.SetFactor(previous)
		return nil, fmt.Errorf("recalculate after factor change: %w", err)
	}

	s.logger.Info("acceleration factor changed",
		zap.Int("from", previous),
		zap.Int("to", factor),
		zap.Int("timers_updated", report.Updated),
	)
	s.notifyChange()
	return report, nil
}

// SetDayOffset applies a new global day offset.
func (s *AcceleratorService) SetDayOffset(ctx context.Context, days int) (*RecalcReport, error) {
	previous := s.keeper.DayOffset()
	if err := s.keeper.SetDayOffset(days); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	report, err := s.RecalculateActiveTimers(ctx)
	if err != nil {
		_ = s.keeper.SetDayOffset(previous)
		return nil, fmt.Errorf("recalculate after offset change: %w", err)
	}

	s.logger.Info("day offset changed",
		zap.Int("from", previous),
		zap.Int("to", days),
		zap.Int("timers_updated", report.Updated),
	)
	s.notifyChange()
	return report, nil
}

// Status returns the current global time state.
func (s *AcceleratorService) Status() TimeStatus {
	return TimeStatus{
		Factor:    s.keeper.Factor(),
		DayOffset: s.keeper.DayOffset(),
		Presets:   FactorPresets,
		Now:       s.keeper.Now(),
	}
}

// RecalculateActiveTimers recomputes every live timer against a single time
// snapshot under the current factor. The pass is idempotent: running it
// twice without an intervening change yields the same deadlines. Batches are
// keyset-paginated so the pass never starves other work of connections.
func (s *AcceleratorService) RecalculateActiveTimers(ctx context.Context) (*RecalcReport, error) {
	start := time.Now()
	now := s.keeper.Now()
	report := &RecalcReport{Factor: s.keeper.Factor(), DayOffset: s.keeper.DayOffset()}

	afterID := int64(0)
	for {
		var batch []*entities.Card
		err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			st := s.bind(tx)

			cards, err := st.Cards.ListActiveTimers(ctx, now, afterID, s.batchSize)
			if err != nil {
				return err
			}
			batch = cards

			for _, card := range cards {
				if !s.retime(ctx, st, card, now) {
					continue
				}
				card.UpdatedAt = now
				if err := st.Cards.Update(ctx, card); err != nil {
					return err
				}
				report.Updated++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		report.Scanned += len(batch)
		if len(batch) < s.batchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

// retime rewrites one card's live timer from the snapshot, preserving its
// semantics: wrong-answer cards always measure one accelerated day, others
// their stage delay. Reports whether the card changed.
func (s *AcceleratorService) retime(ctx context.Context, st Stores, card *entities.Card, now time.Time) bool {
	day := s.keeper.Accelerate(24 * time.Hour)

	switch {
	case card.IsFrozen(now):
		frozenUntil := now.Add(day)
		card.FrozenUntil = &frozenUntil

	case card.IsOverdue:
		deadline := now.Add(s.cardWindow(ctx, st, card, day))
		card.OverdueDeadline = &deadline

	case card.WaitingUntil != nil && card.WaitingUntil.After(now):
		until := now.Add(s.cardWindow(ctx, st, card, day))
		card.WaitingUntil = &until
		card.NextReviewAt = &until

	default:
		return false
	}
	return true
}

func (s *AcceleratorService) cardWindow(ctx context.Context, st Stores, card *entities.Card, day time.Duration) time.Duration {
	if card.IsFromWrongAnswer {
		return day
	}

	curve, err := st.Cards.FolderCurve(ctx, card)
	if err != nil {
		s.logger.Warn("folder curve lookup failed during recalc",
			zap.Int64("card_id", card.ID), zap.Error(err))
		curve = entities.CurveForgettingCurve
	}
	return s.keeper.Accelerate(srs.PolicyFor(curve).WaitingDuration(card.Stage))
}

func (s *AcceleratorService) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}
