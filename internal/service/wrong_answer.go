package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/infra/postgres/repository"
	"github.com/vocaloop/srs-core/internal/srs"
	"github.com/vocaloop/srs-core/internal/storage"
)

// Open entries whose window ended this many accelerated days ago are
// force-completed by the sweep.
const wrongAnswerExpiryDays = 3

const quizOptionCount = 4

// WrongAnswerService manages the mandatory review loop for missed items:
// listing, completion inside the window, quiz generation and expiry.
type WrongAnswerService struct {
	wrong    WrongAnswerStore
	vocab    VocabProvider
	sessions *storage.QuizSessionStore
	clock    srs.Clock
	quizSize int
	logger   *zap.Logger
}

func NewWrongAnswerService(
	wrong WrongAnswerStore,
	vocab VocabProvider,
	sessions *storage.QuizSessionStore,
	clock srs.Clock,
	quizSize int,
	logger *zap.Logger,
) *WrongAnswerService {
	return &WrongAnswerService{
		wrong:    wrong,
		vocab:    vocab,
		sessions: sessions,
		clock:    clock,
		quizSize: quizSize,
		logger:   logger,
	}
}

// List returns the user's wrong-answer entries.
func (s *WrongAnswerService) List(ctx context.Context, userID int64, includeCompleted bool) ([]*entities.WrongAnswerEntry, error) {
	return s.wrong.ListByUser(ctx, userID, includeCompleted)
}

// CountAvailable returns how many entries are currently inside their window.
func (s *WrongAnswerService) CountAvailable(ctx context.Context, userID int64) (int, error) {
	return s.wrong.CountAvailable(ctx, userID, s.clock.Now())
}

// Complete closes the open entry for (user, item) if the current time is
// inside its review window. Outside the window it returns false with no
// mutation; completion cannot happen early or late.
func (s *WrongAnswerService) Complete(ctx context.Context, userID, itemID int64) (bool, error) {
	open, err := s.wrong.GetOpen(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrWrongAnswerNotFound) {
			return false, nil
		}
		return false, err
	}

	now := s.clock.Now()
	if !open.InWindow(now) {
		return false, nil
	}
	if err := s.wrong.Complete(ctx, open.ID, now); err != nil {
		return false, err
	}
	return true, nil
}

// GenerateQuiz builds a multiple-choice quiz from the user's oldest open
// entries and stores it as the user's active session. Items without enough
// same-level distractors get shorter option lists.
func (s *WrongAnswerService) GenerateQuiz(ctx context.Context, userID int64) ([]*entities.WrongAnswerQuizItem, error) {
	entries, err := s.wrong.ListOpenOldest(ctx, userID, s.quizSize)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	exclude := make(map[int64]bool, len(entries))
	for _, e := range entries {
		exclude[e.ItemID] = true
	}

	items := make([]*entities.WrongAnswerQuizItem, 0, len(entries))
	for _, e := range entries {
		target := &entities.VocabItem{ID: e.ItemID, Lemma: e.Lemma, Gloss: e.Gloss, Level: e.Level}
		if v, err := s.vocab.GetByID(e.ItemID); err == nil {
			target = v
		}

		options := s.vocab.SameLevelDistractors(target, exclude, quizOptionCount-1)
		correctIndex := rand.Intn(len(options) + 1)
		options = append(options[:correctIndex], append([]string{target.Gloss}, options[correctIndex:]...)...)

		items = append(items, &entities.WrongAnswerQuizItem{
			WrongAnswerID: e.ID,
			ItemID:        e.ItemID,
			Lemma:         target.Lemma,
			Options:       options,
			CorrectIndex:  correctIndex,
			Attempts:      e.Attempts,
			WrongAt:       e.WrongAt,
		})
	}

	s.sessions.Set(userID, items, s.clock.Now())
	return items, nil
}

// AnswerQuiz grades the current question of the user's active session. A
// correct answer inside the window also completes the underlying entry.
func (s *WrongAnswerService) AnswerQuiz(ctx context.Context, userID int64, optionIndex int) (correct, completed bool, err error) {
	session, ok := s.sessions.Get(userID)
	if !ok || session.Current() == nil {
		return false, false, errors.New("no active wrong-answer quiz")
	}

	item := session.Current()
	correct = optionIndex == item.CorrectIndex
	s.sessions.Advance(userID)

	if !correct {
		return false, false, nil
	}

	completed, err = s.Complete(ctx, userID, item.ItemID)
	if err != nil {
		return true, false, err
	}
	return true, completed, nil
}

// NextQuestion returns the question the user's active quiz session is on,
// or nil when the session is finished or absent.
func (s *WrongAnswerService) NextQuestion(userID int64) *entities.WrongAnswerQuizItem {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return nil
	}
	return session.Current()
}

// Sweep force-completes open entries whose window ended more than the expiry
// horizon ago, so stale entries do not accumulate forever.
func (s *WrongAnswerService) Sweep(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	horizon := time.Duration(wrongAnswerExpiryDays) * s.clock.Accelerate(24*time.Hour)
	cutoff := now.Add(-horizon)

	expired, err := s.wrong.ExpireEndedBefore(ctx, cutoff, now)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.Info("expired wrong-answer entries", zap.Int64("count", expired))
	}
	return expired, nil
}
