package service

import (
	"context"
	"testing"
	"time"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/storage"
)

func newWrongFixture(start time.Time) (*WrongAnswerService, *memDB, *manualClock) {
	db := newMemDB()
	keeper, mc := newManualKeeper(start)
	svc := NewWrongAnswerService(db.stores().WrongAnswers, newFakeVocab(), storage.NewQuizSessionStore(), keeper, 10, testLogger)
	return svc, db, mc
}

func TestCompleteWindowGating(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, mc := newWrongFixture(start)

	entry := db.addWrong(&entities.WrongAnswerEntry{
		UserID:            1,
		ItemID:            1,
		Attempts:          1,
		WrongAt:           start.Add(-time.Hour),
		ReviewWindowStart: start.Add(23 * time.Hour),
		ReviewWindowEnd:   start.Add(47 * time.Hour),
	})

	// Before the window opens: typed false, nothing changes.
	ok, err := svc.Complete(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if ok || db.wrong[entry.ID].IsCompleted {
		t.Error("completion before the window must be a no-op")
	}

	// Inside the window it succeeds.
	mc.advance(24 * time.Hour)
	ok, err = svc.Complete(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !ok || !db.wrong[entry.ID].IsCompleted {
		t.Error("completion inside the window must close the entry")
	}

	// Completed entries leave the open list.
	open, err := svc.List(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("open entries = %d, want 0", len(open))
	}

	// After the window nothing is left to complete.
	ok, err = svc.Complete(context.Background(), 1, 1)
	if err != nil || ok {
		t.Errorf("Complete after close = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestCompleteAfterWindowEnd(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newWrongFixture(start)

	entry := db.addWrong(&entities.WrongAnswerEntry{
		UserID:            1,
		ItemID:            1,
		WrongAt:           start.Add(-72 * time.Hour),
		ReviewWindowStart: start.Add(-48 * time.Hour),
		ReviewWindowEnd:   start.Add(-24 * time.Hour),
	})

	ok, err := svc.Complete(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if ok || db.wrong[entry.ID].IsCompleted {
		t.Error("completion after the window must be a no-op")
	}
}

func TestSweepExpiresStaleEntries(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newWrongFixture(start)

	stale := db.addWrong(&entities.WrongAnswerEntry{
		UserID:            1,
		ItemID:            1,
		WrongAt:           start.Add(-6 * 24 * time.Hour),
		ReviewWindowStart: start.Add(-5 * 24 * time.Hour),
		ReviewWindowEnd:   start.Add(-4 * 24 * time.Hour),
	})
	fresh := db.addWrong(&entities.WrongAnswerEntry{
		UserID:            1,
		ItemID:            2,
		WrongAt:           start.Add(-3 * 24 * time.Hour),
		ReviewWindowStart: start.Add(-2 * 24 * time.Hour),
		ReviewWindowEnd:   start.Add(-1 * 24 * time.Hour),
	})

	expired, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}
	if !db.wrong[stale.ID].IsCompleted {
		t.Error("entry ended >3 days ago should be force-completed")
	}
	if db.wrong[fresh.ID].IsCompleted {
		t.Error("entry ended 1 day ago must stay open")
	}
}

func TestGenerateQuizOldestFirst(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newWrongFixture(start)

	db.addWrong(&entities.WrongAnswerEntry{
		UserID: 1, ItemID: 2, Attempts: 1,
		WrongAt:           start.Add(-2 * time.Hour),
		ReviewWindowStart: start.Add(-time.Hour),
		ReviewWindowEnd:   start.Add(time.Hour),
		Lemma:             "beta", Gloss: "second", Level: "A1",
	})
	db.addWrong(&entities.WrongAnswerEntry{
		UserID: 1, ItemID: 1, Attempts: 2,
		WrongAt:           start.Add(-5 * time.Hour),
		ReviewWindowStart: start.Add(-time.Hour),
		ReviewWindowEnd:   start.Add(time.Hour),
		Lemma:             "alpha", Gloss: "first", Level: "A1",
	})

	items, err := svc.GenerateQuiz(context.Background(), 1)
	if err != nil {
		t.Fatalf("GenerateQuiz: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("quiz items = %d, want 2", len(items))
	}
	if items[0].ItemID != 1 {
		t.Errorf("first question item = %d, want the oldest failure (1)", items[0].ItemID)
	}

	for _, item := range items {
		if len(item.Options) != quizOptionCount {
			t.Errorf("item %d options = %d, want %d", item.ItemID, len(item.Options), quizOptionCount)
		}
		if item.CorrectIndex < 0 || item.CorrectIndex >= len(item.Options) {
			t.Fatalf("item %d correct index %d out of range", item.ItemID, item.CorrectIndex)
		}
	}
	if items[0].Options[items[0].CorrectIndex] != "first" {
		t.Errorf("correct option = %q, want %q", items[0].Options[items[0].CorrectIndex], "first")
	}

	if svc.NextQuestion(1) == nil {
		t.Error("expected an active session after quiz generation")
	}
}

func TestAnswerQuizGradesAndAdvances(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newWrongFixture(start)

	entry := db.addWrong(&entities.WrongAnswerEntry{
		UserID: 1, ItemID: 1, Attempts: 1,
		WrongAt:           start.Add(-30 * time.Hour),
		ReviewWindowStart: start.Add(-time.Hour),
		ReviewWindowEnd:   start.Add(time.Hour),
		Lemma:             "alpha", Gloss: "first", Level: "A1",
	})

	items, err := svc.GenerateQuiz(context.Background(), 1)
	if err != nil || len(items) != 1 {
		t.Fatalf("GenerateQuiz = (%d items, %v)", len(items), err)
	}

	correct, completed, err := svc.AnswerQuiz(context.Background(), 1, items[0].CorrectIndex)
	if err != nil {
		t.Fatalf("AnswerQuiz: %v", err)
	}
	if !correct || !completed {
		t.Errorf("AnswerQuiz = correct=%v completed=%v, want true/true", correct, completed)
	}
	if !db.wrong[entry.ID].IsCompleted {
		t.Error("correct quiz answer inside the window should complete the entry")
	}
	if svc.NextQuestion(1) != nil {
		t.Error("finished quiz should have no next question")
	}

	// With no session left, answering errors.
	if _, _, err := svc.AnswerQuiz(context.Background(), 1, 0); err == nil {
		t.Error("expected an error without an active session")
	}
}
