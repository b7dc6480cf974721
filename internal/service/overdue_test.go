package service

import (
	"context"
	"testing"
	"time"

	"github.com/vocaloop/srs-core/internal/domain/entities"
)

func newOverdueFixture(start time.Time) (*OverdueService, *memDB, *manualClock) {
	db := newMemDB()
	keeper, mc := newManualKeeper(start)
	svc := NewOverdueService(fakeTx{}, db.bind, keeper, 100, testLogger)
	return svc, db, mc
}

func TestSweepPromotesElapsedWaiting(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newOverdueFixture(start)

	elapsed := start.Add(-time.Minute)
	future := start.Add(time.Hour)

	due := entities.NewCard(1, 1, start)
	due.Stage = 2
	due.WaitingUntil = &elapsed
	db.addCard(due)

	notYet := entities.NewCard(1, 2, start)
	notYet.WaitingUntil = &future
	db.addCard(notYet)

	report, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Promoted != 1 {
		t.Errorf("promoted = %d, want 1", report.Promoted)
	}

	got := db.cards[due.ID]
	if !got.IsOverdue || got.WaitingUntil != nil {
		t.Errorf("card not promoted: overdue=%v waiting=%v", got.IsOverdue, got.WaitingUntil)
	}
	// Stage 2 on the default curve keeps a 14-day response window.
	wantDeadline := start.Add(14 * 24 * time.Hour)
	if got.OverdueDeadline == nil || !got.OverdueDeadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", got.OverdueDeadline, wantDeadline)
	}

	if db.cards[notYet.ID].IsOverdue {
		t.Error("card with a future waitingUntil must not be promoted")
	}
}

func TestSweepWrongAnswerCardGetsDayWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newOverdueFixture(start)

	elapsed := start.Add(-time.Minute)
	card := entities.NewCard(1, 1, start)
	card.IsFromWrongAnswer = true
	card.Stage = 0
	card.WaitingUntil = &elapsed
	db.addCard(card)

	if _, err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	got := db.cards[card.ID]
	wantDeadline := start.Add(24 * time.Hour)
	if got.OverdueDeadline == nil || !got.OverdueDeadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", got.OverdueDeadline, wantDeadline)
	}
}

func TestSweepFreezesMissedDeadline(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newOverdueFixture(start)

	openedAt := start.Add(-48 * time.Hour)
	deadline := start.Add(-time.Minute)
	card := entities.NewCard(1, 1, start)
	card.Stage = 3
	card.IsOverdue = true
	card.OverdueStartAt = &openedAt
	card.OverdueDeadline = &deadline
	db.addCard(card)

	report, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Frozen != 1 {
		t.Errorf("frozen = %d, want 1", report.Frozen)
	}

	got := db.cards[card.ID]
	if got.IsOverdue || got.OverdueDeadline != nil {
		t.Error("frozen card must leave the overdue state")
	}
	wantThaw := start.Add(24 * time.Hour)
	if got.FrozenUntil == nil || !got.FrozenUntil.Equal(wantThaw) {
		t.Errorf("frozenUntil = %v, want %v", got.FrozenUntil, wantThaw)
	}
	if got.Stage != 3 {
		t.Errorf("freezing changed the stage: %d, want 3", got.Stage)
	}
}

func TestSweepThawReopensOverdue(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newOverdueFixture(start)

	thawedAt := start.Add(-time.Minute)
	card := entities.NewCard(1, 1, start)
	card.Stage = 1
	card.FrozenUntil = &thawedAt
	db.addCard(card)

	report, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Thawed != 1 {
		t.Errorf("thawed = %d, want 1", report.Thawed)
	}

	got := db.cards[card.ID]
	if !got.IsOverdue || got.FrozenUntil != nil {
		t.Errorf("thawed card should be overdue again: overdue=%v frozen=%v", got.IsOverdue, got.FrozenUntil)
	}
	wantDeadline := start.Add(24 * time.Hour)
	if got.OverdueDeadline == nil || !got.OverdueDeadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", got.OverdueDeadline, wantDeadline)
	}

	// The thawed card's fresh deadline is in the future, so the same sweep
	// must not freeze it again.
	if report.Frozen != 0 {
		t.Errorf("frozen = %d, want 0", report.Frozen)
	}
}

func TestSweepAcceleratedWindows(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	db := newMemDB()
	keeper, _ := newManualKeeper(start)
	if err := keeper.SetFactor(1440); err != nil {
		t.Fatalf("SetFactor: %v", err)
	}
	svc := NewOverdueService(fakeTx{}, db.bind, keeper, 100, testLogger)

	elapsed := start.Add(-time.Second)
	card := entities.NewCard(1, 1, start)
	card.IsFromWrongAnswer = true
	card.WaitingUntil = &elapsed
	db.addCard(card)

	if _, err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	// A day at 1440x is one minute.
	got := db.cards[card.ID]
	wantDeadline := start.Add(time.Minute)
	if got.OverdueDeadline == nil || !got.OverdueDeadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", got.OverdueDeadline, wantDeadline)
	}
}
