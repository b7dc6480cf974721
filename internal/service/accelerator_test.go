package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vocaloop/srs-core/internal/domain/entities"
)

func newAcceleratorFixture(start time.Time) (*AcceleratorService, *memDB, *manualClock) {
	db := newMemDB()
	keeper, mc := newManualKeeper(start)
	svc := NewAcceleratorService(keeper, fakeTx{}, db.bind, 100, testLogger)
	return svc, db, mc
}

func TestSetFactorValidation(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newAcceleratorFixture(start)

	until := start.Add(7 * 24 * time.Hour)
	card := entities.NewCard(1, 1, start)
	card.Stage = 1
	card.WaitingUntil = &until
	db.addCard(card)

	for _, factor := range []int{0, -5, 10081} {
		if _, err := svc.SetFactor(context.Background(), factor); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetFactor(%d): err = %v, want ErrInvalidArgument", factor, err)
		}
	}

	if svc.Status().Factor != 1 {
		t.Errorf("factor after rejections = %d, want 1", svc.Status().Factor)
	}
	if got := db.cards[card.ID]; !got.WaitingUntil.Equal(until) {
		t.Error("rejected change touched a timer")
	}
}

func TestSetDayOffsetValidation(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newAcceleratorFixture(start)

	for _, days := range []int{-3651, 3651} {
		if _, err := svc.SetDayOffset(context.Background(), days); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetDayOffset(%d): err = %v, want ErrInvalidArgument", days, err)
		}
	}
	if svc.Status().DayOffset != 0 {
		t.Errorf("offset after rejections = %d, want 0", svc.Status().DayOffset)
	}
}

func TestSetFactorRecalculatesTimers(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newAcceleratorFixture(start)

	waitingUntil := start.Add(7 * 24 * time.Hour)
	waiting := entities.NewCard(1, 1, start)
	waiting.Stage = 1
	waiting.WaitingUntil = &waitingUntil
	db.addCard(waiting)

	retryAt := start.Add(24 * time.Hour)
	wrongCard := entities.NewCard(1, 2, start)
	wrongCard.IsFromWrongAnswer = true
	wrongCard.WaitingUntil = &retryAt
	db.addCard(wrongCard)

	deadline := start.Add(3 * 24 * time.Hour)
	overdue := entities.NewCard(1, 3, start)
	overdue.Stage = 2
	overdue.IsOverdue = true
	overdue.OverdueDeadline = &deadline
	db.addCard(overdue)

	frozenUntil := start.Add(20 * time.Hour)
	frozen := entities.NewCard(1, 4, start)
	frozen.FrozenUntil = &frozenUntil
	db.addCard(frozen)

	report, err := svc.SetFactor(context.Background(), 60)
	if err != nil {
		t.Fatalf("SetFactor: %v", err)
	}
	if report.Scanned != 4 || report.Updated != 4 {
		t.Errorf("report = scanned %d updated %d, want 4/4", report.Scanned, report.Updated)
	}

	// Stage 1 waits 7 days, so at 60x the timer lands 2h48m out.
	if got := db.cards[waiting.ID]; !got.WaitingUntil.Equal(start.Add(7 * 24 * time.Hour / 60)) {
		t.Errorf("waiting card = %v, want %v", got.WaitingUntil, start.Add(7*24*time.Hour/60))
	}
	// Wrong-answer cards always measure one accelerated day.
	if got := db.cards[wrongCard.ID]; !got.WaitingUntil.Equal(start.Add(24 * time.Hour / 60)) {
		t.Errorf("wrong-answer card = %v, want %v", got.WaitingUntil, start.Add(24*time.Hour/60))
	}
	// Overdue stage 2 keeps a 14-day window, compressed.
	if got := db.cards[overdue.ID]; !got.OverdueDeadline.Equal(start.Add(14 * 24 * time.Hour / 60)) {
		t.Errorf("overdue card = %v, want %v", got.OverdueDeadline, start.Add(14*24*time.Hour/60))
	}
	// Frozen cards get a fresh accelerated day.
	if got := db.cards[frozen.ID]; !got.FrozenUntil.Equal(start.Add(24 * time.Hour / 60)) {
		t.Errorf("frozen card = %v, want %v", got.FrozenUntil, start.Add(24*time.Hour/60))
	}
}

func TestRecalculateIsIdempotent(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newAcceleratorFixture(start)

	until := start.Add(3 * 24 * time.Hour)
	card := entities.NewCard(1, 1, start)
	card.Stage = 0
	card.WaitingUntil = &until
	db.addCard(card)

	if _, err := svc.SetFactor(context.Background(), 60); err != nil {
		t.Fatalf("SetFactor: %v", err)
	}
	first := *db.cards[card.ID].WaitingUntil

	if _, err := svc.RecalculateActiveTimers(context.Background()); err != nil {
		t.Fatalf("RecalculateActiveTimers: %v", err)
	}
	second := *db.cards[card.ID].WaitingUntil

	if !first.Equal(second) {
		t.Errorf("recalculation not idempotent: %v then %v", first, second)
	}
}

func TestSetFactorRestoresOnRecalcFailure(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newAcceleratorFixture(start)

	until := start.Add(24 * time.Hour)
	card := entities.NewCard(1, 1, start)
	card.WaitingUntil = &until
	db.addCard(card)

	db.failCardUpdate = true
	if _, err := svc.SetFactor(context.Background(), 60); err == nil {
		t.Fatal("expected recalculation failure to surface")
	}
	if svc.Status().Factor != 1 {
		t.Errorf("factor after failed change = %d, want the previous 1", svc.Status().Factor)
	}
}

func TestOnChangeFiresAfterApply(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, db, _ := newAcceleratorFixture(start)

	fired := false
	svc.OnChange(func() { fired = true })

	if _, err := svc.SetFactor(context.Background(), 120); err != nil {
		t.Fatalf("SetFactor: %v", err)
	}
	if !fired {
		t.Error("change callback did not fire")
	}

	// A failed change must not fire the callback.
	fired = false
	db.failCardUpdate = true
	until := start.Add(time.Hour)
	c := entities.NewCard(1, 1, start)
	c.WaitingUntil = &until
	db.addCard(c)
	if _, err := svc.SetFactor(context.Background(), 240); err == nil {
		t.Fatal("expected failure")
	}
	if fired {
		t.Error("callback fired on a failed change")
	}
}

func TestStatusReportsPresets(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newAcceleratorFixture(start)

	status := svc.Status()
	if len(status.Presets) != 4 || status.Presets[3] != 10080 {
		t.Errorf("presets = %v", status.Presets)
	}
	if !status.Now.Equal(start) {
		t.Errorf("now = %v, want %v", status.Now, start)
	}
}

func TestSetDayOffsetShiftsNow(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newAcceleratorFixture(start)

	if _, err := svc.SetDayOffset(context.Background(), 10); err != nil {
		t.Fatalf("SetDayOffset: %v", err)
	}

	want := start.AddDate(0, 0, 10)
	if got := svc.Status().Now; !got.Equal(want) {
		t.Errorf("virtual now = %v, want %v", got, want)
	}
}
