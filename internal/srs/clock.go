package srs

import (
	"errors"
	"sync"
	"time"
)

// Acceleration and offset bounds. Factor 10080 compresses one week into one
// minute; the offset range covers roughly ten years in either direction.
const (
	MinFactor    = 1
	MaxFactor    = 10080
	MinDayOffset = -3650
	MaxDayOffset = 3650
)

var (
	ErrFactorOutOfRange = errors.New("acceleration factor out of range")
	ErrOffsetOutOfRange = errors.New("day offset out of range")
)

// Clock is virtual time: wall time shifted by a global day offset, with
// durations compressed by a global acceleration factor. Injected everywhere
// instead of calling time.Now directly so tests can drive time manually.
type Clock interface {
	Now() time.Time
	Accelerate(d time.Duration) time.Duration
	Factor() int
	DayOffset() int
}

// TimeKeeper is the process-wide Clock implementation. Factor and offset are
// mutable and shared by all users; changes are guarded by the controller
// service, which recomputes every pending timer before exposing them.
type TimeKeeper struct {
	mu        sync.RWMutex
	factor    int
	dayOffset int
	nowFunc   func() time.Time
}

func NewTimeKeeper() *TimeKeeper {
	return &TimeKeeper{factor: 1, nowFunc: time.Now}
}

// NewTimeKeeperWithNow builds a TimeKeeper over a custom wall-time source.
func NewTimeKeeperWithNow(now func() time.Time) *TimeKeeper {
	return &TimeKeeper{factor: 1, nowFunc: now}
}

// Now returns wall time plus the configured day offset.
func (k *TimeKeeper) Now() time.Time {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.nowFunc().AddDate(0, 0, k.dayOffset)
}

// Accelerate compresses d by the current factor, floored at one second.
func (k *TimeKeeper) Accelerate(d time.Duration) time.Duration {
	k.mu.RLock()
	factor := k.factor
	k.mu.RUnlock()

	accelerated := d / time.Duration(factor)
	if accelerated < time.Second {
		return time.Second
	}
	return accelerated
}

func (k *TimeKeeper) Factor() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.factor
}

func (k *TimeKeeper) DayOffset() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.dayOffset
}

// SetFactor validates and applies a new acceleration factor.
// Callers must follow up with a full timer recalculation.
func (k *TimeKeeper) SetFactor(factor int) error {
	if factor < MinFactor || factor > MaxFactor {
		return ErrFactorOutOfRange
	}
	k.mu.Lock()
	k.factor = factor
	k.mu.Unlock()
	return nil
}

// SetDayOffset validates and applies a new day offset.
func (k *TimeKeeper) SetDayOffset(days int) error {
	if days < MinDayOffset || days > MaxDayOffset {
		return ErrOffsetOutOfRange
	}
	k.mu.Lock()
	k.dayOffset = days
	k.mu.Unlock()
	return nil
}
