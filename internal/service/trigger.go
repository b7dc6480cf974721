package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/srs"
)

// Sweep cadence bands: virtual time passing faster needs finer wall-clock
// granularity, or accelerated deadlines slip between polls.
var sweepBands = []struct {
	maxFactor int // exclusive upper bound; the last band is open-ended
	interval  time.Duration
}{
	{60, 10 * time.Minute},
	{360, 30 * time.Second},
	{1440, 15 * time.Second},
	{0, 5 * time.Second},
}

// SweepInterval maps an acceleration factor to the sweep cadence.
func SweepInterval(factor int) time.Duration {
	for _, band := range sweepBands {
		if band.maxFactor == 0 || factor < band.maxFactor {
			return band.interval
		}
	}
	return sweepBands[len(sweepBands)-1].interval
}

// TriggerService owns the periodic jobs: the six-hourly alarm refresh, the
// midnight rollup, and the dynamic-cadence overdue sweep. The sweep runs on
// its own supervised loop because its interval changes with the
// acceleration factor; the calendar jobs stay on cron.
type TriggerService struct {
	cron    *cron.Cron
	clock   srs.Clock
	overdue *OverdueService
	alarms  *AlarmService
	streaks *StreakService
	wrong   *WrongAnswerService
	loc     *time.Location
	logger  *zap.Logger

	mu       sync.Mutex
	running  bool
	interval time.Duration
	retune   chan time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewTriggerService(
	clock srs.Clock,
	overdue *OverdueService,
	alarms *AlarmService,
	streaks *StreakService,
	wrong *WrongAnswerService,
	loc *time.Location,
	logger *zap.Logger,
) *TriggerService {
	return &TriggerService{
		cron:    cron.New(cron.WithLocation(loc)),
		clock:   clock,
		overdue: overdue,
		alarms:  alarms,
		streaks: streaks,
		wrong:   wrong,
		loc:     loc,
		logger:  logger,
		retune:  make(chan time.Duration, 1),
	}
}

// Start registers the calendar jobs and launches the sweep loop.
func (s *TriggerService) Start(ctx context.Context) error {
	// Alarm slots and the post-midnight rollup, in the configured zone.
	if _, err := s.cron.AddFunc("0 0,6,12,18 * * *", func() { s.sixHourlyNotify(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("5 0 * * *", func() { s.midnightRollup(ctx) }); err != nil {
		return err
	}
	// Meta-schedule: re-check the sweep cadence even without an explicit
	// factor-change signal.
	if _, err := s.cron.AddFunc("*/10 * * * *", s.RefreshSweepFrequency); err != nil {
		return err
	}
	s.cron.Start()

	s.mu.Lock()
	s.running = true
	s.interval = SweepInterval(s.clock.Factor())
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.sweepLoop(ctx)

	s.logger.Info("periodic triggers started",
		zap.Duration("sweep_interval", s.interval))
	return nil
}

// Stop halts cron and the sweep loop, waiting for an in-flight sweep.
func (s *TriggerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	<-done
}

// RefreshSweepFrequency re-derives the sweep cadence from the current
// factor and retunes the loop when it changed. Safe to call from any
// goroutine; also invoked by the accelerator on every factor change.
func (s *TriggerService) RefreshSweepFrequency() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	interval := SweepInterval(s.clock.Factor())
	if interval == s.interval {
		return
	}
	s.interval = interval

	// Collapse bursts; the loop only needs the latest value.
	select {
	case s.retune <- interval:
	default:
		select {
		case <-s.retune:
		default:
		}
		s.retune <- interval
	}

	s.logger.Info("sweep cadence retuned",
		zap.Int("factor", s.clock.Factor()),
		zap.Duration("interval", interval))
}

func (s *TriggerService) sweepLoop(ctx context.Context) {
	defer close(s.done)

	s.mu.Lock()
	ticker := time.NewTicker(s.interval)
	s.mu.Unlock()
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case interval := <-s.retune:
			ticker.Reset(interval)
		case <-ticker.C:
			if _, err := s.overdue.Sweep(ctx); err != nil {
				s.logger.Error("overdue sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *TriggerService) sixHourlyNotify(ctx context.Context) {
	if _, err := s.alarms.RefreshFolderAlarms(ctx); err != nil {
		s.logger.Error("six-hourly alarm refresh failed", zap.Error(err))
	}
}

// midnightRollup closes out the previous local day: streaks under threshold
// reset, the day's folder alarms mute, and stale wrong-answer entries
// expire.
func (s *TriggerService) midnightRollup(ctx context.Context) {
	yesterday := srs.StartOfDay(s.clock.Now(), s.loc).AddDate(0, 0, -1)

	if _, err := s.streaks.RolloverDay(ctx, yesterday); err != nil {
		s.logger.Error("streak rollup failed", zap.Error(err))
	}
	if _, err := s.alarms.MuteForDate(ctx, yesterday); err != nil {
		s.logger.Error("alarm mute failed", zap.Error(err))
	}
	if _, err := s.wrong.Sweep(ctx); err != nil {
		s.logger.Error("wrong-answer expiry failed", zap.Error(err))
	}
}
