package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/queue"
	"github.com/vocaloop/srs-core/internal/srs"
)

// alarmSlotHours are the four fixed local reminder times.
var alarmSlotHours = []int{0, 6, 12, 18}

// NextAlarmSlot returns the next fixed slot strictly after now. Past the
// last slot of the day it rolls to the next day's first slot.
func NextAlarmSlot(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	day := srs.StartOfDay(local, loc)

	for _, hour := range alarmSlotHours {
		slot := day.Add(time.Duration(hour) * time.Hour)
		if slot.After(local) {
			return slot
		}
	}
	return day.AddDate(0, 0, 1)
}

// AlarmPayload rides the delayed queue from scheduling to delivery.
type AlarmPayload struct {
	FolderID int64
	UserID   int64
}

// AlarmService keeps folder reminders pointed at the next alarm slot and
// delivers them when the delayed queue fires.
type AlarmService struct {
	folders  FolderStore
	queue    DelayQueue
	notifier Notifier
	clock    srs.Clock
	loc      *time.Location
	logger   *zap.Logger
}

func NewAlarmService(
	folders FolderStore,
	delayQueue DelayQueue,
	notifier Notifier,
	clock srs.Clock,
	loc *time.Location,
	logger *zap.Logger,
) *AlarmService {
	return &AlarmService{
		folders:  folders,
		queue:    delayQueue,
		notifier: notifier,
		clock:    clock,
		loc:      loc,
		logger:   logger,
	}
}

// RefreshFolderAlarms points every alarm-active folder dated today that
// still has unlearned items at the next slot, and schedules its delivery.
// Re-running before the slot fires just replaces the pending job.
func (s *AlarmService) RefreshFolderAlarms(ctx context.Context) (int, error) {
	now := s.clock.Now()
	today := srs.StartOfDay(now, s.loc)

	candidates, err := s.folders.ListAlarmCandidates(ctx, today)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, folder := range candidates {
		slot := NextAlarmSlot(now, s.loc)
		if err := s.folders.SetNextAlarm(ctx, folder.ID, &slot); err != nil {
			return refreshed, err
		}

		s.queue.Enqueue(
			alarmKey(folder.ID),
			AlarmPayload{FolderID: folder.ID, UserID: folder.UserID},
			slot.Sub(now),
		)
		refreshed++
	}

	if refreshed > 0 {
		s.logger.Info("folder alarms refreshed", zap.Int("count", refreshed))
	}
	return refreshed, nil
}

// HandleAlarmJob is the delayed-queue worker callback. A folder finished or
// muted between scheduling and firing is silently skipped.
func (s *AlarmService) HandleAlarmJob(ctx context.Context, job queue.Job) {
	payload, ok := job.Payload.(AlarmPayload)
	if !ok {
		s.logger.Error("unexpected alarm payload", zap.String("key", job.Key))
		return
	}

	folder, err := s.folders.Get(ctx, payload.FolderID)
	if err != nil {
		s.logger.Warn("alarm folder lookup failed",
			zap.Int64("folder_id", payload.FolderID), zap.Error(err))
		return
	}
	if !folder.AlarmActive {
		return
	}

	remaining, err := s.folders.CountUnlearned(ctx, folder.ID)
	if err != nil {
		s.logger.Warn("alarm unlearned count failed",
			zap.Int64("folder_id", folder.ID), zap.Error(err))
		return
	}
	if remaining == 0 {
		return
	}

	if err := s.notifier.NotifyFolderAlarm(ctx, payload.UserID, folder, remaining); err != nil {
		s.logger.Warn("alarm delivery failed",
			zap.Int64("folder_id", folder.ID),
			zap.Int64("user_id", payload.UserID),
			zap.Error(err),
		)
	}
}

// SetAlarmActive toggles a folder's reminders.
func (s *AlarmService) SetAlarmActive(ctx context.Context, userID, folderID int64, active bool) error {
	folder, err := s.folders.Get(ctx, folderID)
	if err != nil {
		return fmt.Errorf("%w: folder %d", ErrNotFound, folderID)
	}
	if folder.UserID != userID {
		return fmt.Errorf("%w: folder %d", ErrForbidden, folderID)
	}
	return s.folders.SetAlarmActive(ctx, folderID, active)
}

// MuteForDate clears the alarms of every folder dated on the given day.
// Called by the midnight rollup for the day that just ended.
func (s *AlarmService) MuteForDate(ctx context.Context, date time.Time) (int64, error) {
	return s.folders.MuteAlarmsForDate(ctx, date)
}

func alarmKey(folderID int64) string {
	return fmt.Sprintf("folder-alarm:%d", folderID)
}

// NopNotifier logs alarms instead of delivering them. Used when no delivery
// channel is configured.
type NopNotifier struct {
	Logger *zap.Logger
}

func (n NopNotifier) NotifyFolderAlarm(_ context.Context, userID int64, folder *entities.Folder, remaining int) error {
	n.Logger.Info("folder alarm (delivery disabled)",
		zap.Int64("user_id", userID),
		zap.Int64("folder_id", folder.ID),
		zap.Int("remaining", remaining),
	)
	return nil
}
