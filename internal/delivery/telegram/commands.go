package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
)

func (h *Handler) handleStreak(ctx context.Context, chatID, userID int64) {
	info, err := h.streaks.GetStreakInfo(ctx, userID)
	if err != nil {
		h.logger.Error("failed to get streak info", zap.Int64("user_id", userID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Streak unavailable right now."))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔥 Streak: %d day(s)\n", info.Streak)
	fmt.Fprintf(&sb, "Today: %d/%d quizzes\n", info.DailyQuizCount, info.RequiredDaily)
	if info.CompletedToday {
		sb.WriteString("✅ Today's goal reached!")
	} else {
		fmt.Fprintf(&sb, "%d more to keep the streak.", info.RemainingForStreak)
	}
	if info.Bonus != entities.BonusNone {
		fmt.Fprintf(&sb, "\n🏅 Bonus tier: %s", info.Bonus)
	}

	h.send(tgbotapi.NewMessage(chatID, sb.String()))
}

func (h *Handler) handleNewFolder(ctx context.Context, chatID, userID int64, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /newfolder <name>"))
		return
	}

	folder, err := h.folders.CreateFolder(ctx, userID, name, nil, nil, true)
	if err != nil {
		h.logger.Error("failed to create folder", zap.Int64("user_id", userID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not create the folder."))
		return
	}

	h.send(tgbotapi.NewMessage(chatID,
		fmt.Sprintf("📁 Folder %q created (id %d).", folder.Name, folder.ID)))
}

func (h *Handler) handleAutoFolders(ctx context.Context, chatID, userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /autofolders <name> <per day> <item id> [item id…]"))
		return
	}

	name := fields[0]
	perDay, err := strconv.Atoi(fields[1])
	if err != nil || perDay < 1 {
		h.send(tgbotapi.NewMessage(chatID, "Items per day must be a positive number."))
		return
	}

	itemIDs := make([]int64, 0, len(fields)-2)
	for _, f := range fields[2:] {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Item id %q is not a number.", f)))
			return
		}
		itemIDs = append(itemIDs, id)
	}

	parent, children, err := h.folders.CreateAutoFolders(ctx, userID, name, itemIDs, perDay, nil, true)
	if err != nil {
		h.logger.Warn("failed to create auto folders",
			zap.Int64("user_id", userID), zap.String("name", name), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not split the items into daily folders."))
		return
	}

	h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"📅 Created %q (id %d) with %d daily folder(s), %d item(s) total.",
		parent.Name, parent.ID, len(children), len(itemIDs))))
}

func (h *Handler) handleFolders(ctx context.Context, chatID, userID int64) {
	summaries, err := h.folders.ListFolders(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list folders", zap.Int64("user_id", userID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not load your folders."))
		return
	}
	if len(summaries) == 0 {
		h.send(tgbotapi.NewMessage(chatID, "No folders yet. Create one with /newfolder."))
		return
	}

	var sb strings.Builder
	sb.WriteString("📂 Your folders:\n\n")
	for _, s := range summaries {
		icon := "🔕"
		if s.Folder.AlarmActive {
			icon = "🔔"
		}
		fmt.Fprintf(&sb, "%s #%d %s (%s): %d/%d learned\n",
			icon, s.Folder.ID, s.Folder.Name,
			s.Folder.Date.Format("Jan 2"),
			s.Counts.Learned, s.Counts.Total)
	}
	h.send(tgbotapi.NewMessage(chatID, sb.String()))
}

func (h *Handler) handleAdd(ctx context.Context, chatID, userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /add <folder id> <item id> [item id…]"))
		return
	}

	folderID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		h.send(tgbotapi.NewMessage(chatID, "Folder id must be a number."))
		return
	}

	itemIDs := make([]int64, 0, len(fields)-1)
	for _, f := range fields[1:] {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Item id %q is not a number.", f)))
			return
		}
		itemIDs = append(itemIDs, id)
	}

	added, err := h.folders.AddCardsToFolder(ctx, userID, folderID, itemIDs)
	if err != nil {
		h.logger.Warn("failed to add cards",
			zap.Int64("user_id", userID), zap.Int64("folder_id", folderID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not add the items (already enrolled?)."))
		return
	}

	h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("➕ Added %d item(s).", added)))
}

func (h *Handler) handleStudy(ctx context.Context, chatID, userID int64, args string) {
	folderID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /study <folder id>"))
		return
	}
	h.sendNextStudyCard(ctx, chatID, userID, folderID)
}

// sendNextStudyCard shows the first unlearned card of the folder with the
// recall buttons, or the completion message when the queue is empty.
func (h *Handler) sendNextStudyCard(ctx context.Context, chatID, userID, folderID int64) {
	queue, err := h.folders.GetQueue(ctx, userID, folderID)
	if err != nil {
		h.logger.Warn("failed to load study queue",
			zap.Int64("user_id", userID), zap.Int64("folder_id", folderID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not load the folder queue."))
		return
	}
	if len(queue) == 0 {
		text := msgNothingToStudy
		if counts, err := h.folders.GetCounts(ctx, userID, folderID); err == nil {
			text = fmt.Sprintf("%s\nLearned %d of %d.", msgNothingToStudy, counts.Learned, counts.Total)
		}
		h.send(tgbotapi.NewMessage(chatID, text))
		return
	}

	item := queue[0]
	text := fmt.Sprintf("🃏 Do you remember this one?\n\n%s", studyPrompt(item))

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ I knew it", studyCallback(folderID, item.CardID, true)),
			tgbotapi.NewInlineKeyboardButtonData("❌ I forgot", studyCallback(folderID, item.CardID, false)),
		),
	)
	h.send(msg)
}

func studyPrompt(item *entities.QueueItem) string {
	if item.Vocab != nil {
		return fmt.Sprintf("<b>%s</b> (%s)", item.Vocab.Lemma, item.Vocab.Level)
	}
	return fmt.Sprintf("item #%d", item.ItemID)
}

func (h *Handler) handleRestart(ctx context.Context, chatID, userID int64, args string) {
	folderID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /restart <folder id>"))
		return
	}

	if err := h.folders.RestartFolder(ctx, userID, folderID); err != nil {
		h.logger.Warn("failed to restart folder",
			zap.Int64("user_id", userID), zap.Int64("folder_id", folderID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not restart the folder."))
		return
	}
	h.send(tgbotapi.NewMessage(chatID, "🔄 Folder restarted, everything is unlearned again."))
}

func (h *Handler) handleRemove(ctx context.Context, chatID, userID int64, args string) {
	cardID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /remove <card id>"))
		return
	}

	if err := h.folders.Unenroll(ctx, userID, cardID); err != nil {
		h.logger.Warn("failed to unenroll card",
			zap.Int64("user_id", userID), zap.Int64("card_id", cardID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not remove the card."))
		return
	}
	h.send(tgbotapi.NewMessage(chatID, "🗑 Card removed."))
}

func (h *Handler) handleAlarm(ctx context.Context, chatID, userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /alarm <folder id> on|off"))
		return
	}
	folderID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		h.send(tgbotapi.NewMessage(chatID, "Folder id must be a number."))
		return
	}

	active := fields[1] == "on"
	if err := h.alarms.SetAlarmActive(ctx, userID, folderID, active); err != nil {
		h.logger.Warn("failed to toggle folder alarm",
			zap.Int64("user_id", userID), zap.Int64("folder_id", folderID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not change the alarm."))
		return
	}
	if active {
		h.send(tgbotapi.NewMessage(chatID, "🔔 Alarm on."))
	} else {
		h.send(tgbotapi.NewMessage(chatID, "🔕 Alarm off."))
	}
}

func (h *Handler) handleWrongList(ctx context.Context, chatID, userID int64) {
	entries, err := h.wrong.List(ctx, userID, false)
	if err != nil {
		h.logger.Error("failed to list wrong answers", zap.Int64("user_id", userID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not load missed items."))
		return
	}
	if len(entries) == 0 {
		h.send(tgbotapi.NewMessage(chatID, msgNoWrongAnswers))
		return
	}

	status := h.accelerator.Status()

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Missed items (%d):\n\n", len(entries))
	for _, e := range entries {
		icon := "⏳"
		switch e.Status(status.Now) {
		case entities.ReviewAvailable:
			icon = "🟢"
		case entities.ReviewOverdue:
			icon = "🔴"
		}
		fmt.Fprintf(&sb, "%s %s (attempt %d), review opens %s\n",
			icon, e.Lemma, e.Attempts, e.ReviewWindowStart.Format("Jan 2 15:04"))
	}
	if available, err := h.wrong.CountAvailable(ctx, userID); err == nil && available > 0 {
		fmt.Fprintf(&sb, "\n🟢 %d ready right now.", available)
	}
	sb.WriteString("\nUse /quiz to review the open ones.")

	h.send(tgbotapi.NewMessage(chatID, sb.String()))
}

func (h *Handler) handleQuiz(ctx context.Context, chatID, userID int64) {
	items, err := h.wrong.GenerateQuiz(ctx, userID)
	if err != nil {
		h.logger.Error("failed to generate quiz", zap.Int64("user_id", userID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not build the quiz."))
		return
	}
	if len(items) == 0 {
		h.send(tgbotapi.NewMessage(chatID, msgNoWrongAnswers))
		return
	}

	h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("📝 %d question(s). Let's go!", len(items))))
	h.sendQuizQuestion(chatID, items[0])
}

func (h *Handler) sendQuizQuestion(chatID int64, item *entities.WrongAnswerQuizItem) {
	text := fmt.Sprintf("❓ What does <b>%s</b> mean?", item.Lemma)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(item.Options))
	for i, option := range item.Options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(option, quizCallback(i)),
		))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.send(msg)
}

func (h *Handler) handleTimeStatus(chatID int64) {
	status := h.accelerator.Status()

	var sb strings.Builder
	fmt.Fprintf(&sb, "🕐 Virtual now: %s\n", status.Now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Factor: %d×, day offset: %+d\n", status.Factor, status.DayOffset)
	fmt.Fprintf(&sb, "Presets: %v\n", status.Presets)
	sb.WriteString("Use /factor <n> or /offset <days>.")

	h.send(tgbotapi.NewMessage(chatID, sb.String()))
}

func (h *Handler) handleFactor(ctx context.Context, chatID int64, args string) {
	factor, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /factor <n> (1 to 10080)"))
		return
	}

	report, err := h.accelerator.SetFactor(ctx, factor)
	if err != nil {
		h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ %v", err)))
		return
	}

	h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"⏩ Factor set to %d×. Recomputed %d of %d timers in %s.",
		report.Factor, report.Updated, report.Scanned, report.Elapsed.Round(time.Millisecond))))
}

func (h *Handler) handleOffset(ctx context.Context, chatID int64, args string) {
	days, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		h.send(tgbotapi.NewMessage(chatID, "Usage: /offset <days> (-3650 to 3650)"))
		return
	}

	report, err := h.accelerator.SetDayOffset(ctx, days)
	if err != nil {
		h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ %v", err)))
		return
	}

	h.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"📅 Day offset set to %+d. Recomputed %d of %d timers in %s.",
		report.DayOffset, report.Updated, report.Scanned, report.Elapsed.Round(time.Millisecond))))
}
