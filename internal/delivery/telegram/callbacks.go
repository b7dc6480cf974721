package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Callback data formats. Telegram caps callback data at 64 bytes, so the
// payloads stay terse.
const (
	studyCallbackPrefix = "st"
	quizCallbackPrefix  = "qz"
)

func studyCallback(folderID, cardID int64, correct bool) string {
	flag := 0
	if correct {
		flag = 1
	}
	return fmt.Sprintf("%s:%d:%d:%d", studyCallbackPrefix, folderID, cardID, flag)
}

func quizCallback(optionIndex int) string {
	return fmt.Sprintf("%s:%d", quizCallbackPrefix, optionIndex)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Ack first so the client stops its spinner even if handling fails.
	if _, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		h.logger.Debug("callback ack failed", zap.Error(err))
	}

	parts := strings.Split(cb.Data, ":")
	switch parts[0] {
	case studyCallbackPrefix:
		h.handleStudyCallback(ctx, cb, parts)
	case quizCallbackPrefix:
		h.handleQuizCallback(ctx, cb, parts)
	default:
		h.logger.Warn("unknown callback", zap.String("data", cb.Data))
	}
}

func (h *Handler) handleStudyCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, parts []string) {
	if len(parts) != 4 {
		return
	}
	folderID, err1 := strconv.ParseInt(parts[1], 10, 64)
	cardID, err2 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	correct := parts[3] == "1"

	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	result, err := h.reviews.SubmitAnswer(ctx, userID, &folderID, cardID, correct)
	if err != nil {
		h.logger.Warn("submit answer failed",
			zap.Int64("user_id", userID),
			zap.Int64("card_id", cardID),
			zap.Error(err),
		)
		h.send(tgbotapi.NewMessage(chatID, "❌ Could not record the answer."))
		return
	}

	// Drop the question's buttons so it cannot be answered twice.
	h.send(tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}))

	switch {
	case result.Mastered:
		h.send(tgbotapi.NewMessage(chatID, "🏆 Mastered! This card graduates."))
	case result.Status == "pass":
		h.send(tgbotapi.NewMessage(chatID,
			fmt.Sprintf("✅ Stage %d. Next review: %s.",
				result.Stage, result.NextReviewAt.Format("Jan 2 15:04"))))
	default:
		h.send(tgbotapi.NewMessage(chatID, "❌ Back to stage 0. It will come around tomorrow."))
	}

	h.sendNextStudyCard(ctx, chatID, userID, folderID)
}

func (h *Handler) handleQuizCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, parts []string) {
	if len(parts) != 2 {
		return
	}
	optionIndex, err := strconv.Atoi(parts[1])
	if err != nil {
		return
	}

	userID := cb.From.ID
	chatID := cb.Message.Chat.ID

	correct, completed, err := h.wrong.AnswerQuiz(ctx, userID, optionIndex)
	if err != nil {
		h.logger.Warn("quiz answer failed", zap.Int64("user_id", userID), zap.Error(err))
		h.send(tgbotapi.NewMessage(chatID, "❌ Quiz session expired. Start again with /quiz."))
		return
	}

	h.send(tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}))

	switch {
	case correct && completed:
		h.send(tgbotapi.NewMessage(chatID, "✅ Correct, review window cleared!"))
	case correct:
		h.send(tgbotapi.NewMessage(chatID, "✅ Correct! (The mandatory window is not open yet.)"))
	default:
		h.send(tgbotapi.NewMessage(chatID, "❌ Not quite. It stays on your missed list."))
	}

	if next := h.wrong.NextQuestion(userID); next != nil {
		h.sendQuizQuestion(chatID, next)
		return
	}
	h.send(tgbotapi.NewMessage(chatID, msgQuizDone))
}
