package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
)

// Notifier delivers folder alarms over Telegram. User ids double as chat ids.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
}

func NewNotifier(token string, logger *zap.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	logger.Info("telegram notifier ready", zap.String("bot", bot.Self.UserName))
	return &Notifier{bot: bot, logger: logger}, nil
}

// NewNotifierFromBot wraps an already-authorized bot, so the notifier and
// the command handler can share one API session.
func NewNotifierFromBot(bot *tgbotapi.BotAPI, logger *zap.Logger) *Notifier {
	return &Notifier{bot: bot, logger: logger}
}

// NotifyFolderAlarm sends the study reminder for one folder.
func (n *Notifier) NotifyFolderAlarm(_ context.Context, userID int64, folder *entities.Folder, remaining int) error {
	text := fmt.Sprintf("📚 %s: %d card(s) left to review today.", folder.Name, remaining)

	msg := tgbotapi.NewMessage(userID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send alarm message: %w", err)
	}

	n.logger.Debug("alarm sent",
		zap.Int64("user_id", userID),
		zap.Int64("folder_id", folder.ID),
	)
	return nil
}
