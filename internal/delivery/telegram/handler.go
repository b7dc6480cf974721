package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/service"
)

type ReviewService interface {
	SubmitAnswer(ctx context.Context, userID int64, folderID *int64, cardID int64, correct bool) (*service.AnswerResult, error)
}

type FolderService interface {
	CreateFolder(ctx context.Context, userID int64, name string, date *time.Time, parentID *int64, alarmOn bool) (*entities.Folder, error)
	AddCardsToFolder(ctx context.Context, userID, folderID int64, itemIDs []int64) (int, error)
	CreateAutoFolders(ctx context.Context, userID int64, name string, itemIDs []int64, perDay int, startDate *time.Time, alarmOn bool) (*entities.Folder, []*entities.Folder, error)
	GetQueue(ctx context.Context, userID, folderID int64) ([]*entities.QueueItem, error)
	GetCounts(ctx context.Context, userID, folderID int64) (entities.FolderCounts, error)
	ListFolders(ctx context.Context, userID int64) ([]*service.FolderSummary, error)
	RestartFolder(ctx context.Context, userID, folderID int64) error
	Unenroll(ctx context.Context, userID, cardID int64) error
}

type AlarmService interface {
	SetAlarmActive(ctx context.Context, userID, folderID int64, active bool) error
}

type WrongAnswerService interface {
	List(ctx context.Context, userID int64, includeCompleted bool) ([]*entities.WrongAnswerEntry, error)
	CountAvailable(ctx context.Context, userID int64) (int, error)
	GenerateQuiz(ctx context.Context, userID int64) ([]*entities.WrongAnswerQuizItem, error)
	AnswerQuiz(ctx context.Context, userID int64, optionIndex int) (correct, completed bool, err error)
	NextQuestion(userID int64) *entities.WrongAnswerQuizItem
}

type StreakService interface {
	GetStreakInfo(ctx context.Context, userID int64) (*entities.StreakInfo, error)
}

type AcceleratorService interface {
	SetFactor(ctx context.Context, factor int) (*service.RecalcReport, error)
	SetDayOffset(ctx context.Context, days int) (*service.RecalcReport, error)
	Status() service.TimeStatus
}

// Handler drives the study bot: folder study, wrong-answer quizzes, streaks
// and the time-control commands used during testing.
type Handler struct {
	bot         *tgbotapi.BotAPI
	logger      *zap.Logger
	reviews     ReviewService
	folders     FolderService
	alarms      AlarmService
	wrong       WrongAnswerService
	streaks     StreakService
	accelerator AcceleratorService
}

func NewHandler(
	bot *tgbotapi.BotAPI,
	logger *zap.Logger,
	reviews ReviewService,
	folders FolderService,
	alarms AlarmService,
	wrong WrongAnswerService,
	streaks StreakService,
	accelerator AcceleratorService,
) *Handler {
	return &Handler{
		bot:         bot,
		logger:      logger,
		reviews:     reviews,
		folders:     folders,
		alarms:      alarms,
		wrong:       wrong,
		streaks:     streaks,
		accelerator: accelerator,
	}
}

func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			h.handleUpdate(ctx, update)
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.logger.Debug("callback received",
			zap.Int64("user_id", update.CallbackQuery.From.ID),
			zap.String("data", update.CallbackQuery.Data),
		)
		h.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	h.logger.Debug("update received",
		zap.Int64("chat_id", update.Message.Chat.ID),
		zap.String("text", update.Message.Text),
	)

	if !update.Message.IsCommand() {
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	args := update.Message.CommandArguments()

	switch update.Message.Command() {
	case "start":
		h.send(tgbotapi.NewMessage(chatID, msgWelcome))
	case "streak":
		h.handleStreak(ctx, chatID, userID)
	case "newfolder":
		h.handleNewFolder(ctx, chatID, userID, args)
	case "autofolders":
		h.handleAutoFolders(ctx, chatID, userID, args)
	case "folders":
		h.handleFolders(ctx, chatID, userID)
	case "add":
		h.handleAdd(ctx, chatID, userID, args)
	case "study":
		h.handleStudy(ctx, chatID, userID, args)
	case "restart":
		h.handleRestart(ctx, chatID, userID, args)
	case "remove":
		h.handleRemove(ctx, chatID, userID, args)
	case "alarm":
		h.handleAlarm(ctx, chatID, userID, args)
	case "wrong":
		h.handleWrongList(ctx, chatID, userID)
	case "quiz":
		h.handleQuiz(ctx, chatID, userID)
	case "time":
		h.handleTimeStatus(chatID)
	case "factor":
		h.handleFactor(ctx, chatID, args)
	case "offset":
		h.handleOffset(ctx, chatID, args)
	default:
		h.send(tgbotapi.NewMessage(chatID, msgUnknownCommand))
	}
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		h.logger.Error("failed to send telegram message", zap.Error(err))
	}
}
