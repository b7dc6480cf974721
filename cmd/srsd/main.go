package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/config"
	"github.com/vocaloop/srs-core/internal/delivery/telegram"
	"github.com/vocaloop/srs-core/internal/infra/postgres"
	pgrepo "github.com/vocaloop/srs-core/internal/infra/postgres/repository"
	"github.com/vocaloop/srs-core/internal/logger"
	"github.com/vocaloop/srs-core/internal/queue"
	"github.com/vocaloop/srs-core/internal/repository"
	"github.com/vocaloop/srs-core/internal/service"
	"github.com/vocaloop/srs-core/internal/srs"
	"github.com/vocaloop/srs-core/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zapLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		zapLogger.Fatal("resolve timezone", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database.
	pool, err := postgres.NewPool(ctx, cfg.DB.DSN(), postgres.PoolConfig{
		MaxConns:        int32(cfg.DB.MaxConnections),
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		zapLogger.Fatal("connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		zapLogger.Fatal("apply schema", zap.Error(err))
	}

	// Repositories.
	cardRepo := pgrepo.NewCardRepository(pool)
	folderRepo := pgrepo.NewFolderRepository(pool)
	wrongRepo := pgrepo.NewWrongAnswerRepository(pool)
	statRepo := pgrepo.NewDailyStatRepository(pool)
	streakRepo := pgrepo.NewStreakRepository(pool)

	vocabRepo, err := repository.NewVocabRepository(cfg.VocabJSONPath)
	if err != nil {
		zapLogger.Fatal("load vocabulary", zap.Error(err))
	}

	transactor := postgres.NewTransactor(pool)
	stores := service.Stores{
		Cards:        cardRepo,
		Folders:      folderRepo,
		WrongAnswers: wrongRepo,
		DailyStats:   statRepo,
		Streaks:      streakRepo,
	}
	bind := func(tx pgx.Tx) service.Stores {
		return service.Stores{
			Cards:        cardRepo.WithTx(tx),
			Folders:      folderRepo.WithTx(tx),
			WrongAnswers: wrongRepo.WithTx(tx),
			DailyStats:   statRepo.WithTx(tx),
			Streaks:      streakRepo.WithTx(tx),
		}
	}

	// Clock and delivery.
	keeper := srs.NewTimeKeeper()

	var bot *tgbotapi.BotAPI
	var notifier service.Notifier = service.NopNotifier{Logger: zapLogger}
	if cfg.TelegramAPIToken != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.TelegramAPIToken)
		if err != nil {
			zapLogger.Fatal("init telegram bot", zap.Error(err))
		}
		notifier = telegram.NewNotifierFromBot(bot, zapLogger)
	}

	// Services. The delayed queue and the alarm service reference each
	// other, so the queue handler closes over a variable assigned below.
	var alarmSvc *service.AlarmService
	delayQueue := queue.NewDelayedQueue(func(ctx context.Context, job queue.Job) {
		alarmSvc.HandleAlarmJob(ctx, job)
	}, zapLogger)
	defer delayQueue.Stop()

	alarmSvc = service.NewAlarmService(folderRepo, delayQueue, notifier, keeper, loc, zapLogger)
	sessions := storage.NewQuizSessionStore()

	reviewSvc := service.NewReviewService(transactor, bind, vocabRepo, keeper, loc, cfg.SRS.RequiredDailyQuizzes, zapLogger)
	folderSvc := service.NewFolderService(transactor, bind, stores, vocabRepo, keeper, loc, zapLogger)
	wrongSvc := service.NewWrongAnswerService(wrongRepo, vocabRepo, sessions, keeper, cfg.SRS.WrongAnswerQuizSize, zapLogger)
	overdueSvc := service.NewOverdueService(transactor, bind, keeper, cfg.SRS.RecalcBatchSize, zapLogger)
	streakSvc := service.NewStreakService(streakRepo, keeper, loc, cfg.SRS.RequiredDailyQuizzes, zapLogger)
	acceleratorSvc := service.NewAcceleratorService(keeper, transactor, bind, cfg.SRS.RecalcBatchSize, zapLogger)

	triggerSvc := service.NewTriggerService(keeper, overdueSvc, alarmSvc, streakSvc, wrongSvc, loc, zapLogger)
	acceleratorSvc.OnChange(triggerSvc.RefreshSweepFrequency)

	if err := triggerSvc.Start(ctx); err != nil {
		zapLogger.Fatal("start periodic triggers", zap.Error(err))
	}
	defer triggerSvc.Stop()

	if bot != nil {
		handler := telegram.NewHandler(bot, zapLogger, reviewSvc, folderSvc, alarmSvc, wrongSvc, streakSvc, acceleratorSvc)
		go func() {
			if err := handler.Run(ctx); err != nil && ctx.Err() == nil {
				zapLogger.Error("telegram handler stopped", zap.Error(err))
			}
		}()
	}

	zapLogger.Info("srs core running",
		zap.String("env", cfg.Env),
		zap.String("timezone", cfg.Timezone),
	)

	<-ctx.Done()
	zapLogger.Info("shutting down")
}
