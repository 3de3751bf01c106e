package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"survey_compliance_bot/internal/app"
	"survey_compliance_bot/internal/dispatch"
	"survey_compliance_bot/internal/infra/config"
	idb "survey_compliance_bot/internal/infra/database"
	"survey_compliance_bot/internal/infra/httpapi"
	"survey_compliance_bot/internal/infra/logger"
	"survey_compliance_bot/internal/infra/scheduler"
	"survey_compliance_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Log.WithField("component", "main")
	mainLogger.WithField("environment", cfg.Environment).Info("Survey compliance bot starting")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		mainLogger.Fatalf("Invalid TIMEZONE %q: %v", cfg.Timezone, err)
	}

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established")

	userRepo := idb.NewPostgresUserRepository(db)
	surveyRepo := idb.NewPostgresSurveyRepository(db)
	penaltyRepo := idb.NewPostgresPenaltyRepository(db)
	chatRepo := idb.NewPostgresChatRepository(db)

	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := logger.Log.WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(map[string]any{
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
				})
			}
			entry.Error("Bot update failed")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("Could not create Telegram bot: %v", err)
	}

	queue := dispatch.New(dispatch.Config{
		Workers:    cfg.QueueWorkers,
		Capacity:   cfg.QueueCapacity,
		RatePerSec: cfg.QueueRatePerSec,
		BulkDelay:  cfg.BulkSendDelay,
	}, telegram.NewTelebotAdapter(bot), logger.Log.WithField("component", "dispatch"))
	queue.Start()

	moderationService := app.NewModerationService(
		chatRepo, surveyRepo, userRepo, penaltyRepo, queue,
		logger.Log.WithField("component", "moderation"), loc,
	)
	userService := app.NewUserService(userRepo, penaltyRepo,
		logger.Log.WithField("component", "users"), cfg.CreatorTelegramID)
	chatService := app.NewChatService(chatRepo, logger.Log.WithField("component", "chats"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handlerLogger := logger.Log.WithField("component", "handlers")
	telegram.RegisterBotCommands(ctx, bot, userService, penaltyRepo, handlerLogger)
	telegram.RegisterMemberHandlers(ctx, bot, userService, handlerLogger)
	telegram.RegisterAdminHandlers(ctx, bot, telegram.AdminDeps{
		Chats:             chatService,
		Users:             userService,
		Roster:            userRepo,
		Penalties:         penaltyRepo,
		CreatorTelegramID: cfg.CreatorTelegramID,
	}, handlerLogger)
	mainLogger.Info("Bot handlers registered")

	surveyScheduler := scheduler.NewSurveyScheduler(
		moderationService,
		logger.Log.WithField("component", "scheduler"),
		loc,
		cfg.CronSpecAnnounceSweep,
		cfg.CronSpecDeadlineReminder,
	)
	if err := surveyScheduler.Start(); err != nil {
		mainLogger.Fatalf("Could not start scheduler: %v", err)
	}

	server := httpapi.NewServer(moderationService, cfg.WebhookSecret, cfg.ListenAddr,
		logger.Log.WithField("component", "httpapi"))
	go func() {
		if err := server.Start(); err != nil {
			mainLogger.Fatalf("Webhook server failed: %v", err)
		}
	}()

	go bot.Start()
	mainLogger.Info("Application setup complete")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application")
	cancel()
	bot.Stop()
	surveyScheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Error("Webhook server shutdown failed")
	}

	queue.Stop()
	mainLogger.Info("Application shut down gracefully")
}
