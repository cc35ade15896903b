package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/paycrm/offerbot/internal/ai"
	"github.com/paycrm/offerbot/internal/config"
	"github.com/paycrm/offerbot/internal/service"
	"github.com/paycrm/offerbot/internal/store"
	"github.com/paycrm/offerbot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	offerStore, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open offer store", zap.Error(err))
	}
	defer offerStore.Close()

	if err := offerStore.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate offer store", zap.Error(err))
	}
	logger.Info("database initialised", zap.String("path", cfg.DBPath))

	interpreter := ai.NewInterpreter(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
	dispatcher := service.New(offerStore, interpreter, logger)

	bot, err := telegram.NewBot(cfg.BotToken, dispatcher, logger)
	if err != nil {
		logger.Fatal("failed to create telegram bot", zap.Error(err))
	}

	logger.Info("starting offer bot", zap.String("model", cfg.OpenAIModel))
	if err := bot.Run(ctx); err != nil {
		logger.Fatal("bot stopped with error", zap.Error(err))
	}
	logger.Info("offer bot stopped gracefully")
}
