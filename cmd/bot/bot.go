package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/api"
	"github.com/abelzeko/onemine/internal/config"
	"github.com/abelzeko/onemine/internal/database"
	"github.com/abelzeko/onemine/internal/integration/network"
	"github.com/abelzeko/onemine/internal/integration/openai"
	"github.com/abelzeko/onemine/internal/logging"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/syncstatus"
	"github.com/abelzeko/onemine/internal/usecases"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.LogFatal(logrus.StandardLogger(), "Failed to load configuration", err)
	}
	log := logging.New(cfg.LogLevel)
	log.Info("Starting OneMine bot...")

	// Get the bot token from the environment
	if cfg.TelegramToken == "" {
		logging.LogFatal(log, "Cannot start bot", errors.New("TELEGRAM_BOT_TOKEN is not set"))
	}

	// Initialize repositories
	history, err := repository.NewSQLiteHistoryRepository(cfg.HistoryDB, log)
	if err != nil {
		logging.LogFatal(log, "Failed to initialize history repository", err)
	}
	defer history.Close()
	opener := repository.NewSQLServerOpener(database.NewConnector(cfg, log))

	handler := &api.Handler{
		Machines: usecases.NewMachineUseCase(opener, log),
		Cartirs:  usecases.NewCartirUseCase(opener, history, syncstatus.NewFile(cfg.StatusFile), log),
		Tags:     usecases.NewTagUseCase(opener, log),
		History:  usecases.NewHistoryUseCase(history),
		Pinger:   network.NewPinger(log),
		Log:      log,
		Timeout:  cfg.QueryTimeout,
	}

	// Free-text chat is optional
	if cfg.OpenAIAPIKey != "" {
		openAIService, err := openai.NewOpenAIService(cfg.OpenAIAPIKey, log)
		if err != nil {
			logging.LogFatal(log, "Failed to initialize OpenAI service", err)
		}
		handler.Interpreter = openAIService
	} else {
		log.Info("OPENAI_API_KEY is not set, free-text messages get the help hint")
	}

	// Initialize Telegram bot
	telegramBot, err := api.NewTelegramBot(cfg.TelegramToken, handler, log)
	if err != nil {
		logging.LogFatal(log, "Failed to initialize Telegram bot", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the bot
	telegramBot.Start(ctx)
}
