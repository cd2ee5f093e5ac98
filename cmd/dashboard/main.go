package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/onemine/internal/cli"
	"github.com/abelzeko/onemine/internal/config"
	"github.com/abelzeko/onemine/internal/database"
	"github.com/abelzeko/onemine/internal/logging"
	"github.com/abelzeko/onemine/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so tables on stdout stay clean
	log := logging.NewWithOutput(cfg.LogLevel, os.Stderr)
	log.Debugf("Configuration loaded from %q\n%s", cfg.EnvFile, config.Debug())

	opener := repository.NewSQLServerOpener(database.NewConnector(cfg, log))

	var history repository.HistoryRepository
	historyRepo, err := repository.NewSQLiteHistoryRepository(cfg.HistoryDB, log)
	if err != nil {
		log.Warnf("Sync history disabled: %v", err)
	} else {
		history = historyRepo
		defer historyRepo.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(cli.NewEnv(cfg, log, opener, history))
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		if historyRepo != nil {
			historyRepo.Close()
		}
		os.Exit(1)
	}
}
