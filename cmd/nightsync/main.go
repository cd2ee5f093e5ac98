package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/abelzeko/onemine/internal/config"
	"github.com/abelzeko/onemine/internal/database"
	"github.com/abelzeko/onemine/internal/logging"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/syncstatus"
	"github.com/abelzeko/onemine/internal/timerange"
	"github.com/abelzeko/onemine/internal/usecases"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.LogFatal(logrus.StandardLogger(), "Failed to load configuration", err)
	}
	log := logging.New(cfg.LogLevel)
	log.Info("Starting night sync...")

	history, err := repository.NewSQLiteHistoryRepository(cfg.HistoryDB, log)
	if err != nil {
		logging.LogFatal(log, "Failed to initialize history repository", err)
	}
	defer history.Close()

	opener := repository.NewSQLServerOpener(database.NewConnector(cfg, log))
	machines := usecases.NewMachineUseCase(opener, log)
	cartirs := usecases.NewCartirUseCase(opener, history, syncstatus.NewFile(cfg.StatusFile), log).
		WithWorkers(cfg.NightSyncWorkers)

	job := func(ctx context.Context) {
		list, err := machines.List(ctx)
		if err != nil {
			logging.LogError(log, "Night sync could not list machines", err)
			return
		}
		result, err := cartirs.NightSync(ctx, list)
		if err != nil {
			logging.LogError(log, "Night sync failed", err)
		}
		for _, f := range result.Failed() {
			log.WithField("machine", f.Machine.Name).Warnf("Not synced: %v", f.Err)
		}
	}

	app := &cli.App{
		Name:  "nightsync",
		Usage: "push the day's Cartir and Tasks to every machine on a schedule",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "run a single sync and exit"},
			&cli.StringFlag{Name: "schedule", Usage: "cron expression in mine local time", Value: cfg.NightSyncSchedule},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("once") {
				job(c.Context)
				return nil
			}

			scheduler := cron.New(
				cron.WithLocation(timerange.Location),
				cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))),
			)
			_, err := scheduler.AddFunc(c.String("schedule"), func() { job(c.Context) })
			if err != nil {
				return err
			}

			log.Infof("Night sync has been scheduled at %q", c.String("schedule"))
			scheduler.Start()

			<-c.Context.Done()
			log.Info("Stopping night sync scheduler...")
			<-scheduler.Stop().Done()
			return nil
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		logging.LogError(log, "Night sync stopped", err)
		stop()
		history.Close()
		os.Exit(1)
	}
}
