// Package cli binds the dashboard's use cases to urfave/cli commands. Every
// report renders a table on stdout and can export it to a spreadsheet.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/abelzeko/onemine/internal/config"
	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/integration/network"
	"github.com/abelzeko/onemine/internal/integration/vnc"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/syncstatus"
	"github.com/abelzeko/onemine/internal/table"
	"github.com/abelzeko/onemine/internal/timerange"
	"github.com/abelzeko/onemine/internal/usecases"
)

// Env holds the use cases the commands run
type Env struct {
	Out          io.Writer
	Log          logrus.FieldLogger
	QueryTimeout time.Duration

	Machines  *usecases.MachineUseCase
	Cartirs   *usecases.CartirUseCase
	Reports   *usecases.ReportUseCase
	Operators *usecases.OperatorUseCase
	Tags      *usecases.TagUseCase
	Streets   *usecases.StreetUseCase
	History   *usecases.HistoryUseCase
	Exporter  *usecases.Exporter
	Pinger    *network.Pinger
	VNC       *vnc.Launcher
}

// NewEnv wires the use cases. history may be nil, in which case syncs are
// not recorded and the history command is unavailable.
func NewEnv(cfg *config.Config, log logrus.FieldLogger, opener repository.Opener, history repository.HistoryRepository) *Env {
	env := &Env{
		Out:          os.Stdout,
		Log:          log,
		QueryTimeout: cfg.QueryTimeout,
		Machines:     usecases.NewMachineUseCase(opener, log),
		Reports:      usecases.NewReportUseCase(opener, log),
		Tags:         usecases.NewTagUseCase(opener, log),
		Streets:      usecases.NewStreetUseCase(opener, log),
		Exporter:     usecases.NewExporter(cfg.ExportDir, log),
		Pinger:       network.NewPinger(log),
		VNC:          vnc.NewLauncher(cfg.VNC.Exe, cfg.VNC.Password, log),
	}
	if history != nil {
		env.History = usecases.NewHistoryUseCase(history)
	}
	env.Cartirs = usecases.NewCartirUseCase(opener, history, syncstatus.NewFile(cfg.StatusFile), log).WithWorkers(cfg.NightSyncWorkers)
	env.Operators = usecases.NewOperatorUseCase(opener, history, log)
	return env
}

// NewApp builds the dashboard command line
func NewApp(env *Env) *cli.App {
	return &cli.App{
		Name:                 "onemine",
		Usage:                "mine-site operations dashboard",
		Writer:               env.Out,
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "machine",
				Aliases: []string{"m"},
				Usage:   "machine name or IP the command targets",
				EnvVars: []string{"ONEMINE_MACHINE"},
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "write the table to an .xlsx file: a path, or \"auto\" for the export directory",
			},
			&cli.StringSliceFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "keep rows whose column contains a value, as column=value (repeatable)",
			},
		},
		Commands: []*cli.Command{
			env.machinesCommand(),
			env.pingCommand(),
			env.vncCommand(),
			env.cartirCommand(),
			env.loopsCommand(),
			env.statusCommand(),
			env.machineStatusCommand(),
			env.operatorsCommand(),
			env.rssiCommand(),
			env.trenchesCommand(),
			env.streetsCommand(),
			env.historyCommand(),
		},
	}
}

// context returns the command context bounded by the query timeout
func (e *Env) context(c *cli.Context) (context.Context, context.CancelFunc) {
	if e.QueryTimeout <= 0 {
		return context.WithCancel(c.Context)
	}
	return context.WithTimeout(c.Context, e.QueryTimeout)
}

// machine resolves the --machine flag
func (e *Env) machine(ctx context.Context, c *cli.Context) (entities.Machine, error) {
	key := strings.TrimSpace(c.String("machine"))
	if key == "" {
		return entities.Machine{}, fmt.Errorf("this command needs --machine")
	}
	return e.Machines.Find(ctx, key)
}

// show filters, renders and optionally exports tbl
func (e *Env) show(c *cli.Context, tbl *table.Table, prefix string) error {
	filters, err := ParseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}
	tbl = tbl.Filter(filters)
	tbl.Render(e.Out)

	if dest := c.String("export"); dest != "" {
		path, err := e.Exporter.Export(tbl, dest, prefix)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.Out, "Exported to %s\n", path)
	}
	return nil
}

// ParseFilters turns column=value pairs into a filter map
func ParseFilters(pairs []string) (map[string]string, error) {
	filters := make(map[string]string, len(pairs))
	for _, p := range pairs {
		col, val, ok := strings.Cut(p, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid filter %q, expected column=value", p)
		}
		filters[col] = val
	}
	return filters, nil
}

func rangeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "start date, YYYY-MM-DD (default today)"},
		&cli.StringFlag{Name: "from-time", Usage: "start time, HH:MM", Value: "00:00"},
		&cli.StringFlag{Name: "to", Usage: "end date, YYYY-MM-DD (default today)"},
		&cli.StringFlag{Name: "to-time", Usage: "end time, HH:MM", Value: "23:59"},
	}
}

// rangeFrom builds the range selected by rangeFlags
func rangeFrom(c *cli.Context, now time.Time) (timerange.Range, error) {
	today := now.In(timerange.Location).Format(timerange.DateLayout)
	from, to := c.String("from"), c.String("to")
	if from == "" {
		from = today
	}
	if to == "" {
		to = today
	}
	return timerange.Parse(from, c.String("from-time"), to, c.String("to-time"))
}
