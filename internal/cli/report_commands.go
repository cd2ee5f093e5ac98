package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/abelzeko/onemine/internal/table"
	"github.com/abelzeko/onemine/internal/usecases"
)

func (e *Env) loopsCommand() *cli.Command {
	return &cli.Command{
		Name:  "loops",
		Usage: "loop operations in a range; filter on LHD, Operador, Calle, Zanja or Operacion",
		Flags: rangeFlags(),
		Action: func(c *cli.Context) error {
			rng, err := rangeFrom(c, time.Now())
			if err != nil {
				return err
			}
			ctx, cancel := e.context(c)
			defer cancel()

			out, err := e.Reports.Loops(ctx, rng, nil)
			if err != nil {
				return err
			}
			return e.show(c, out, "Loop")
		},
	}
}

func (e *Env) statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "machine status changes reported in a range",
		Flags: append(rangeFlags(),
			&cli.StringFlag{Name: "lhd", Usage: "keep machines containing this value"},
			&cli.StringFlag{Name: "operator", Usage: "keep operators containing this value"},
		),
		Action: func(c *cli.Context) error {
			rng, err := rangeFrom(c, time.Now())
			if err != nil {
				return err
			}
			ctx, cancel := e.context(c)
			defer cancel()

			out, err := e.Reports.Status(ctx, rng, c.String("lhd"), c.String("operator"))
			if err != nil {
				return err
			}
			return e.show(c, out, "Estado")
		},
	}
}

func (e *Env) machineStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "machine-status",
		Usage: "status log stored on the selected machine",
		Flags: rangeFlags(),
		Action: func(c *cli.Context) error {
			rng, err := rangeFrom(c, time.Now())
			if err != nil {
				return err
			}
			ctx, cancel := e.context(c)
			defer cancel()

			m, err := e.machine(ctx, c)
			if err != nil {
				return err
			}
			out, err := e.Reports.MachineStatus(ctx, m, rng)
			if err != nil {
				return err
			}
			return e.show(c, out, "MachineStatus")
		},
	}
}

func (e *Env) operatorsCommand() *cli.Command {
	search := &cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "keep rows containing this text in any column"}
	roster := func(c *cli.Context) (*table.Table, error) {
		ctx, cancel := e.context(c)
		defer cancel()
		return e.Operators.Search(ctx, c.String("search"))
	}

	return &cli.Command{
		Name:  "operators",
		Usage: "operator roster",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "show the local roster",
				Flags: []cli.Flag{search},
				Action: func(c *cli.Context) error {
					out, err := roster(c)
					if err != nil {
						return err
					}
					return e.show(c, out, "Operadores")
				},
			},
			{
				Name:  "push",
				Usage: "insert or update the roster (or the rows matching --search) on the selected machine",
				Flags: []cli.Flag{search},
				Action: func(c *cli.Context) error {
					out, err := roster(c)
					if err != nil {
						return err
					}
					filters, err := ParseFilters(c.StringSlice("filter"))
					if err != nil {
						return err
					}
					out = out.Filter(filters)
					if out.Empty() {
						return errors.New("no operators to push")
					}

					m, err := e.machine(c.Context, c)
					if err != nil {
						return err
					}
					n, err := e.Operators.Push(c.Context, m, out)
					if err != nil {
						return err
					}
					fmt.Fprintf(e.Out, "%d operators processed on %s\n", n, m.Name)
					return nil
				},
			},
		},
	}
}

func (e *Env) rssiCommand() *cli.Command {
	return &cli.Command{
		Name:  "rssi",
		Usage: "tag readings seen by the selected machine",
		Flags: append(rangeFlags(),
			&cli.IntFlag{Name: "min", Usage: "only readings stronger than this RSSI", Value: usecases.DefaultMinRSSI},
		),
		Action: func(c *cli.Context) error {
			rng, err := rangeFrom(c, time.Now())
			if err != nil {
				return err
			}
			ctx, cancel := e.context(c)
			defer cancel()

			m, err := e.machine(ctx, c)
			if err != nil {
				return err
			}
			out, err := e.Tags.RSSI(ctx, m, rng, c.Int("min"))
			if err != nil {
				return err
			}
			if err := e.show(c, out, "RSSI"); err != nil {
				return err
			}

			side, err := e.Tags.LastSide(ctx, m)
			if err != nil {
				return err
			}
			if side == "" {
				side = "no side selection recorded"
			}
			fmt.Fprintf(e.Out, "Last side: %s\n", side)
			return nil
		},
	}
}

func (e *Env) trenchesCommand() *cli.Command {
	return &cli.Command{
		Name:  "trenches",
		Usage: "latest reading of every trench tag seen by the selected machine",
		Flags: rangeFlags(),
		Action: func(c *cli.Context) error {
			rng, err := rangeFrom(c, time.Now())
			if err != nil {
				return err
			}
			ctx, cancel := e.context(c)
			defer cancel()

			m, err := e.machine(ctx, c)
			if err != nil {
				return err
			}
			out, err := e.Tags.Trenches(ctx, m, rng)
			if err != nil {
				return err
			}
			return e.show(c, out, "ZanjasUnique")
		},
	}
}

func (e *Env) streetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "streets",
		Usage: "latest transit per map point",
		Flags: append(rangeFlags(),
			&cli.StringFlag{Name: "zone", Aliases: []string{"z"}, Usage: "limit to a street zone"},
		),
		Action: func(c *cli.Context) error {
			rng, err := rangeFrom(c, time.Now())
			if err != nil {
				return err
			}
			ctx, cancel := e.context(c)
			defer cancel()

			out, err := e.Streets.Transits(ctx, c.String("zone"), rng)
			if err != nil {
				return err
			}
			return e.show(c, out, "Calle")
		},
		Subcommands: []*cli.Command{
			{
				Name:  "catalog",
				Usage: "street zones and their macro",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "names", Usage: "print only the unique street names"},
				},
				Action: func(c *cli.Context) error {
					ctx, cancel := e.context(c)
					defer cancel()

					if c.Bool("names") {
						names, err := e.Streets.Streets(ctx)
						if err != nil {
							return err
						}
						fmt.Fprintln(e.Out, strings.Join(names, "\n"))
						return nil
					}
					entries, err := e.Streets.Catalog(ctx)
					if err != nil {
						return err
					}
					return e.show(c, usecases.CatalogTable(entries), "Calles")
				},
			},
		},
	}
}

func (e *Env) historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "recent Cartir and operator syncs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: usecases.DefaultHistoryLimit},
			&cli.BoolFlag{Name: "last", Usage: "show the last successful Cartir sync of each machine"},
		},
		Action: func(c *cli.Context) error {
			if e.History == nil {
				return errors.New("sync history is not available")
			}
			if c.Bool("last") {
				out, err := e.History.LastSyncs(c.Context)
				if err != nil {
					return err
				}
				return e.show(c, out, "UltimaSync")
			}

			out, err := e.History.Recent(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			if err := e.show(c, out, "Historial"); err != nil {
				return err
			}
			run, err := e.History.LastRun(c.Context)
			if err != nil {
				return err
			}
			if run != "" {
				fmt.Fprintf(e.Out, "Last run: %s\n", run)
			}
			return nil
		},
	}
}
