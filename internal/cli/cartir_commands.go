package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/abelzeko/onemine/internal/table"
	"github.com/abelzeko/onemine/internal/usecases"
)

func (e *Env) cartirCommand() *cli.Command {
	return &cli.Command{
		Name:  "cartir",
		Usage: "shift report and Cartir sync",
		Subcommands: []*cli.Command{
			{
				Name:  "report",
				Usage: "latest Cartir, current shift summary, totals and task detail",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "street", Usage: "keep tasks whose street contains this value"},
					&cli.StringFlag{Name: "trench", Usage: "keep tasks whose trench contains this value"},
				},
				Action: e.cartirReport,
			},
			{
				Name:  "sync",
				Usage: "push the day's Cartir and Tasks to the selected machine",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "sync every machine, as the night job does"},
				},
				Action: e.cartirSync,
			},
			{
				Name:   "synced",
				Usage:  "show the machines already synced and the ones missing",
				Action: e.cartirSynced,
			},
			{
				Name:      "merge",
				Usage:     "add the machines listed on the last line of a file to the status file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						return fmt.Errorf("merge needs a file")
					}
					status, err := e.Cartirs.MergeCompleted(path)
					if err != nil {
						return err
					}
					fmt.Fprintf(e.Out, "%s\n%s\n", status.Executed, strings.Join(status.Machines, ", "))
					return nil
				},
			},
		},
	}
}

func (e *Env) cartirReport(c *cli.Context) error {
	ctx, cancel := e.context(c)
	defer cancel()

	report, err := e.Cartirs.Report(ctx)
	if err != nil {
		return err
	}
	if !report.Found() {
		fmt.Fprintln(e.Out, "No Cartir found")
		return nil
	}

	fmt.Fprintf(e.Out, "Current shift: %s\n", report.Shift)
	section := func(title string, t *table.Table) {
		fmt.Fprintf(e.Out, "\n%s\n", title)
		t.Render(e.Out)
	}
	section("Cartir", usecases.HeaderTable(report.Header))
	section("Shift summary", usecases.SummaryTable(report.Summary))
	section("Total per macro", usecases.MacroTotalsTable(report.MacroTotals))
	section("Total per street", usecases.StreetTotalsTable(report.StreetTotals))

	details := usecases.FilterDetails(report.Details, c.String("street"), c.String("trench"))
	fmt.Fprintln(e.Out, "\nTasks")
	if len(report.Details) == 0 {
		fmt.Fprintln(e.Out, "No tasks in the current shift")
	}
	return e.show(c, usecases.DetailsTable(details), "Cartir")
}

func (e *Env) cartirSync(c *cli.Context) error {
	if c.Bool("all") {
		machines, err := e.Machines.List(c.Context)
		if err != nil {
			return err
		}
		result, err := e.Cartirs.NightSync(c.Context, machines)
		for _, r := range result.Results {
			fmt.Fprintf(e.Out, "%-10s %s\n", r.Machine.Name, describe(r))
		}
		return err
	}

	m, err := e.machine(c.Context, c)
	if err != nil {
		return err
	}
	res, err := e.Cartirs.Sync(c.Context, m)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.Out, "%s: %s\n", m.Name, describe(res))
	return nil
}

func describe(r usecases.SyncResult) string {
	if r.Err != nil {
		return "FAILED: " + r.Err.Error()
	}
	return fmt.Sprintf("%d cartirs inserted, %d tasks removed, %d tasks inserted", r.CartirsInserted, r.TasksDeleted, r.TasksInserted)
}

func (e *Env) cartirSynced(c *cli.Context) error {
	ctx, cancel := e.context(c)
	defer cancel()

	machines, err := e.Machines.List(ctx)
	if err != nil {
		return err
	}
	report, err := e.Cartirs.Synced(usecases.Names(machines))
	if err != nil {
		return err
	}

	executed := report.Status.Executed
	if executed == "" {
		executed = "No sync recorded"
	}
	fmt.Fprintln(e.Out, executed)
	fmt.Fprintf(e.Out, "Synced (%d): %s\n", len(report.Status.Machines), strings.Join(report.Status.Machines, ", "))
	fmt.Fprintf(e.Out, "Missing (%d): %s\n", len(report.Missing), strings.Join(report.Missing, ", "))
	return nil
}

