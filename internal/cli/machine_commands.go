package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/abelzeko/onemine/internal/integration/network"
	"github.com/abelzeko/onemine/internal/usecases"
)

func (e *Env) machinesCommand() *cli.Command {
	return &cli.Command{
		Name:  "machines",
		Usage: "list the field machines and their IP",
		Action: func(c *cli.Context) error {
			ctx, cancel := e.context(c)
			defer cancel()

			machines, err := e.Machines.List(ctx)
			if err != nil {
				return err
			}
			return e.show(c, usecases.MachinesTable(machines), "Machines")
		},
	}
}

func (e *Env) pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "check that the selected machine answers",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "ping continuously until interrupted"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := e.context(c)
			m, err := e.machine(ctx, c)
			cancel()
			if err != nil {
				return err
			}

			if c.Bool("watch") {
				runner := network.NewRunner(e.Pinger, m.IPAddress,
					func(line string) { fmt.Fprintln(e.Out, line) },
					func() { fmt.Fprintf(e.Out, "Ping to %s stopped\n", m.Name) })
				if err := runner.Start(c.Context); err != nil {
					return err
				}
				runner.Wait()
				return nil
			}

			res, err := e.Pinger.Once(c.Context, m.IPAddress)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.Out, "%s (%s): %s\n", m.Name, m.IPAddress, res)
			return nil
		},
	}
}

func (e *Env) vncCommand() *cli.Command {
	return &cli.Command{
		Name:  "vnc",
		Usage: "open the remote desktop of the selected machine",
		Action: func(c *cli.Context) error {
			ctx, cancel := e.context(c)
			defer cancel()

			m, err := e.machine(ctx, c)
			if err != nil {
				return err
			}
			if err := e.VNC.Connect(c.Context, m.IPAddress); err != nil {
				return err
			}
			fmt.Fprintf(e.Out, "Viewer started for %s (%s)\n", m.Name, m.IPAddress)
			return nil
		},
	}
}
