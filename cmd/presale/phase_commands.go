package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/presale/service/phase"
)

func phaseCommand() *cli.Command {
	return &cli.Command{
		Name:  "phase",
		Usage: "Show the presale phase and countdown",
		Description: `Without --local the phase comes from the server. With --local it is
evaluated here from --live-at and --ends-at. The live threshold is saved to
the state file the first time and reused after that, so the countdown
survives restarts.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "local",
				Usage: "Evaluate the phase locally instead of asking the server",
			},
			&cli.StringFlag{
				Name:    "live-at",
				Usage:   "Presale live threshold (RFC3339), used with --local",
				EnvVars: []string{"PRESALE_LIVE_AT"},
				Value:   "2025-07-10T20:00:00+02:00",
			},
			&cli.StringFlag{
				Name:    "ends-at",
				Usage:   "Presale end threshold (RFC3339), used with --local",
				EnvVars: []string{"PRESALE_ENDS_AT"},
				Value:   "2025-08-15T20:00:00+02:00",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Keep the countdown running until interrupted (with --local)",
			},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("local") {
				cl, err := apiClient(c)
				if err != nil {
					return err
				}
				status, err := cl.Phase(c.Context)
				if err != nil {
					return fmt.Errorf("failed to fetch phase: %w", err)
				}
				if wantsJSON(c) {
					return outputJSON(c, status)
				}
				printPhase(c, status.State)
				return nil
			}

			controller, err := localController(c)
			if err != nil {
				return err
			}

			if !c.Bool("watch") {
				state := controller.Current()
				if wantsJSON(c) {
					return outputJSON(c, state)
				}
				printPhase(c, state)
				return nil
			}

			ctx, stop := signalContext(c.Context)
			defer stop()
			controller.Watch(ctx, phase.DefaultTick, func(state phase.State) {
				printPhase(c, state)
			})
			return nil
		},
	}
}

func localController(c *cli.Context) (*phase.Controller, error) {
	configuredLiveAt, err := time.Parse(time.RFC3339, c.String("live-at"))
	if err != nil {
		return nil, fmt.Errorf("invalid --live-at: %w", err)
	}
	endsAt, err := time.Parse(time.RFC3339, c.String("ends-at"))
	if err != nil {
		return nil, fmt.Errorf("invalid --ends-at: %w", err)
	}

	state, err := loadState(c)
	if err != nil {
		return nil, err
	}
	liveAt, err := phase.ResolveThreshold(c.Context, state, phase.LiveAtKey, configuredLiveAt)
	if err != nil {
		return nil, err
	}
	return phase.NewController(liveAt, endsAt)
}

func printPhase(c *cli.Context, state phase.State) {
	title := color.New(color.Bold).Sprint(state.Title)
	if state.Phase == phase.Ended {
		fmt.Fprintln(c.App.Writer, title)
		return
	}
	fmt.Fprintf(c.App.Writer, "%s %s\n", title, state.TimeLeft)
}
