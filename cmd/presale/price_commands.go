package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/presale/client"
)

func priceCommand() *cli.Command {
	return &cli.Command{
		Name:  "price",
		Usage: "Show the live SOL/USD price",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Keep refreshing until interrupted",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Refresh interval for --watch",
				Value: client.DefaultPriceInterval,
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			if !c.Bool("watch") {
				p, err := cl.Price(c.Context)
				if err != nil {
					return fmt.Errorf("failed to fetch price: %w", err)
				}
				if wantsJSON(c) {
					return outputJSON(c, p)
				}
				printPrice(c, p)
				return nil
			}

			ctx, stop := signalContext(c.Context)
			defer stop()

			watcher := client.NewPriceWatcher(cl, c.Duration("interval"), newLogger(c))
			watcher.Run(ctx, func(p *client.Price, err error) {
				if err != nil {
					notifyError(c.App.ErrWriter, "price refresh failed: %v", err)
					return
				}
				if wantsJSON(c) {
					if err := outputJSON(c, p); err != nil {
						notifyError(c.App.ErrWriter, "%v", err)
					}
					return
				}
				printPrice(c, p)
			})
			return nil
		},
	}
}

func printPrice(c *cli.Context, p *client.Price) {
	change := p.Change24h.StringFixed(2) + "%"
	if p.Change24h.IsNegative() {
		change = color.RedString(change)
	} else {
		change = color.GreenString("+" + change)
	}
	fmt.Fprintf(c.App.Writer, "SOL  $%s  %s  (%s, %s)\n",
		p.Price.StringFixed(2),
		change,
		p.Source,
		p.LastUpdated.Local().Format(time.Kitchen),
	)
}

// signalContext cancels on interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
