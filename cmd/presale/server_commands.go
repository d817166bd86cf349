package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			if err := cl.Health(ctx); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			notifySuccess(c.App.Writer, "Server is healthy")
			fmt.Fprintf(c.App.Writer, "  URL: %s\n", c.String("server-url"))
			return nil
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show the token and purchase bounds the server sells at",
		Action: func(c *cli.Context) error {
			cl, err := apiClient(c)
			if err != nil {
				return err
			}
			info, err := cl.PurchaseInfo(c.Context)
			if err != nil {
				return fmt.Errorf("failed to fetch purchase info: %w", err)
			}
			if wantsJSON(c) {
				return outputJSON(c, info)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Token:        %s\n", info.TokenSymbol)
			fmt.Fprintf(w, "Mint:         %s\n", info.MintAddress)
			fmt.Fprintf(w, "Token price:  $%s\n", info.TokenPrice)
			fmt.Fprintf(w, "Purchase:     %s - %s SOL\n", info.MinPurchaseSOL, info.MaxPurchaseSOL)
			fmt.Fprintf(w, "Site:         %s\n", info.BaseURL)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "presale CLI\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}
