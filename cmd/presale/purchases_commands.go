package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/presale/service/db"
	natspkg "github.com/brojonat/presale/service/nats"
)

func purchasesCommands() *cli.Command {
	return &cli.Command{
		Name:  "purchases",
		Usage: "Query the server's purchase audit log",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List purchases for a buyer",
				ArgsUsage: "[buyer_address]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of purchases",
						Value:   20,
					},
				},
				Action: func(c *cli.Context) error {
					buyer, err := buyerArg(c)
					if err != nil {
						return err
					}
					cl, err := apiClient(c)
					if err != nil {
						return err
					}
					purchases, err := cl.ListPurchases(c.Context, buyer, c.Int("limit"))
					if err != nil {
						return fmt.Errorf("failed to list purchases: %w", err)
					}
					if wantsJSON(c) {
						return outputJSON(c, purchases)
					}
					if err := printPurchases(c.App.Writer, purchases); err != nil {
						return err
					}
					fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d purchases\n", len(purchases))
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "Show one purchase",
				ArgsUsage: "<purchase_id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("requires exactly one argument: purchase id")
					}
					cl, err := apiClient(c)
					if err != nil {
						return err
					}
					p, err := cl.GetPurchase(c.Context, c.Args().First())
					if err != nil {
						return fmt.Errorf("failed to get purchase: %w", err)
					}
					if wantsJSON(c) {
						return outputJSON(c, p)
					}
					printPurchase(c.App.Writer, p)
					return nil
				},
			},
			{
				Name:      "watch",
				Usage:     "Stream purchase status changes for a buyer from the server",
				ArgsUsage: "[buyer_address]",
				Action: func(c *cli.Context) error {
					buyer, err := buyerArg(c)
					if err != nil {
						return err
					}
					cl, err := apiClient(c)
					if err != nil {
						return err
					}

					ctx, stop := signalContext(c.Context)
					defer stop()

					jsonOutput := wantsJSON(c)
					if !jsonOutput {
						fmt.Fprintf(c.App.Writer, "Watching purchases for %s... (Ctrl-C to exit)\n\n", buyer)
					}
					count := 0
					err = cl.StreamPurchases(ctx, buyer, func(event natspkg.PurchaseEvent) error {
						count++
						if jsonOutput {
							return outputJSON(c, event)
						}
						printPurchaseEvent(c.App.Writer, count, event)
						return nil
					})
					if err != nil && ctx.Err() == nil {
						return err
					}
					return nil
				},
			},
		},
	}
}

// buyerArg returns the buyer argument, or the connected account when omitted.
func buyerArg(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return c.Args().First(), nil
	}
	state, err := loadState(c)
	if err != nil {
		return "", err
	}
	_, account, err := connectedAccount(state)
	return account, err
}

func printPurchases(out io.Writer, purchases []*db.Purchase) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBUYER\tSOL\tTOKENS\tSTATUS\tCREATED")
	for _, p := range purchases {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID,
			p.BuyerAddress,
			p.SolAmount,
			p.TokenAmount.StringFixed(2),
			p.Status,
			p.CreatedAt.Format(time.RFC3339),
		)
	}
	return w.Flush()
}

func printPurchase(w io.Writer, p *db.Purchase) {
	fmt.Fprintf(w, "ID:           %s\n", p.ID)
	fmt.Fprintf(w, "Buyer:        %s\n", p.BuyerAddress)
	fmt.Fprintf(w, "Status:       %s\n", p.Status)
	fmt.Fprintf(w, "SOL:          %s (%d lamports)\n", p.SolAmount, p.Lamports)
	fmt.Fprintf(w, "Tokens:       %s (%d base units)\n", p.TokenAmount, p.TokenUnits)
	fmt.Fprintf(w, "Quote:        $%s (%s)\n", p.QuotePrice.StringFixed(2), p.QuoteSource)
	if p.Degraded {
		fmt.Fprintf(w, "              fallback price\n")
	}
	if p.Signature != nil {
		fmt.Fprintf(w, "Signature:    %s\n", *p.Signature)
	}
	if p.FailureReason != nil {
		fmt.Fprintf(w, "Reason:       %s\n", *p.FailureReason)
	}
	fmt.Fprintf(w, "Created:      %s\n", p.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:      %s\n", p.UpdatedAt.Format(time.RFC3339))
}
