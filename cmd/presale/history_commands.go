package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/presale/client"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent purchases for the connected account",
		Description: `Lists the last 20 purchases made from this machine, newest first.

--refresh asks the server for the final status of pending purchases.
--clear removes the account's history.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "account",
				Usage: "Account address (defaults to the connected wallet)",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Resolve pending purchases against the server",
			},
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Clear the account's history",
			},
		},
		Action: func(c *cli.Context) error {
			state, err := loadState(c)
			if err != nil {
				return err
			}

			account := c.String("account")
			if account == "" {
				if _, account, err = connectedAccount(state); err != nil {
					return err
				}
			}

			if c.Bool("clear") {
				if err := state.ClearHistory(account); err != nil {
					return fmt.Errorf("failed to clear history: %w", err)
				}
				notifySuccess(c.App.Writer, "Cleared history for %s", account)
				return nil
			}

			if c.Bool("refresh") {
				cl, err := apiClient(c)
				if err != nil {
					return err
				}
				purchaser := client.NewPurchaser(cl, nil, state, client.DefaultLimits(), newLogger(c))
				changed, err := purchaser.RefreshHistory(c.Context, account)
				if err != nil {
					return fmt.Errorf("failed to refresh history: %w", err)
				}
				if !wantsJSON(c) && changed > 0 {
					notifyInfo(c.App.ErrWriter, "Updated %d pending purchase(s)", changed)
				}
			}

			history := state.History(account)
			if wantsJSON(c) {
				return outputJSON(c, history)
			}
			if len(history) == 0 {
				fmt.Fprintf(c.App.Writer, "No transactions yet for %s\n", account)
				return nil
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSOL\tTOKENS\tUSD\tSTATUS\tSIGNATURE")
			for _, rec := range history {
				fmt.Fprintf(w, "%s\t%s\t%s\t$%s\t%s\t%s\n",
					rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
					rec.SolAmount,
					rec.TokenAmount.StringFixed(2),
					rec.USDValue.StringFixed(2),
					statusLabel(rec.Status),
					rec.Signature,
				)
			}
			return w.Flush()
		},
	}
}

func statusLabel(status client.TransactionStatus) string {
	switch status {
	case client.TransactionSuccess:
		return color.GreenString(string(status))
	case client.TransactionFailed:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}
