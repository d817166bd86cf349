package main

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/presale/client"
	"github.com/brojonat/presale/service/wallet"
)

func buyCommand() *cli.Command {
	return &cli.Command{
		Name:      "buy",
		Usage:     "Buy presale tokens with SOL",
		ArgsUsage: "<sol-amount>",
		Description: `Prices the purchase at the live SOL/USD quote, checks the connected
wallet's balance, asks the server for a treasury co-signed transaction and
signs and submits it with the connected wallet.

Examples:
  presale buy 0.5 --estimate
  presale buy 0.5 --yes`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "estimate",
				Usage: "Only show what the amount would buy",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one argument: <sol-amount>")
			}
			solAmount, err := decimal.NewFromString(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid SOL amount %q: %w", c.Args().First(), err)
			}

			cl, err := apiClient(c)
			if err != nil {
				return err
			}
			state, err := loadState(c)
			if err != nil {
				return err
			}

			logger := newLogger(c)
			ledger := ledgerClient(c)
			limits, symbol := purchaseLimits(c, cl)
			purchaser := client.NewPurchaser(cl, ledger, state, limits, logger)

			if c.Bool("estimate") {
				if err := purchaser.CheckAmount(solAmount); err != nil {
					return err
				}
				est, err := purchaser.Estimate(c.Context, solAmount)
				if err != nil {
					return err
				}
				if wantsJSON(c) {
					return outputJSON(c, est)
				}
				fmt.Fprintf(c.App.Writer, "%s SOL buys %s %s tokens (~$%s at $%s/SOL)\n",
					est.SolAmount, est.TokenAmount.StringFixed(2), symbol,
					est.USDValue.StringFixed(2), est.Price.Price.StringFixed(2))
				return nil
			}

			walletName, account, err := connectedAccount(state)
			if err != nil {
				return err
			}
			provider, err := wallet.ByName(walletName, walletProviders(c, ledger)...)
			if err != nil {
				notifyError(c.App.ErrWriter, "%s", wallet.UserMessage(err))
				return err
			}

			buyer, err := provider.Connect(c.Context)
			if err != nil {
				notifyError(c.App.ErrWriter, "%s", wallet.UserMessage(err))
				return err
			}
			defer provider.Disconnect(c.Context)

			if buyer.String() != account {
				return fmt.Errorf("wallet %s now holds %s, not the connected account %s (run: presale wallet connect)",
					walletName, wallet.ShortenAddress(buyer.String()), wallet.ShortenAddress(account))
			}

			receipt, err := purchaser.Buy(c.Context, provider, buyer, solAmount)
			if err != nil {
				if errors.Is(err, client.ErrPriceUnavailable) {
					notifyError(c.App.ErrWriter, "%s", client.ErrPriceUnavailable.Error())
				} else {
					notifyError(c.App.ErrWriter, "%s", wallet.UserMessage(err))
				}
				return err
			}

			if wantsJSON(c) {
				return outputJSON(c, receipt)
			}
			notifySuccess(c.App.Writer, "Successfully purchased %s %s tokens for %s SOL (~$%s)!",
				receipt.TokenAmount.StringFixed(2), symbol, receipt.SolAmount, receipt.USDValue.StringFixed(2))
			fmt.Fprintf(c.App.Writer, "  Signature: %s\n", receipt.Signature)
			if receipt.PurchaseID != "" {
				fmt.Fprintf(c.App.Writer, "  Purchase:  %s\n", receipt.PurchaseID)
			}
			return nil
		},
	}
}

// purchaseLimits reads the purchase bounds from the server, falling back to
// the presale defaults when it cannot be reached.
func purchaseLimits(c *cli.Context, cl *client.Client) (client.Limits, string) {
	limits := client.DefaultLimits()
	symbol := "SUSTEXA"

	info, err := cl.PurchaseInfo(c.Context)
	if err != nil {
		newLogger(c).Warn("failed to fetch purchase info, using defaults", "error", err)
		return limits, symbol
	}
	if info.MinPurchaseSOL.IsPositive() {
		limits.MinSOL = info.MinPurchaseSOL
	}
	if info.MaxPurchaseSOL.IsPositive() {
		limits.MaxSOL = info.MaxPurchaseSOL
	}
	if info.TokenPrice.IsPositive() {
		limits.TokenPriceUSD = info.TokenPrice
	}
	if info.TokenSymbol != "" {
		symbol = info.TokenSymbol
	}
	return limits, symbol
}
