package main

import (
	"fmt"
	"text/tabwriter"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/presale/service/solana"
	"github.com/brojonat/presale/service/wallet"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Manage the local wallet used for purchases",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List supported wallets and whether they are available",
				Action: func(c *cli.Context) error {
					providers := walletProviders(c, ledgerClient(c))

					type row struct {
						Name      string `json:"name"`
						Available bool   `json:"available"`
					}
					rows := make([]row, 0, len(providers))
					for _, p := range providers {
						rows = append(rows, row{Name: p.Name(), Available: p.Detect()})
					}

					if wantsJSON(c) {
						return outputJSON(c, rows)
					}
					w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "WALLET\tAVAILABLE")
					for _, r := range rows {
						fmt.Fprintf(w, "%s\t%v\n", r.Name, r.Available)
					}
					return w.Flush()
				},
			},
			{
				Name:      "connect",
				Usage:     "Connect a wallet (the first available one by default)",
				ArgsUsage: "[wallet]",
				Action: func(c *cli.Context) error {
					state, err := loadState(c)
					if err != nil {
						return err
					}
					providers := walletProviders(c, ledgerClient(c))

					var provider wallet.Provider
					if c.NArg() > 0 {
						provider, err = wallet.ByName(c.Args().First(), providers...)
					} else {
						provider, err = wallet.Detect(providers...)
					}
					if err != nil {
						notifyError(c.App.ErrWriter, "%s", wallet.UserMessage(err))
						return err
					}

					account, err := provider.Connect(c.Context)
					if err != nil {
						notifyError(c.App.ErrWriter, "%s", wallet.UserMessage(err))
						return err
					}
					defer provider.Disconnect(c.Context)

					if err := state.SetConnected(provider.Name(), account.String()); err != nil {
						return fmt.Errorf("failed to save connected wallet: %w", err)
					}

					if wantsJSON(c) {
						return outputJSON(c, map[string]string{"wallet": provider.Name(), "account": account.String()})
					}
					notifySuccess(c.App.Writer, "Connected %s (%s)", wallet.ShortenAddress(account.String()), provider.Name())
					return nil
				},
			},
			{
				Name:  "disconnect",
				Usage: "Forget the connected wallet",
				Action: func(c *cli.Context) error {
					state, err := loadState(c)
					if err != nil {
						return err
					}
					walletName, account := state.Connected()
					if account == "" {
						notifyInfo(c.App.Writer, "No wallet connected")
						return nil
					}
					if err := state.ClearConnected(); err != nil {
						return fmt.Errorf("failed to clear connected wallet: %w", err)
					}
					notifySuccess(c.App.Writer, "Disconnected %s (%s)", wallet.ShortenAddress(account), walletName)
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Show the connected account and its SOL balance",
				Action: func(c *cli.Context) error {
					state, err := loadState(c)
					if err != nil {
						return err
					}
					walletName, account, err := connectedAccount(state)
					if err != nil {
						return err
					}
					pubkey, err := solanago.PublicKeyFromBase58(account)
					if err != nil {
						return fmt.Errorf("stored account %s is not a valid address: %w", account, err)
					}

					lamports, err := ledgerClient(c).Balance(c.Context, pubkey)
					if err != nil {
						return fmt.Errorf("failed to fetch balance: %w", err)
					}
					balance := solana.FromBaseUnits(lamports, solana.LamportsDecimals)

					if wantsJSON(c) {
						return outputJSON(c, map[string]interface{}{
							"wallet":   walletName,
							"account":  account,
							"lamports": lamports,
							"balance":  balance,
						})
					}
					fmt.Fprintf(c.App.Writer, "Wallet:   %s\n", walletName)
					fmt.Fprintf(c.App.Writer, "Account:  %s\n", account)
					fmt.Fprintf(c.App.Writer, "Balance:  %s SOL\n", balance)
					return nil
				},
			},
		},
	}
}
