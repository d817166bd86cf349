package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/phase"
)

func dbPurchasesCommand() *cli.Command {
	return &cli.Command{
		Name:      "purchases",
		Usage:     "List purchases for a buyer straight from the database",
		ArgsUsage: "<buyer_address>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of purchases",
				Value:   50,
			},
			&cli.StringFlag{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "Filter by status (prepared, submitted, confirmed, failed, expired)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: buyer address")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			purchases, err := store.ListPurchasesByBuyer(c.Context, c.Args().First(), int32(c.Int("limit")))
			if err != nil {
				return fmt.Errorf("failed to list purchases: %w", err)
			}

			if statusFilter := c.String("status"); statusFilter != "" {
				filtered := make([]*db.Purchase, 0)
				for _, p := range purchases {
					if p.Status == statusFilter {
						filtered = append(filtered, p)
					}
				}
				purchases = filtered
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
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show one purchase",
				ArgsUsage: "<purchase_id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("requires exactly one argument: purchase id")
					}
					id, err := uuid.Parse(c.Args().First())
					if err != nil {
						return fmt.Errorf("invalid purchase id: %w", err)
					}

					store, closer, err := getStore(c)
					if err != nil {
						return err
					}
					defer closer()

					p, err := store.GetPurchase(c.Context, id)
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
		},
	}
}

func dbSettingsCommand() *cli.Command {
	return &cli.Command{
		Name:      "settings",
		Usage:     "Show a persisted presale setting",
		ArgsUsage: "[key]",
		Description: `Shows a persisted setting. The default key is the presale live
threshold, which is written once on first server start and never changes.`,
		Action: func(c *cli.Context) error {
			key := phase.LiveAtKey
			if c.NArg() > 0 {
				key = c.Args().First()
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			value, err := store.GetSetting(c.Context, key)
			if errors.Is(err, phase.ErrSettingNotFound) {
				return fmt.Errorf("setting %s has not been stored yet", key)
			}
			if err != nil {
				return err
			}

			if wantsJSON(c) {
				return outputJSON(c, map[string]string{"key": key, "value": value})
			}
			fmt.Fprintf(c.App.Writer, "%s = %s\n", key, value)
			return nil
		},
	}
}

func dbMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(c.Context); err != nil {
				return err
			}
			notifySuccess(c.App.Writer, "Schema applied")
			return nil
		},
	}
}
