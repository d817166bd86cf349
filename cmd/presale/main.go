package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "presale",
		Usage: "Token presale client and operator CLI",
		Description: `A command-line front end for the presale service.

Buyers use it to check the SOL price and presale countdown, connect a local
wallet, buy tokens and review their purchase history. Operators use it to
inspect the purchase audit log, the purchase event stream and server health.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Before: func(c *cli.Context) error {
			// A local .env is optional
			_ = godotenv.Load()
			return nil
		},
		Commands: []*cli.Command{
			priceCommand(),
			phaseCommand(),
			buyCommand(),
			historyCommand(),
			walletCommands(),
			purchasesCommands(),
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					dbPurchasesCommand(),
					dbSettingsCommand(),
					dbMigrateCommand(),
				},
			},
			{
				Name:  "nats",
				Usage: "NATS purchase event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					infoCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Presale server URL",
				EnvVars: []string{"PRESALE_SERVER_URL", "SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "state-file",
				Usage:   "Local state file (default ~/.config/presale/state.yaml)",
				EnvVars: []string{"PRESALE_STATE_FILE"},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC URL used for balances and submission",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   "https://api.mainnet-beta.solana.com",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level for diagnostics on stderr",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "error",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Approve wallet prompts without asking",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to JSON output (implies --json)",
			},
		},
	}
}
