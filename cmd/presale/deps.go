package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/brojonat/presale/client"
	"github.com/brojonat/presale/service/db"
	"github.com/brojonat/presale/service/solana"
	"github.com/brojonat/presale/service/wallet"
)

// newLogger logs diagnostics to stderr at the --log-level threshold.
func newLogger(c *cli.Context) *slog.Logger {
	var level slog.Level
	switch c.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
}

func apiClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set PRESALE_SERVER_URL env var or use --server-url)")
	}
	return client.NewClient(serverURL, nil, newLogger(c)), nil
}

func loadState(c *cli.Context) (*client.State, error) {
	path := c.String("state-file")
	if path == "" {
		var err error
		path, err = client.DefaultStatePath()
		if err != nil {
			return nil, err
		}
	}
	return client.LoadState(path)
}

func ledgerClient(c *cli.Context) *solana.Client {
	rpcURL := c.String("rpc-url")
	return solana.NewClient(solana.NewRPCClient(rpcURL), rpcURL, nil, newLogger(c))
}

// walletProviders lists the local wallets in detection order. Prompts are
// answered on stdin unless --yes is set.
func walletProviders(c *cli.Context, submitter wallet.Submitter) []wallet.Provider {
	var approve wallet.Approver = wallet.AutoApprove
	if !c.Bool("yes") {
		approve = promptApprover(os.Stdin, c.App.ErrWriter)
	}
	return wallet.DefaultProviders(wallet.OSEnvironment{}, approve, submitter, newLogger(c))
}

// promptApprover asks a y/N question for every wallet prompt.
func promptApprover(in io.Reader, out io.Writer) wallet.Approver {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, prompt string) (bool, error) {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(c.Context, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(c.Context); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}

// connectedAccount returns the account saved by "wallet connect".
func connectedAccount(state *client.State) (walletName, account string, err error) {
	walletName, account = state.Connected()
	if account == "" {
		return "", "", fmt.Errorf("no wallet connected (run: presale wallet connect)")
	}
	return walletName, account, nil
}
