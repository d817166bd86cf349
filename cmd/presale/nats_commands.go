package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	natspkg "github.com/brojonat/presale/service/nats"
)

func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to purchase events for a buyer",
		ArgsUsage: "<buyer_address>",
		Description: `Stream purchase status changes published to NATS JetStream.

Events are published to the subject: purchases.{buyer_address}

Example:
  presale nats subscribe 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "presale-cli",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("buyer address is required")
			}
			buyer := c.Args().First()
			natsURL := c.String("nats-url")

			nc, js, err := natspkg.Connect(natsURL, "presale-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			subject := natspkg.Subject(buyer)
			jsonOutput := wantsJSON(c)
			if !jsonOutput {
				fmt.Fprintf(c.App.Writer, "Subscribing to: %s\n", subject)
				fmt.Fprintf(c.App.Writer, "   NATS: %s\n", natsURL)
				fmt.Fprintf(c.App.Writer, "\nWaiting for purchases... (Ctrl-C to exit)\n\n")
			}

			consumerConfig := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
			}
			if c.Bool("durable") {
				consumerConfig.Durable = c.String("consumer-name")
				consumerConfig.Name = c.String("consumer-name")
			}

			ctx, stop := signalContext(c.Context)
			defer stop()

			cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			msgChan := make(chan jetstream.Msg, 10)
			consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
				msgChan <- msg
			})
			if err != nil {
				return fmt.Errorf("failed to start consuming: %w", err)
			}
			defer consumeCtx.Stop()

			count := 0
			for {
				select {
				case msg := <-msgChan:
					var event natspkg.PurchaseEvent
					if err := json.Unmarshal(msg.Data(), &event); err != nil {
						fmt.Fprintf(c.App.ErrWriter, "Error parsing event: %v\n", err)
						msg.Ack()
						continue
					}
					count++

					if jsonOutput {
						if err := outputJSON(c, event); err != nil {
							return err
						}
					} else {
						printPurchaseEvent(c.App.Writer, count, event)
					}
					msg.Ack()

				case <-ctx.Done():
					if !jsonOutput {
						fmt.Fprintf(c.App.Writer, "\nReceived %d purchase events\n", count)
					}
					return nil
				}
			}
		},
	}
}

func printPurchaseEvent(w io.Writer, n int, event natspkg.PurchaseEvent) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Purchase event #%d\n", n)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Purchase:     %s\n", event.PurchaseID)
	fmt.Fprintf(w, "Buyer:        %s\n", event.BuyerAddress)
	fmt.Fprintf(w, "Status:       %s\n", event.Status)
	fmt.Fprintf(w, "SOL:          %s\n", event.SolAmount)
	fmt.Fprintf(w, "Tokens:       %s\n", event.TokenAmount)
	if event.Signature != "" {
		fmt.Fprintf(w, "Signature:    %s\n", event.Signature)
	}
	if event.Reason != "" {
		fmt.Fprintf(w, "Reason:       %s\n", event.Reason)
	}
	fmt.Fprintf(w, "Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
}

func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the PURCHASES JetStream stream",
		Action: func(c *cli.Context) error {
			nc, js, err := natspkg.Connect(c.String("nats-url"), "presale-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			stream, err := js.Stream(c.Context, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}
			info, err := stream.Info(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if wantsJSON(c) {
				return outputJSON(c, info)
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
