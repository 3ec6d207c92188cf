package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	relayTo    string
	relayBatch int
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and relay stored notification intents",
}

var outboxRelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Forward undelivered outbox intents to another notifier sink",
	RunE:  runOutboxRelay,
}

func init() {
	outboxRelayCmd.Flags().StringVar(&relayTo, "to", "webhook", "target sink: webhook, redis or log")
	outboxRelayCmd.Flags().IntVar(&relayBatch, "batch", 100, "maximum intents to forward")
	outboxCmd.AddCommand(outboxRelayCmd)
	rootCmd.AddCommand(outboxCmd)
}

func runOutboxRelay(cmd *cobra.Command, args []string) error {
	if relayTo == "outbox" {
		return fmt.Errorf("cannot relay the outbox into itself")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	target, err := a.sink(relayTo)
	if err != nil {
		return err
	}
	n, err := a.outboxNotifier().Relay(ctx, target, relayBatch)
	fmt.Fprintf(cmd.OutOrStdout(), "relayed %d notification intents to %s\n", n, relayTo)
	return err
}
