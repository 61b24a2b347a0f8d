package cli

import (
	"fmt"

	"stream-escrow-go/internal/amount"
	"stream-escrow-go/internal/escrow"

	"github.com/spf13/cobra"
)

func newSubscriptionCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sub",
		Aliases: []string{"subscription"},
		Short:   "Create and operate recurring subscriptions",
	}

	cmd.AddCommand(newSubscriptionCreateCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "deposit <id> <amount>",
		Short: "Top up a subscription balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}
			value, err := amount.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			balance, err := engine.DepositToSubscription(ctx, id, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subscription %d balance %s\n", id, balance)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "charge <id>",
		Short: "Collect every interval that has come due",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			result, err := engine.ChargeSubscription(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a subscription and refund its balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			refund, err := engine.CancelSubscription(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled subscription %d, refunded %s\n", id, refund)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			sub, err := engine.GetSubscription(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, sub)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <user>",
		Short: "List subscriptions a user pays or receives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			subs, err := engine.ListUserSubscriptions(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, subs)
		},
	})

	return cmd
}

type subscriptionCreateOptions struct {
	receiver        string
	asset           string
	amount          string
	intervalSeconds uint64
	firstPayment    uint64
	title           string
	description     string
}

func newSubscriptionCreateCommand(opts *RootOptions) *cobra.Command {
	create := &subscriptionCreateOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a subscription paying the receiver every interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := amount.Parse(create.amount)
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			id, err := engine.CreateSubscription(ctx, escrow.CreateSubscriptionParams{
				Subscriber:        opts.As,
				Receiver:          create.receiver,
				Asset:             create.asset,
				AmountPerInterval: value,
				IntervalSeconds:   create.intervalSeconds,
				FirstPaymentTime:  create.firstPayment,
				Title:             create.title,
				Description:       create.description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created subscription %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&create.receiver, "receiver", "", "account paid each interval")
	cmd.Flags().StringVar(&create.asset, "asset", "", "asset symbol (default asset when empty)")
	cmd.Flags().StringVar(&create.amount, "amount", "", "amount charged per interval")
	cmd.Flags().Uint64Var(&create.intervalSeconds, "interval", 0, "interval length in seconds")
	cmd.Flags().Uint64Var(&create.firstPayment, "first-payment", 0, "unix time of the first charge")
	cmd.Flags().StringVar(&create.title, "title", "", "optional title")
	cmd.Flags().StringVar(&create.description, "description", "", "optional description")
	_ = cmd.MarkFlagRequired("receiver")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
