package cli

import (
	"fmt"

	"stream-escrow-go/internal/amount"
	"stream-escrow-go/internal/escrow"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newStreamCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Create and operate payment streams",
	}

	cmd.AddCommand(newStreamCreateCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "withdraw <id> [recipient]",
		Short: "Pay a recipient what has accrued",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseId(args[0])
			if err != nil {
				return err
			}
			recipient := opts.As
			if len(args) == 2 {
				recipient = args[1]
			}
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			paid, err := engine.WithdrawStream(ctx, id, recipient)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "withdrew %s from stream %d to %s\n", paid, id, recipient)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a stream and refund the sender",
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
			refund, err := engine.CancelStream(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled stream %d, refunded %s\n", id, refund)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a stream",
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
			stream, err := engine.GetStream(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, stream)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "recipients <id>",
		Short: "Print accrual for every recipient of a stream",
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
			infos, err := engine.GetAllRecipientsInfo(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, infos)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list <user>",
		Short: "List streams a user sends or receives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			streams, err := engine.ListUserStreams(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, streams)
		},
	})

	return cmd
}

type streamCreateOptions struct {
	recipients    []string
	amounts       []string
	asset         string
	periodSeconds uint64
	deposit       string
	title         string
	description   string
}

func newStreamCreateCommand(opts *RootOptions) *cobra.Command {
	create := &streamCreateOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Lock a deposit and start streaming it to recipients",
		Example: `  escrow --as alice stream create --recipient bob --amount 600 \
    --recipient carol --amount 300 --period 60 --deposit 100000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amounts, err := parseAmounts(create.amounts)
			if err != nil {
				return err
			}
			deposit, err := amount.Parse(create.deposit)
			if err != nil {
				return fmt.Errorf("invalid deposit: %w", err)
			}
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			id, err := engine.CreateStream(ctx, escrow.CreateStreamParams{
				Sender:           opts.As,
				Recipients:       create.recipients,
				Asset:            create.asset,
				AmountsPerPeriod: amounts,
				PeriodSeconds:    create.periodSeconds,
				Deposit:          deposit,
				Title:            create.title,
				Description:      create.description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created stream %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&create.recipients, "recipient", nil, "recipient account (repeatable)")
	cmd.Flags().StringArrayVar(&create.amounts, "amount", nil, "amount per period for the matching recipient (repeatable)")
	cmd.Flags().StringVar(&create.asset, "asset", "", "asset symbol (default asset when empty)")
	cmd.Flags().Uint64Var(&create.periodSeconds, "period", 0, "period length in seconds")
	cmd.Flags().StringVar(&create.deposit, "deposit", "", "amount locked from the sender")
	cmd.Flags().StringVar(&create.title, "title", "", "optional title")
	cmd.Flags().StringVar(&create.description, "description", "", "optional description")
	_ = cmd.MarkFlagRequired("deposit")

	return cmd
}

func parseAmounts(raw []string) ([]decimal.Decimal, error) {
	amounts := make([]decimal.Decimal, len(raw))
	for i, s := range raw {
		d, err := amount.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", s, err)
		}
		amounts[i] = d
	}
	return amounts, nil
}
